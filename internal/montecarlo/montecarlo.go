// Package montecarlo estimates sequence risk by resampling a realized trade
// ledger with replacement and rebuilding synthetic equity curves from each
// reordering.
package montecarlo

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Config enumerates the Monte Carlo parameters.
type Config struct {
	// NumSimulations is how many resampled equity curves to build.
	NumSimulations int `yaml:"num_simulations" json:"num_simulations"`
	// Seed fixes the random source; simulation i derives its own source
	// from Seed+i, so results are reproducible at any worker count.
	Seed int64 `yaml:"seed" json:"seed"`
	// Workers caps parallel simulations. Zero means one worker.
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultConfig returns a thousand-path configuration.
func DefaultConfig() Config {
	return Config{
		NumSimulations: 1000,
		Seed:           1,
		Workers:        4,
	}
}

// Distribution summarizes one measure across all simulations.
type Distribution struct {
	Mean float64 `yaml:"mean" json:"mean"`
	P5   float64 `yaml:"p5" json:"p5"`
	P50  float64 `yaml:"p50" json:"p50"`
	P95  float64 `yaml:"p95" json:"p95"`
}

// Result is the outcome of a Monte Carlo batch. On cancellation it covers the
// simulations completed so far.
type Result struct {
	FinalEquity Distribution `yaml:"final_equity" json:"final_equity"`
	// MaxDrawdown is the distribution of each path's worst peak-to-trough
	// decline, as a fraction of the peak.
	MaxDrawdown Distribution `yaml:"max_drawdown" json:"max_drawdown"`

	NumSimulations int  `yaml:"num_simulations" json:"num_simulations"`
	Cancelled      bool `yaml:"cancelled" json:"cancelled"`
}

// Simulator runs the resampling batch.
type Simulator struct {
	config Config
	log    *logger.Logger
}

// New validates the configuration and constructs a simulator.
func New(config Config, log *logger.Logger) (*Simulator, error) {
	if config.NumSimulations < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidSimCount,
			"simulation count must be at least 1, got %d", config.NumSimulations)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Simulator{config: config, log: log}, nil
}

// pathOutcome is one simulation's summary.
type pathOutcome struct {
	finalEquity float64
	maxDrawdown float64
	done        bool
}

// Run resamples the ledger's net P&L values with replacement NumSimulations
// times. Cancellation is checked between simulations, never mid-path, and
// yields the distribution over the paths completed so far.
func (m *Simulator) Run(ctx context.Context, trades []types.Trade, initialCapital float64) (*Result, error) {
	if len(trades) == 0 {
		return nil, errors.New(errors.ErrCodeNoTrades, "cannot resample an empty trade ledger")
	}

	pnls := make([]float64, len(trades))
	for i, trade := range trades {
		pnls[i] = trade.NetPnL()
	}

	outcomes := make([]pathOutcome, m.config.NumSimulations)

	group, groupCtx := errgroup.WithContext(ctx)

	workers := m.config.Workers
	if workers < 1 {
		workers = 1
	}
	group.SetLimit(workers)

	for i := 0; i < m.config.NumSimulations; i++ {
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return errors.Wrap(errors.ErrCodeBatchCancelled,
					"monte carlo batch cancelled", groupCtx.Err())
			default:
			}

			rng := rand.New(rand.NewSource(m.config.Seed + int64(i)))
			outcomes[i] = resamplePath(rng, pnls, initialCapital)

			return nil
		})
	}

	waitErr := group.Wait()

	result := m.summarize(outcomes)

	if waitErr != nil {
		result.Cancelled = true

		m.log.Debug("Monte carlo batch cancelled",
			zap.Int("completed", result.NumSimulations),
			zap.Int("requested", m.config.NumSimulations),
		)

		return result, waitErr
	}

	return result, nil
}

// resamplePath draws len(pnls) trades with replacement and walks the
// resulting equity curve.
func resamplePath(rng *rand.Rand, pnls []float64, initialCapital float64) pathOutcome {
	equity := initialCapital
	peak := initialCapital
	maxDrawdown := 0.0

	for range pnls {
		equity += pnls[rng.Intn(len(pnls))]

		if equity > peak {
			peak = equity
		}

		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	return pathOutcome{
		finalEquity: equity,
		maxDrawdown: maxDrawdown,
		done:        true,
	}
}

// summarize builds the distributions over completed paths.
func (m *Simulator) summarize(outcomes []pathOutcome) *Result {
	finals := make([]float64, 0, len(outcomes))
	drawdowns := make([]float64, 0, len(outcomes))

	for _, o := range outcomes {
		if !o.done {
			continue
		}

		finals = append(finals, o.finalEquity)
		drawdowns = append(drawdowns, o.maxDrawdown)
	}

	return &Result{
		FinalEquity:    distributionOf(finals),
		MaxDrawdown:    distributionOf(drawdowns),
		NumSimulations: len(finals),
	}
}

func distributionOf(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	total := 0.0
	for _, v := range sorted {
		total += v
	}

	return Distribution{
		Mean: total / float64(len(sorted)),
		P5:   percentile(sorted, 0.05),
		P50:  percentile(sorted, 0.50),
		P95:  percentile(sorted, 0.95),
	}
}

// percentile linearly interpolates over a sorted sample.
func percentile(sorted []float64, level float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := level * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	frac := rank - float64(lower)

	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
