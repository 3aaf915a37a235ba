// Package optimizer implements walk-forward parameter optimization: grid
// search on in-sample slices, validated on the out-of-sample slice that
// follows each tuning window.
package optimizer

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/helixquant/backsim/internal/benchmark"
	"github.com/helixquant/backsim/internal/engine"
	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/series"
	"github.com/helixquant/backsim/internal/strategy"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// StrategyFactory builds a fresh strategy from one parameter combination.
// Each simulation run gets its own instance so parallel runs never share
// state.
type StrategyFactory func(params Params) (strategy.Strategy, error)

// Config enumerates the walk-forward parameters. Invalid combinations fail
// at construction, never mid-run.
type Config struct {
	// InSamplePct is the fraction of each window used for tuning, in (0,1).
	InSamplePct float64 `yaml:"in_sample_pct" json:"in_sample_pct"`
	// NumWindows is the number of walk-forward windows.
	NumWindows int `yaml:"num_windows" json:"num_windows"`
	// Rolling makes windows overlap, sliding over the series instead of
	// partitioning it. Off by default: non-overlapping windows never reuse
	// earlier out-of-sample data as later in-sample data.
	Rolling bool `yaml:"rolling" json:"rolling"`
	// Metric is the report field maximized in-sample.
	Metric string `yaml:"metric" json:"metric"`
	// Workers caps parallel grid evaluations. Zero means one worker.
	Workers int `yaml:"workers" json:"workers"`
	// RiskFreeRate feeds the benchmark suite.
	RiskFreeRate float64 `yaml:"risk_free_rate" json:"risk_free_rate"`

	// Engine is the simulation configuration shared by every run.
	Engine engine.Config `yaml:"engine" json:"engine"`
}

// WindowResult is the outcome of one walk-forward window.
type WindowResult struct {
	WindowIndex int `yaml:"window_index" json:"window_index"`

	BestParams     Params  `yaml:"best_params" json:"best_params"`
	InSampleScore  float64 `yaml:"in_sample_score" json:"in_sample_score"`
	OutSampleScore float64 `yaml:"out_sample_score" json:"out_sample_score"`
	// OverfittingGap is in-sample minus out-of-sample score. A large
	// positive gap is reported, never auto-corrected.
	OverfittingGap float64 `yaml:"overfitting_gap" json:"overfitting_gap"`

	InSampleReport  types.PerformanceReport `yaml:"in_sample_report" json:"in_sample_report"`
	OutSampleReport types.PerformanceReport `yaml:"out_sample_report" json:"out_sample_report"`
}

// Result is the full walk-forward outcome. On cancellation it holds every
// window completed so far.
type Result struct {
	Windows []WindowResult `yaml:"windows" json:"windows"`
	// BestParams is the winning combination of the window with the highest
	// out-of-sample score.
	BestParams Params `yaml:"best_params" json:"best_params"`

	MeanInSampleScore  float64 `yaml:"mean_in_sample_score" json:"mean_in_sample_score"`
	MeanOutSampleScore float64 `yaml:"mean_out_sample_score" json:"mean_out_sample_score"`
	MeanOverfittingGap float64 `yaml:"mean_overfitting_gap" json:"mean_overfitting_gap"`

	Cancelled bool `yaml:"cancelled" json:"cancelled"`
}

// window is one [start,end) segment with its in-sample split point.
type window struct {
	start, split, end int
}

// Optimizer runs the walk-forward search.
type Optimizer struct {
	config  Config
	factory StrategyFactory
	grid    Grid
	combos  []Params
	extract func(types.PerformanceReport) float64
	log     *logger.Logger
}

// New validates the configuration and grid and constructs an optimizer.
func New(config Config, factory StrategyFactory, grid Grid, log *logger.Logger) (*Optimizer, error) {
	if config.InSamplePct <= 0 || config.InSamplePct >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidInSamplePct,
			"in-sample fraction must be in (0,1), got %f", config.InSamplePct)
	}

	if config.NumWindows < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidWindowCount,
			"window count must be at least 1, got %d", config.NumWindows)
	}

	if err := config.Engine.Validate(); err != nil {
		return nil, err
	}

	extract, err := metricExtractor(config.Metric)
	if err != nil {
		return nil, err
	}

	combos := grid.Combinations()
	if len(combos) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyParamGrid, "parameter grid expands to no combinations")
	}

	if factory == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "strategy factory is required")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Optimizer{
		config:  config,
		factory: factory,
		grid:    grid,
		combos:  combos,
		extract: extract,
		log:     log,
	}, nil
}

// Combinations exposes the expanded grid in its deterministic order.
func (o *Optimizer) Combinations() []Params {
	return o.combos
}

// Optimize runs the walk-forward search over the series. Cancellation is
// honored between runs; the returned Result carries every window completed
// before the cancellation.
func (o *Optimizer) Optimize(ctx context.Context, s *series.Series) (*Result, error) {
	windows, err := o.partition(s.Len())
	if err != nil {
		return nil, err
	}

	result := &Result{}

	for _, w := range windows {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			o.finalize(result)

			return result, errors.Wrap(errors.ErrCodeBatchCancelled,
				"walk-forward optimization cancelled", ctx.Err())
		default:
		}

		windowResult, err := o.optimizeWindow(ctx, s, w)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeBatchCancelled) {
				result.Cancelled = true
				o.finalize(result)

				return result, err
			}

			return nil, err
		}

		result.Windows = append(result.Windows, *windowResult)

		o.log.Debug("Walk-forward window complete",
			zap.Int("window", windowResult.WindowIndex),
			zap.Float64("in_sample", windowResult.InSampleScore),
			zap.Float64("out_sample", windowResult.OutSampleScore),
		)
	}

	o.finalize(result)

	return result, nil
}

// partition slices the series into walk-forward windows. Non-rolling windows
// are contiguous and non-overlapping, covering the full series; rolling
// windows keep the same length but slide with overlap so every window after
// the first re-tunes on data the previous window validated on.
func (o *Optimizer) partition(n int) ([]window, error) {
	if n < 2*o.config.NumWindows {
		return nil, errors.Newf(errors.ErrCodeDataSeriesTooShort,
			"%d bars cannot form %d walk-forward windows", n, o.config.NumWindows)
	}

	length := n / o.config.NumWindows
	windows := make([]window, 0, o.config.NumWindows)

	for i := 0; i < o.config.NumWindows; i++ {
		var start, end int

		if o.config.Rolling && o.config.NumWindows > 1 {
			stride := (n - length) / (o.config.NumWindows - 1)
			start = i * stride
			end = start + length
		} else {
			start = i * length
			end = start + length
			if i == o.config.NumWindows-1 {
				end = n // last window absorbs the remainder
			}
		}

		split := start + int(float64(end-start)*o.config.InSamplePct)
		if split <= start || split >= end {
			return nil, errors.Newf(errors.ErrCodeInvalidInSamplePct,
				"in-sample fraction %f leaves window %d without both slices", o.config.InSamplePct, i)
		}

		windows = append(windows, window{start: start, split: split, end: end})
	}

	return windows, nil
}

// optimizeWindow grid-searches the in-sample slice and validates the winner
// out-of-sample.
func (o *Optimizer) optimizeWindow(ctx context.Context, s *series.Series, w window) (*WindowResult, error) {
	inSample, err := s.Slice(w.start, w.split)
	if err != nil {
		return nil, err
	}

	outSample, err := s.Slice(w.split, w.end)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(o.combos))
	reports := make([]types.PerformanceReport, len(o.combos))

	group, groupCtx := errgroup.WithContext(ctx)

	workers := o.config.Workers
	if workers < 1 {
		workers = 1
	}
	group.SetLimit(workers)

	for i, combo := range o.combos {
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return errors.Wrap(errors.ErrCodeBatchCancelled, "grid search cancelled", groupCtx.Err())
			default:
			}

			report, err := o.runOnce(groupCtx, inSample, combo)
			if err != nil {
				return err
			}

			// one writer per slot, no lock needed
			scores[i] = o.extract(report)
			reports[i] = report

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeBatchCancelled, "grid search cancelled", ctx.Err())
	}

	// maximum score wins; ties break by the earliest combination in grid
	// iteration order
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	outReport, err := o.runOnce(ctx, outSample, o.combos[best])
	if err != nil {
		return nil, err
	}

	inScore := scores[best]
	outScore := o.extract(outReport)

	return &WindowResult{
		BestParams:      o.combos[best].clone(),
		InSampleScore:   inScore,
		OutSampleScore:  outScore,
		OverfittingGap:  inScore - outScore,
		InSampleReport:  reports[best],
		OutSampleReport: outReport,
	}, nil
}

// runOnce executes one engine run with a fresh strategy and scores it.
func (o *Optimizer) runOnce(ctx context.Context, s *series.Series, combo Params) (types.PerformanceReport, error) {
	strat, err := o.factory(combo)
	if err != nil {
		return types.PerformanceReport{}, err
	}

	eng, err := engine.New(o.config.Engine, logger.NewNopLogger())
	if err != nil {
		return types.PerformanceReport{}, err
	}

	runResult, err := eng.Run(ctx, s, []strategy.Strategy{strat})
	if err != nil {
		return types.PerformanceReport{}, err
	}

	bars := s.Bars()

	return benchmark.Compute(benchmark.Input{
		RunID:          runResult.ID,
		EquityCurve:    runResult.EquityCurve,
		Trades:         runResult.Trades,
		InitialCapital: o.config.Engine.InitialCapital,
		RiskFreeRate:   o.config.RiskFreeRate,
		BarsPerYear:    s.BarsPerYear(),
		FirstPrice:     bars[0].Close,
		LastPrice:      bars[len(bars)-1].Close,
	}), nil
}

// finalize numbers the windows, aggregates scores and picks the overall best
// parameters by out-of-sample score.
func (o *Optimizer) finalize(result *Result) {
	if len(result.Windows) == 0 {
		return
	}

	bestWindow := 0

	for i := range result.Windows {
		result.Windows[i].WindowIndex = i

		result.MeanInSampleScore += result.Windows[i].InSampleScore
		result.MeanOutSampleScore += result.Windows[i].OutSampleScore
		result.MeanOverfittingGap += result.Windows[i].OverfittingGap

		if result.Windows[i].OutSampleScore > result.Windows[bestWindow].OutSampleScore {
			bestWindow = i
		}
	}

	n := float64(len(result.Windows))
	result.MeanInSampleScore /= n
	result.MeanOutSampleScore /= n
	result.MeanOverfittingGap /= n

	result.BestParams = result.Windows[bestWindow].BestParams
}
