package selector

import (
	"math/rand"
	"sort"

	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// ArgmaxConfig parameterizes an ArgmaxStrategySelector.
type ArgmaxConfig struct {
	// Epsilon is the exploration rate: a uniformly random strategy is
	// selected with this probability instead of the top scorer.
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
	// TrailingTradeWindow caps how many recent trades feed each strategy's
	// score.
	TrailingTradeWindow int `yaml:"trailing_trade_window" json:"trailing_trade_window"`
	// Seed fixes the random source for reproducible exploration.
	Seed int64 `yaml:"seed" json:"seed"`
}

// DefaultArgmaxConfig returns a 10% exploration configuration.
func DefaultArgmaxConfig() ArgmaxConfig {
	return ArgmaxConfig{
		Epsilon:             0.1,
		TrailingTradeWindow: 30,
		Seed:                1,
	}
}

// ArgmaxStrategySelector maintains a trailing performance score per strategy
// and selects the top scorer with probability 1-epsilon (epsilon-greedy
// exploration). UpdatePerformance must be called after every realized trade
// to keep scores current.
type ArgmaxStrategySelector struct {
	config ArgmaxConfig
	rng    *rand.Rand

	trailing map[string][]float64
}

// NewArgmaxStrategySelector validates the configuration and constructs a
// selector.
func NewArgmaxStrategySelector(config ArgmaxConfig) (*ArgmaxStrategySelector, error) {
	if config.Epsilon < 0 || config.Epsilon > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidEpsilon,
			"epsilon must be in [0,1], got %f", config.Epsilon)
	}

	if config.TrailingTradeWindow < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"trailing trade window must be at least 1, got %d", config.TrailingTradeWindow)
	}

	return &ArgmaxStrategySelector{
		config:   config,
		rng:      rand.New(rand.NewSource(config.Seed)),
		trailing: make(map[string][]float64),
	}, nil
}

// UpdatePerformance records a realized trade against its strategy's trailing
// window.
func (s *ArgmaxStrategySelector) UpdatePerformance(trade types.Trade) {
	window := append(s.trailing[trade.StrategyID], trade.NetPnL())
	if len(window) > s.config.TrailingTradeWindow {
		window = window[len(window)-s.config.TrailingTradeWindow:]
	}

	s.trailing[trade.StrategyID] = window
}

// OnTradeClosed implements strategy.TradeObserver.
func (s *ArgmaxStrategySelector) OnTradeClosed(trade types.Trade) {
	s.UpdatePerformance(trade)
}

// Score returns the strategy's trailing mean net P&L. Unknown strategies
// score 0.
func (s *ArgmaxStrategySelector) Score(strategyID string) float64 {
	window := s.trailing[strategyID]
	if len(window) == 0 {
		return 0
	}

	total := 0.0
	for _, pnl := range window {
		total += pnl
	}

	return total / float64(len(window))
}

// Select returns the top-scoring strategy with probability 1-epsilon, or a
// uniformly random one with probability epsilon. Score ties break by
// lexicographic strategy id, so selection is deterministic for a fixed seed.
func (s *ArgmaxStrategySelector) Select(strategyIDs []string) (string, error) {
	if len(strategyIDs) == 0 {
		return "", errors.New(errors.ErrCodeNoCandidates, "no strategies to select from")
	}

	if s.config.Epsilon > 0 && s.rng.Float64() < s.config.Epsilon {
		return strategyIDs[s.rng.Intn(len(strategyIDs))], nil
	}

	sorted := make([]string, len(strategyIDs))
	copy(sorted, strategyIDs)
	sort.Strings(sorted)

	best := sorted[0]
	bestScore := s.Score(best)

	for _, id := range sorted[1:] {
		if score := s.Score(id); score > bestScore {
			best = id
			bestScore = score
		}
	}

	return best, nil
}
