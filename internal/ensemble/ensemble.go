// Package ensemble combines multiple strategies into a single strategy by
// confidence-weighted voting, with periodic weight rebalancing driven by each
// sub-strategy's trailing trade outcomes.
package ensemble

import (
	"fmt"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/strategy"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Ensemble wraps N sub-strategies as one Strategy. Weights live on the
// Ensemble value itself, so independent runs with independent Ensembles never
// share state.
type Ensemble struct {
	name       string
	config     Config
	strategies []strategy.Strategy

	weights map[string]float64
	// trailing holds each strategy's most recent closed trades, capped at
	// TrailingTradeWindow.
	trailing map[string][]types.Trade
	// entryVoters remembers which sub-strategies voted for the latest
	// emitted direction, so a trade booked under the ensemble's own name
	// can be credited back to them when it closes.
	entryVoters map[types.Direction][]string

	barsSinceRebalance int
}

// New constructs an ensemble over the given sub-strategies.
func New(name string, config Config, strategies []strategy.Strategy) (*Ensemble, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if len(strategies) == 0 {
		return nil, errors.New(errors.ErrCodeNoStrategies, "ensemble requires at least one sub-strategy")
	}

	seen := make(map[string]bool, len(strategies))
	for _, s := range strategies {
		if seen[s.Name()] {
			return nil, errors.Newf(errors.ErrCodeDuplicateStrategy, "duplicate sub-strategy name %q", s.Name())
		}

		seen[s.Name()] = true
	}

	e := &Ensemble{
		name:        name,
		config:      config,
		strategies:  strategies,
		weights:     make(map[string]float64, len(strategies)),
		trailing:    make(map[string][]types.Trade, len(strategies)),
		entryVoters: make(map[types.Direction][]string, 2),
	}

	e.setEqualWeights()

	return e, nil
}

// Name implements strategy.Strategy.
func (e *Ensemble) Name() string {
	return e.name
}

// Weights returns a copy of the current per-strategy weights.
func (e *Ensemble) Weights() map[string]float64 {
	out := make(map[string]float64, len(e.weights))
	for id, w := range e.weights {
		out[id] = w
	}

	return out
}

// Evaluate implements strategy.Strategy: it queries every sub-strategy,
// tallies a confidence-weighted vote per direction, and emits the winner when
// it clears the threshold and, if required, a strict majority.
func (e *Ensemble) Evaluate(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
	e.barsSinceRebalance++
	if e.barsSinceRebalance >= e.config.RebalancePeriodBars {
		e.rebalance()
		e.barsSinceRebalance = 0
	}

	votes := map[types.Direction]float64{}
	voters := map[types.Direction][]string{}

	var stops, targets []float64

	for _, sub := range e.strategies {
		signal, err := sub.Evaluate(ctx, window)
		if err != nil {
			// one failing sub-strategy never poisons the vote
			if ctx.Logger != nil {
				ctx.Logger.Debug("Sub-strategy error, excluded from vote",
					zap.String("ensemble", e.name),
					zap.String("strategy", sub.Name()),
					zap.Error(err),
				)
			}

			continue
		}

		if signal.IsNone() {
			continue
		}

		s := signal.Unwrap()
		if !s.IsActionable() {
			continue
		}

		votes[s.Direction] += e.weights[sub.Name()] * s.Confidence
		voters[s.Direction] = append(voters[s.Direction], sub.Name())

		if s.StopLoss.IsSome() {
			stops = append(stops, s.StopLoss.Unwrap())
		}

		if s.TakeProfit.IsSome() {
			targets = append(targets, s.TakeProfit.Unwrap())
		}
	}

	winner, vote, tied := winningDirection(votes)
	if tied || vote < e.config.ConfidenceThreshold {
		return optional.None[types.Signal](), nil
	}

	// a majority is counted against all sub-strategies, not just the ones
	// that voted this bar
	if e.config.RequireMajority && len(voters[winner])*2 <= len(e.strategies) {
		return optional.None[types.Signal](), nil
	}

	e.entryVoters[winner] = voters[winner]

	current := window[len(window)-1]

	signal := types.Signal{
		Time:       current.Time,
		Direction:  winner,
		Confidence: vote,
		StrategyID: e.name,
		Reason: fmt.Sprintf("%d/%d strategies voted %s with weighted confidence %.3f",
			len(voters[winner]), len(e.strategies), winner, vote),
	}

	if level, ok := tightest(stops, winner, true); ok {
		signal.StopLoss = optional.Some(level)
	}

	if level, ok := tightest(targets, winner, false); ok {
		signal.TakeProfit = optional.Some(level)
	}

	return optional.Some(signal), nil
}

// OnTradeClosed implements strategy.TradeObserver: realized trades feed the
// trailing windows the next rebalance scores from. Trades booked under the
// ensemble's own name are credited to every sub-strategy that voted for the
// entry direction; trades from independently-run sub-strategies are credited
// directly.
func (e *Ensemble) OnTradeClosed(trade types.Trade) {
	if trade.StrategyID == e.name {
		for _, id := range e.entryVoters[trade.Direction] {
			e.credit(id, trade)
		}

		return
	}

	if _, known := e.weights[trade.StrategyID]; known {
		e.credit(trade.StrategyID, trade)
	}
}

func (e *Ensemble) credit(id string, trade types.Trade) {
	window := append(e.trailing[id], trade)
	if len(window) > e.config.TrailingTradeWindow {
		window = window[len(window)-e.config.TrailingTradeWindow:]
	}

	e.trailing[id] = window
}

// winningDirection returns the direction with the highest vote. An exact tie
// between LONG and SHORT reports tied.
func winningDirection(votes map[types.Direction]float64) (types.Direction, float64, bool) {
	long := votes[types.DirectionLong]
	short := votes[types.DirectionShort]

	if long == 0 && short == 0 {
		return types.DirectionFlat, 0, true
	}

	if long == short {
		return types.DirectionFlat, 0, true
	}

	if long > short {
		return types.DirectionLong, long, false
	}

	return types.DirectionShort, short, false
}

// tightest picks the most conservative of the proposed levels: the highest
// stop / lowest target for longs, mirrored for shorts.
func tightest(levels []float64, direction types.Direction, isStop bool) (float64, bool) {
	if len(levels) == 0 {
		return 0, false
	}

	best := levels[0]
	for _, level := range levels[1:] {
		pickHigher := (direction == types.DirectionLong) == isStop
		if pickHigher && level > best {
			best = level
		}

		if !pickHigher && level < best {
			best = level
		}
	}

	return best, true
}
