// Package engine implements the event-driven backtest simulation: the
// bar-processing loop, friction models, position and equity state, and the
// structured run result.
package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/series"
	"github.com/helixquant/backsim/internal/strategy"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Engine drives a market series bar-by-bar through one or more strategies.
// An Engine is cheap to construct; independent runs must use independent
// Engine values (no shared mutable state between parallel runs).
type Engine struct {
	config     Config
	log        *logger.Logger
	commission CommissionModel

	// sleep is swappable so tests can observe SLOW/REALTIME pacing without
	// wall-clock delays.
	sleep func(time.Duration)
}

// New validates the configuration and constructs an engine.
func New(config Config, log *logger.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	var commission CommissionModel
	if config.Commission > 0 {
		commission = NewFractionalCommission(config.Commission)
	} else {
		commission = NewZeroCommission()
	}

	return &Engine{
		config:     config,
		log:        log,
		commission: commission,
		sleep:      time.Sleep,
	}, nil
}

// runState is the per-run mutable state. Owned by exactly one Run call.
type runState struct {
	cash      float64
	positions []*types.Position
	trades    []types.Trade
	equity    []types.EquityPoint
	events    []types.RunEvent
	intrabar  []IntrabarTick
}

// equityAt marks all open positions to the given price and returns total
// account equity.
func (s *runState) equityAt(price float64) float64 {
	total := decimal.NewFromFloat(s.cash)

	for _, p := range s.positions {
		value := decimal.NewFromFloat(p.Size).Mul(decimal.NewFromFloat(price))
		if p.Direction == types.DirectionLong {
			total = total.Add(value)
		} else {
			total = total.Sub(value)
		}
	}

	out, _ := total.Float64()

	return out
}

// Run executes the simulation over the full series. The trade ledger is
// deterministic for fixed inputs regardless of speed mode; the context is
// only checked between bars, never mid-bar.
func (e *Engine) Run(ctx context.Context, s *series.Series, strategies []strategy.Strategy) (*Result, error) {
	if s == nil || s.Len() == 0 {
		return nil, errors.New(errors.ErrCodeDataEmptySeries, "cannot run on an empty series")
	}

	if len(strategies) == 0 {
		return nil, errors.New(errors.ErrCodeNoStrategies, "no strategies loaded")
	}

	state := &runState{
		cash: e.config.InitialCapital,
	}

	result := &Result{
		ID:                uuid.New().String(),
		Symbol:            s.Symbol(),
		InitialCapital:    e.config.InitialCapital,
		TerminationReason: types.TerminationCompleted,
	}

	strategyCtx := strategy.Context{
		Symbol: s.Symbol(),
		Logger: e.log,
	}

	bars := s.Bars()
	barInterval := s.BarInterval()
	lastProcessed := -1

	e.log.Debug("Starting run",
		zap.String("run_id", result.ID),
		zap.String("symbol", s.Symbol()),
		zap.Int("bars", len(bars)),
		zap.Int("strategies", len(strategies)),
		zap.String("speed_mode", string(e.config.SpeedMode)),
	)

barLoop:
	for i, bar := range bars {
		select {
		case <-ctx.Done():
			result.TerminationReason = types.TerminationCancelled

			break barLoop
		default:
		}

		// (a) exits are evaluated before new entries on the same bar to
		// avoid look-ahead bias
		e.processExits(state, i, bar, strategies)

		lastProcessed = i

		if e.config.TrackIntrabarData {
			e.recordIntrabar(state, bar, barInterval)
		}

		// margin check against the configured floor
		equity := state.equityAt(bar.Close)
		if e.config.StopOnMarginCall && equity <= e.config.InitialCapital*e.config.MarginCallLevel {
			e.closeAllPositions(state, bar, bar.Close, types.ExitReasonMarginCall, strategies)
			state.events = append(state.events, types.RunEvent{
				Time:     bar.Time,
				BarIndex: i,
				Kind:     types.EventMarginCall,
				Message:  "equity breached margin call level, run halted",
			})
			state.equity = append(state.equity, types.EquityPoint{Time: bar.Time, Equity: state.equityAt(bar.Close)})
			result.TerminationReason = types.TerminationMarginCall

			break barLoop
		}

		// (b) query each strategy with the window available so far
		window := s.Window(i)

		for _, strat := range strategies {
			signal, err := strat.Evaluate(strategyCtx, window)
			if err != nil {
				state.events = append(state.events, types.RunEvent{
					Time:       bar.Time,
					BarIndex:   i,
					Kind:       types.EventStrategyError,
					StrategyID: strat.Name(),
					Message:    err.Error(),
				})

				if e.config.StrictStrategyErrors {
					e.closeAllPositions(state, bar, bar.Close, types.ExitReasonEndOfData, strategies)
					state.equity = append(state.equity, types.EquityPoint{Time: bar.Time, Equity: state.equityAt(bar.Close)})
					result.TerminationReason = types.TerminationStrategyError

					break barLoop
				}

				continue
			}

			if signal.IsNone() {
				continue
			}

			// (c) act on the signal if it clears the confidence threshold
			e.processSignal(state, i, bar, signal.Unwrap(), strat, strategies)
		}

		// (d) one equity sample per bar processed
		state.equity = append(state.equity, types.EquityPoint{Time: bar.Time, Equity: state.equityAt(bar.Close)})

		if i < len(bars)-1 {
			e.pace(bar, bars[i+1])
		}
	}

	// finalize: force-close whatever is still open at the last processed bar
	if len(state.positions) > 0 && lastProcessed >= 0 {
		lastBar := bars[lastProcessed]
		e.closeAllPositions(state, lastBar, lastBar.Close, types.ExitReasonEndOfData, strategies)

		if len(state.equity) > 0 {
			state.equity[len(state.equity)-1].Equity = state.equityAt(lastBar.Close)
		}
	}

	result.Trades = state.trades
	result.EquityCurve = state.equity
	result.Events = state.events
	result.Intrabar = state.intrabar

	if len(state.equity) > 0 {
		result.FinalEquity = state.equity[len(state.equity)-1].Equity
	} else {
		result.FinalEquity = e.config.InitialCapital
	}

	e.log.Debug("Run finished",
		zap.String("run_id", result.ID),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("final_equity", result.FinalEquity),
		zap.String("termination", string(result.TerminationReason)),
	)

	return result, nil
}

// pace applies the configured timing discipline between two bars.
func (e *Engine) pace(current, next types.Bar) {
	switch e.config.SpeedMode {
	case SpeedModeFast, SpeedModeHFTTest:
		// batch through with no yield
	case SpeedModeNormal:
		runtime.Gosched()
	case SpeedModeSlow:
		e.sleep(time.Duration(e.config.SlowDelayMs) * time.Millisecond)
	case SpeedModeRealtime:
		e.sleep(next.Time.Sub(current.Time))
	}
}

// recordIntrabar appends the subdivided open-low-high-close path of the bar.
func (e *Engine) recordIntrabar(state *runState, bar types.Bar, interval time.Duration) {
	quarter := time.Duration(0)
	if interval > 0 {
		quarter = interval / 4
	}

	prices := []float64{bar.Open, bar.Low, bar.High, bar.Close}
	for j, p := range prices {
		state.intrabar = append(state.intrabar, IntrabarTick{
			Time:  bar.Time.Add(quarter * time.Duration(j)),
			Price: p,
		})
	}
}
