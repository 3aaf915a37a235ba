package engine

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/strategy"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// halfSpread returns half the quoted spread in price units. The bar's own
// spread, when present, takes precedence over the configured pip spread.
func (e *Engine) halfSpread(bar types.Bar) float64 {
	if bar.Spread > 0 {
		return bar.Spread / 2
	}

	return e.config.SpreadPips * e.config.PipSize / 2
}

// entryPrice applies slippage and half the spread against the trader on open.
func (e *Engine) entryPrice(ideal float64, direction types.Direction, bar types.Bar) float64 {
	if direction == types.DirectionLong {
		return ideal*(1+e.config.SlippagePct) + e.halfSpread(bar)
	}

	return ideal*(1-e.config.SlippagePct) - e.halfSpread(bar)
}

// exitPrice applies slippage and half the spread against the trader on close.
func (e *Engine) exitPrice(ideal float64, direction types.Direction, bar types.Bar) float64 {
	if direction == types.DirectionLong {
		return ideal*(1-e.config.SlippagePct) - e.halfSpread(bar)
	}

	return ideal*(1+e.config.SlippagePct) + e.halfSpread(bar)
}

// processExits checks stop, target and time-based exits for all open
// positions against the current bar. Exits run before any new entry on the
// same bar.
func (e *Engine) processExits(state *runState, barIndex int, bar types.Bar, all []strategy.Strategy) {
	// iterate over a snapshot: closePosition mutates state.positions
	open := slices.Clone(state.positions)

	for _, position := range open {
		position.MarkToMarket(bar.Close)

		if exitAt, reason, ok := e.checkExit(position, barIndex, bar); ok {
			e.closePosition(state, position, bar, exitAt, reason)
			e.notifyObservers(all, state.trades[len(state.trades)-1])
		}
	}
}

// checkExit returns the ideal exit price and reason when the bar triggers an
// exit. Stops are checked before targets: when both levels are touched inside
// one bar the conservative outcome wins.
func (e *Engine) checkExit(position *types.Position, barIndex int, bar types.Bar) (float64, types.ExitReason, bool) {
	if position.Direction == types.DirectionLong {
		if position.StopLoss.IsSome() && bar.Low <= position.StopLoss.Unwrap() {
			return gapAdjusted(bar.Open, position.StopLoss.Unwrap(), true), types.ExitReasonStopLoss, true
		}

		if position.TakeProfit.IsSome() && bar.High >= position.TakeProfit.Unwrap() {
			return gapAdjusted(bar.Open, position.TakeProfit.Unwrap(), false), types.ExitReasonTakeProfit, true
		}
	} else {
		if position.StopLoss.IsSome() && bar.High >= position.StopLoss.Unwrap() {
			return gapAdjusted(bar.Open, position.StopLoss.Unwrap(), false), types.ExitReasonStopLoss, true
		}

		if position.TakeProfit.IsSome() && bar.Low <= position.TakeProfit.Unwrap() {
			return gapAdjusted(bar.Open, position.TakeProfit.Unwrap(), true), types.ExitReasonTakeProfit, true
		}
	}

	if e.config.MaxHoldingBars > 0 && barIndex-position.EntryIndex >= e.config.MaxHoldingBars {
		return bar.Close, types.ExitReasonTimeLimit, true
	}

	return 0, "", false
}

// gapAdjusted fills at the bar open when the bar gapped through the level.
func gapAdjusted(open, level float64, levelIsBelow bool) float64 {
	if levelIsBelow && open <= level {
		return open
	}

	if !levelIsBelow && open >= level {
		return open
	}

	return level
}

// processSignal applies a single strategy signal: FLAT closes the strategy's
// position, LONG/SHORT reverses an opposite position and opens a new one
// subject to the confidence threshold and position-limit checks.
func (e *Engine) processSignal(state *runState, barIndex int, bar types.Bar, signal types.Signal, strat strategy.Strategy, all []strategy.Strategy) {
	if signal.Confidence < e.config.ConfidenceThreshold {
		return
	}

	existing := findPosition(state, strat.Name())

	if signal.Direction == types.DirectionFlat {
		if existing != nil {
			e.closePosition(state, existing, bar, bar.Close, types.ExitReasonSignal)
			e.notifyObservers(all, state.trades[len(state.trades)-1])
		}

		return
	}

	if !signal.IsActionable() {
		return
	}

	if existing != nil {
		if existing.Direction == signal.Direction {
			return
		}

		e.closePosition(state, existing, bar, bar.Close, types.ExitReasonSignal)
		e.notifyObservers(all, state.trades[len(state.trades)-1])
	}

	if err := e.openPosition(state, barIndex, bar, signal, strat.Name()); err != nil {
		state.events = append(state.events, types.RunEvent{
			Time:       bar.Time,
			BarIndex:   barIndex,
			Kind:       types.EventEntryRejected,
			StrategyID: strat.Name(),
			Message:    err.Error(),
		})

		e.log.Debug("Entry rejected",
			zap.String("strategy", strat.Name()),
			zap.Int("bar", barIndex),
			zap.Error(err),
		)
	}
}

// openPosition sizes and opens a position for the signal at the bar close,
// reduced by slippage, spread and commission.
func (e *Engine) openPosition(state *runState, barIndex int, bar types.Bar, signal types.Signal, strategyID string) error {
	if signal.Direction == types.DirectionShort && !e.config.EnableShortSelling {
		return errors.New(errors.ErrCodeShortSellingDisabled, "short selling is disabled")
	}

	if len(state.positions) >= e.config.MaxPositions {
		return errors.Newf(errors.ErrCodePositionLimitReached,
			"position limit %d reached", e.config.MaxPositions)
	}

	ideal := bar.Close
	exec := e.entryPrice(ideal, signal.Direction, bar)

	if exec <= 0 {
		return errors.Newf(errors.ErrCodeZeroQuantity, "entry price %f is not positive", exec)
	}

	equity := state.equityAt(bar.Close)
	notional := equity * e.config.PositionSizePct

	size, _ := decimal.NewFromFloat(notional).Div(decimal.NewFromFloat(exec)).Float64()
	if size <= 0 {
		return errors.New(errors.ErrCodeZeroQuantity, "position size rounded to zero")
	}

	cost := size * exec
	commission := e.commission.Calculate(cost)

	if signal.Direction == types.DirectionLong && cost+commission > state.cash {
		return errors.Newf(errors.ErrCodeInsufficientEquity,
			"entry cost %.2f exceeds available cash %.2f", cost+commission, state.cash)
	}

	slippageCost := slippageOf(exec, ideal, size)

	if signal.Direction == types.DirectionLong {
		state.cash -= cost
	} else {
		state.cash += cost
	}

	state.cash -= commission

	position := &types.Position{
		ID:              uuid.New().String(),
		StrategyID:      strategyID,
		Direction:       signal.Direction,
		EntryIndex:      barIndex,
		EntryTime:       bar.Time,
		EntryPrice:      ideal,
		Size:            size,
		StopLoss:        signal.StopLoss,
		TakeProfit:      signal.TakeProfit,
		EntryCommission: commission,
		EntrySlippage:   slippageCost,
	}

	state.positions = append(state.positions, position)

	return nil
}

// closePosition closes the position at the given ideal price and appends the
// immutable trade record to the ledger.
func (e *Engine) closePosition(state *runState, position *types.Position, bar types.Bar, idealExit float64, reason types.ExitReason) {
	exec := e.exitPrice(idealExit, position.Direction, bar)

	proceeds := position.Size * exec
	commission := e.commission.Calculate(proceeds)

	if position.Direction == types.DirectionLong {
		state.cash += proceeds
	} else {
		state.cash -= proceeds
	}

	state.cash -= commission

	entry := decimal.NewFromFloat(position.EntryPrice)
	exit := decimal.NewFromFloat(idealExit)
	size := decimal.NewFromFloat(position.Size)

	var grossDec decimal.Decimal
	if position.Direction == types.DirectionLong {
		grossDec = exit.Sub(entry).Mul(size)
	} else {
		grossDec = entry.Sub(exit).Mul(size)
	}

	gross, _ := grossDec.Float64()

	trade := types.Trade{
		ID:           position.ID,
		StrategyID:   position.StrategyID,
		Direction:    position.Direction,
		EntryTime:    position.EntryTime,
		EntryPrice:   position.EntryPrice,
		ExitTime:     bar.Time,
		ExitPrice:    idealExit,
		Size:         position.Size,
		GrossPnL:     gross,
		Commission:   position.EntryCommission + commission,
		SlippageCost: position.EntrySlippage + slippageOf(exec, idealExit, position.Size),
		ExitReason:   reason,
	}

	state.trades = append(state.trades, trade)

	for i, p := range state.positions {
		if p.ID == position.ID {
			state.positions = slices.Delete(state.positions, i, i+1)

			break
		}
	}
}

// closeAllPositions liquidates everything at the given ideal price and
// notifies trade observers.
func (e *Engine) closeAllPositions(state *runState, bar types.Bar, idealExit float64, reason types.ExitReason, all []strategy.Strategy) {
	open := slices.Clone(state.positions)

	for _, position := range open {
		e.closePosition(state, position, bar, idealExit, reason)
		e.notifyObservers(all, state.trades[len(state.trades)-1])
	}
}

// notifyObservers delivers a realized trade to every strategy that adapts to
// trade outcomes.
func (e *Engine) notifyObservers(strategies []strategy.Strategy, trade types.Trade) {
	for _, s := range strategies {
		if observer, ok := s.(strategy.TradeObserver); ok {
			observer.OnTradeClosed(trade)
		}
	}
}

// findPosition returns the open position owned by the strategy, or nil.
func findPosition(state *runState, strategyID string) *types.Position {
	for _, p := range state.positions {
		if p.StrategyID == strategyID {
			return p
		}
	}

	return nil
}

// slippageOf measures the friction cost of a fill against its ideal price.
func slippageOf(exec, ideal, size float64) float64 {
	diff := exec - ideal
	if diff < 0 {
		diff = -diff
	}

	return diff * size
}
