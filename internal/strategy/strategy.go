// Package strategy defines the strategy capability the engine and ensemble
// depend on. Strategies are treated opaquely: any deterministic or stateful
// rule that can turn a bar window into a signal-or-none.
package strategy

import (
	"github.com/moznion/go-optional"

	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/types"
)

// Context carries the information a strategy may use while evaluating a bar.
type Context struct {
	// Symbol is the instrument being processed.
	Symbol string
	// Logger is never nil; the engine passes a nop logger when unset.
	Logger *logger.Logger
}

// Strategy is the single capability every trading rule must implement.
// The window contains all bars up to and including the current bar; the
// engine guarantees no future bars are ever visible.
type Strategy interface {
	// Name returns a stable identifier for the strategy.
	Name() string
	// Evaluate inspects the bar window and returns a signal or none.
	// Returning an error skips this strategy for the current bar only.
	Evaluate(ctx Context, window []types.Bar) (optional.Option[types.Signal], error)
}

// TradeObserver is implemented by strategies that adapt to realized trade
// outcomes (ensembles, selectors). The engine notifies the observer after
// every trade close.
type TradeObserver interface {
	OnTradeClosed(trade types.Trade)
}

// EvaluateFunc adapts a plain function into a Strategy, mainly for tests.
type EvaluateFunc func(ctx Context, window []types.Bar) (optional.Option[types.Signal], error)

type funcStrategy struct {
	name string
	fn   EvaluateFunc
}

// NewFunc wraps fn as a named Strategy.
func NewFunc(name string, fn EvaluateFunc) Strategy {
	return &funcStrategy{name: name, fn: fn}
}

// Name implements Strategy.
func (f *funcStrategy) Name() string {
	return f.name
}

// Evaluate implements Strategy.
func (f *funcStrategy) Evaluate(ctx Context, window []types.Bar) (optional.Option[types.Signal], error) {
	return f.fn(ctx, window)
}
