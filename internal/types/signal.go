package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Direction is the directional intent of a signal or position.
type Direction string

const (
	// DirectionLong tells the engine to open or hold a long position
	DirectionLong Direction = "LONG"
	// DirectionShort tells the engine to open or hold a short position
	DirectionShort Direction = "SHORT"
	// DirectionFlat tells the engine to stay out of the market
	DirectionFlat Direction = "FLAT"
)

// Opposite returns the opposing trade direction. FLAT has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionFlat
	}
}

// Signal is emitted by a strategy for a given bar. Signals are ephemeral:
// consumed on the bar they are produced on or discarded.
type Signal struct {
	// Time is the time of the bar the signal was produced on
	Time time.Time
	// Direction is the directional intent
	Direction Direction
	// Confidence is the strategy's conviction in [0,1]
	Confidence float64
	// StopLoss is an optional protective stop price
	StopLoss optional.Option[float64]
	// TakeProfit is an optional target price
	TakeProfit optional.Option[float64]
	// StrategyID identifies the emitting strategy
	StrategyID string
	// Reason is a free-form explanation for the signal
	Reason string
}

// IsActionable reports whether the signal asks for a position in the market.
func (s Signal) IsActionable() bool {
	return s.Direction == DirectionLong || s.Direction == DirectionShort
}
