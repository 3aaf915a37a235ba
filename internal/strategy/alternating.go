package strategy

import (
	"github.com/moznion/go-optional"

	"github.com/helixquant/backsim/internal/types"
)

// Alternating emits LONG and SHORT on alternating bars with full confidence.
// A deterministic strategy used to exercise the engine in tests and demos:
// with zero friction the trade count equals the signal count.
type Alternating struct {
	count int
}

// NewAlternating creates an alternating-direction strategy.
func NewAlternating() *Alternating {
	return &Alternating{count: 0}
}

// Name implements Strategy.
func (a *Alternating) Name() string {
	return "alternating"
}

// Evaluate implements Strategy.
func (a *Alternating) Evaluate(ctx Context, window []types.Bar) (optional.Option[types.Signal], error) {
	current := window[len(window)-1]

	direction := types.DirectionLong
	if a.count%2 == 1 {
		direction = types.DirectionShort
	}

	a.count++

	return optional.Some(types.Signal{
		Time:       current.Time,
		Direction:  direction,
		Confidence: 1,
		StrategyID: a.Name(),
		Reason:     "alternating test signal",
	}), nil
}
