package strategy

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"

	"github.com/helixquant/backsim/internal/indicator"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// SMACrossover goes long when the fast moving average crosses above the slow
// one and short on the opposite cross. Confidence scales with the separation
// of the two averages relative to price.
type SMACrossover struct {
	fastPeriod int
	slowPeriod int
}

// NewSMACrossover creates an SMA crossover strategy.
func NewSMACrossover(fastPeriod, slowPeriod int) (*SMACrossover, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 || fastPeriod >= slowPeriod {
		return nil, errors.Newf(errors.ErrCodeStrategyConfig,
			"invalid SMA periods: fast=%d slow=%d", fastPeriod, slowPeriod)
	}

	return &SMACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}, nil
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return fmt.Sprintf("sma_crossover_%d_%d", s.fastPeriod, s.slowPeriod)
}

// Evaluate implements Strategy.
func (s *SMACrossover) Evaluate(ctx Context, window []types.Bar) (optional.Option[types.Signal], error) {
	// need one extra bar to detect the cross itself
	if len(window) < s.slowPeriod+1 {
		return optional.None[types.Signal](), nil
	}

	fastNow := indicator.SMA(window, len(window)-1, s.fastPeriod)
	slowNow := indicator.SMA(window, len(window)-1, s.slowPeriod)
	fastPrev := indicator.SMA(window, len(window)-2, s.fastPeriod)
	slowPrev := indicator.SMA(window, len(window)-2, s.slowPeriod)

	current := window[len(window)-1]

	var direction types.Direction

	switch {
	case fastPrev <= slowPrev && fastNow > slowNow:
		direction = types.DirectionLong
	case fastPrev >= slowPrev && fastNow < slowNow:
		direction = types.DirectionShort
	default:
		return optional.None[types.Signal](), nil
	}

	separation := math.Abs(fastNow-slowNow) / current.Close
	confidence := math.Min(1, 0.5+separation*100)

	return optional.Some(types.Signal{
		Time:       current.Time,
		Direction:  direction,
		Confidence: confidence,
		StrategyID: s.Name(),
		Reason:     fmt.Sprintf("fast %.4f crossed slow %.4f", fastNow, slowNow),
	}), nil
}
