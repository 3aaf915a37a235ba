package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"

	"github.com/helixquant/backsim/internal/indicator"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// RSIReversion fades extremes: long below the oversold level, short above the
// overbought level. Confidence grows with the distance from the threshold.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversion creates an RSI mean-reversion strategy.
func NewRSIReversion(period int, oversold, overbought float64) (*RSIReversion, error) {
	if period <= 1 {
		return nil, errors.Newf(errors.ErrCodeStrategyConfig, "invalid RSI period: %d", period)
	}

	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, errors.Newf(errors.ErrCodeStrategyConfig,
			"invalid RSI levels: oversold=%f overbought=%f", oversold, overbought)
	}

	return &RSIReversion{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
	}, nil
}

// Name implements Strategy.
func (r *RSIReversion) Name() string {
	return fmt.Sprintf("rsi_reversion_%d", r.period)
}

// Evaluate implements Strategy.
func (r *RSIReversion) Evaluate(ctx Context, window []types.Bar) (optional.Option[types.Signal], error) {
	if len(window) < r.period+1 {
		return optional.None[types.Signal](), nil
	}

	rsi := indicator.RSI(window, r.period)
	current := window[len(window)-1]

	switch {
	case rsi <= r.oversold:
		confidence := min(1, 0.5+(r.oversold-rsi)/r.oversold)

		return optional.Some(types.Signal{
			Time:       current.Time,
			Direction:  types.DirectionLong,
			Confidence: confidence,
			StrategyID: r.Name(),
			Reason:     fmt.Sprintf("RSI %.2f below oversold %.2f", rsi, r.oversold),
		}), nil
	case rsi >= r.overbought:
		confidence := min(1, 0.5+(rsi-r.overbought)/(100-r.overbought))

		return optional.Some(types.Signal{
			Time:       current.Time,
			Direction:  types.DirectionShort,
			Confidence: confidence,
			StrategyID: r.Name(),
			Reason:     fmt.Sprintf("RSI %.2f above overbought %.2f", rsi, r.overbought),
		}), nil
	default:
		return optional.None[types.Signal](), nil
	}
}
