// Package indicator provides the technical calculations strategies build
// signals from. All functions are pure: they read a bar window and return a
// value, never caching or mutating state between calls.
package indicator

import (
	"math"

	"github.com/helixquant/backsim/internal/types"
)

// SMA computes the simple moving average of closes ending at index end.
// Returns NaN when the window does not cover the period.
func SMA(bars []types.Bar, end, period int) float64 {
	if period <= 0 || end-period+1 < 0 || end >= len(bars) {
		return math.NaN()
	}

	sum := 0.0
	for i := end - period + 1; i <= end; i++ {
		sum += bars[i].Close
	}

	return sum / float64(period)
}

// EMA computes the exponential moving average of closes over the last period
// bars, seeded with the SMA of the first period values. Returns NaN when the
// window is shorter than 2*period-1 bars.
func EMA(bars []types.Bar, period int) float64 {
	if period <= 0 || len(bars) < 2*period-1 {
		return math.NaN()
	}

	start := len(bars) - (2*period - 1)
	value := SMA(bars, start+period-1, period)
	multiplier := 2.0 / float64(period+1)

	for i := start + period; i < len(bars); i++ {
		value = (bars[i].Close-value)*multiplier + value
	}

	return value
}

// RSI computes the Relative Strength Index over the last period bar-to-bar
// close changes. A loss-free window reads 100. Returns NaN when the window is
// shorter than period+1 bars.
func RSI(bars []types.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return math.NaN()
	}

	gains := 0.0
	losses := 0.0

	for i := len(bars) - period; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	if losses == 0 {
		return 100
	}

	rs := gains / losses

	return 100 - 100/(1+rs)
}

// ATR computes the average true range over the last period bars. True range
// uses the previous close, so the window must hold period+1 bars.
func ATR(bars []types.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return math.NaN()
	}

	sum := 0.0

	for i := len(bars) - period; i < len(bars); i++ {
		highLow := bars[i].High - bars[i].Low
		highClose := math.Abs(bars[i].High - bars[i-1].Close)
		lowClose := math.Abs(bars[i].Low - bars[i-1].Close)
		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}

	return sum / float64(period)
}
