// Package benchmark computes the risk and performance statistics of a
// completed run. Compute is a pure function over the final equity curve and
// trade ledger: no side effects, no mutation of inputs, reproducible.
package benchmark

import (
	"math"
	"sort"
	"time"

	"github.com/helixquant/backsim/internal/types"
)

// DefaultBarsPerYear annualizes runs whose bar frequency is unknown.
const DefaultBarsPerYear = 252.0

// Input bundles everything the metrics suite needs from a completed run.
type Input struct {
	RunID          string
	EquityCurve    []types.EquityPoint
	Trades         []types.Trade
	InitialCapital float64
	// RiskFreeRate is the annualized risk-free rate used in Sharpe and
	// Sortino.
	RiskFreeRate float64
	// BarsPerYear is the annualization factor for per-bar returns. Zero
	// falls back to DefaultBarsPerYear.
	BarsPerYear float64
	// FirstPrice and LastPrice bound the buy-and-hold comparison. Both zero
	// disables it.
	FirstPrice float64
	LastPrice  float64
}

// Compute produces the full metrics bundle. With zero trades every
// trade-derived metric is reported as 0; nothing is ever NaN.
func Compute(in Input) types.PerformanceReport {
	report := types.PerformanceReport{
		ID:             in.RunID,
		Timestamp:      time.Now().UTC(),
		InitialCapital: in.InitialCapital,
	}

	barsPerYear := in.BarsPerYear
	if barsPerYear <= 0 {
		barsPerYear = DefaultBarsPerYear
	}

	if len(in.EquityCurve) > 0 {
		report.FinalEquity = in.EquityCurve[len(in.EquityCurve)-1].Equity
	} else {
		report.FinalEquity = in.InitialCapital
	}

	report.NetProfit = report.FinalEquity - in.InitialCapital
	if in.InitialCapital > 0 {
		report.TotalReturn = report.NetProfit / in.InitialCapital
	}

	report.CAGR = cagr(in.EquityCurve, in.InitialCapital, report.FinalEquity, barsPerYear)

	returns := barReturns(in.EquityCurve)
	rfPerBar := in.RiskFreeRate / barsPerYear

	report.SharpeRatio = sharpe(returns, rfPerBar, barsPerYear)
	report.SortinoRatio = sortino(returns, rfPerBar, barsPerYear)
	report.OmegaRatio = omega(returns)

	report.Drawdown = drawdown(in.EquityCurve)
	report.UlcerIndex = ulcerIndex(in.EquityCurve)

	if report.Drawdown.MaxPct > 0 {
		report.CalmarRatio = report.CAGR / report.Drawdown.MaxPct
	}

	if report.Drawdown.MaxAbs > 0 {
		report.RecoveryFactor = report.NetProfit / report.Drawdown.MaxAbs
	}

	fillTradeStats(&report, in.Trades)

	if in.FirstPrice > 0 && in.InitialCapital > 0 {
		units := in.InitialCapital / in.FirstPrice
		report.BuyAndHoldPnL = units * (in.LastPrice - in.FirstPrice)
	}

	return report
}

// barReturns converts the equity curve into simple per-bar returns.
func barReturns(curve []types.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)

			continue
		}

		returns = append(returns, (curve[i].Equity-prev)/prev)
	}

	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	total := 0.0
	for _, v := range values {
		total += v
	}

	return total / float64(len(values))
}

func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)

	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}

func sharpe(returns []float64, rfPerBar, barsPerYear float64) float64 {
	sd := stdev(returns)
	if sd == 0 {
		return 0
	}

	return (mean(returns) - rfPerBar) / sd * math.Sqrt(barsPerYear)
}

func sortino(returns []float64, rfPerBar, barsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	downside := 0.0
	for _, r := range returns {
		if excess := r - rfPerBar; excess < 0 {
			downside += excess * excess
		}
	}
	downside = math.Sqrt(downside / float64(len(returns)))

	if downside == 0 {
		return 0
	}

	return (mean(returns) - rfPerBar) / downside * math.Sqrt(barsPerYear)
}

// omega is the probability-weighted gain/loss ratio at a 0% threshold.
func omega(returns []float64) float64 {
	gains := 0.0
	losses := 0.0

	for _, r := range returns {
		if r > 0 {
			gains += r
		} else {
			losses += -r
		}
	}

	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}

		return 0
	}

	return gains / losses
}

func cagr(curve []types.EquityPoint, initial, final, barsPerYear float64) float64 {
	if initial <= 0 || final <= 0 || len(curve) < 2 {
		return 0
	}

	years := curve[len(curve)-1].Time.Sub(curve[0].Time).Hours() / (24 * 365.25)
	if years <= 0 {
		years = float64(len(curve)) / barsPerYear
	}

	if years <= 0 {
		return 0
	}

	return math.Pow(final/initial, 1/years) - 1
}

// drawdown scans the curve once, tracking the running peak and the worst
// peak-to-trough decline with its duration and recovery time in bars.
func drawdown(curve []types.EquityPoint) types.DrawdownStats {
	var stats types.DrawdownStats

	if len(curve) == 0 {
		return stats
	}

	peak := curve[0].Equity
	peakIndex := 0

	for i, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
			peakIndex = i

			continue
		}

		if peak <= 0 {
			continue
		}

		dd := peak - point.Equity
		ddPct := dd / peak

		if ddPct > stats.MaxPct {
			stats.MaxPct = ddPct
			stats.MaxAbs = dd
			stats.DurationBars = i - peakIndex

			// look forward for recovery back to the peak
			stats.RecoveryBars = 0
			for j := i + 1; j < len(curve); j++ {
				if curve[j].Equity >= peak {
					stats.RecoveryBars = j - i

					break
				}
			}
		}
	}

	return stats
}

// ulcerIndex is the root-mean-square of the percentage drawdown across the
// whole curve.
func ulcerIndex(curve []types.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0].Equity
	sumSq := 0.0

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak <= 0 {
			continue
		}

		ddPct := (peak - point.Equity) / peak * 100
		sumSq += ddPct * ddPct
	}

	return math.Sqrt(sumSq / float64(len(curve)))
}

// fillTradeStats populates every trade-derived field of the report. Zero
// trades leave them all at their zero sentinel.
func fillTradeStats(report *types.PerformanceReport, trades []types.Trade) {
	report.NumberOfTrades = len(trades)
	if len(trades) == 0 {
		return
	}

	pnls := make([]float64, 0, len(trades))

	minHold := trades[0].HoldingTime()
	maxHold := trades[0].HoldingTime()
	var totalHold time.Duration

	for _, trade := range trades {
		pnl := trade.NetPnL()
		pnls = append(pnls, pnl)

		if pnl > 0 {
			report.WinningTrades++
			report.GrossProfit += pnl
		} else {
			report.LosingTrades++
			report.GrossLoss += -pnl
		}

		report.TotalCommission += trade.Commission
		report.TotalSlippage += trade.SlippageCost

		hold := trade.HoldingTime()
		if hold < minHold {
			minHold = hold
		}

		if hold > maxHold {
			maxHold = hold
		}

		totalHold += hold
	}

	report.WinRate = float64(report.WinningTrades) / float64(len(trades))
	report.Expectancy = mean(pnls)

	switch {
	case report.GrossProfit == 0:
		report.ProfitFactor = 0
	case report.GrossLoss == 0:
		report.ProfitFactor = math.Inf(1)
	default:
		report.ProfitFactor = report.GrossProfit / report.GrossLoss
	}

	report.VaR95, report.CVaR95 = tailRisk(pnls, 0.05)

	report.HoldingTime = types.TradeHoldingTime{
		Min: int(minHold.Seconds()),
		Max: int(maxHold.Seconds()),
		Avg: int((totalHold / time.Duration(len(trades))).Seconds()),
	}
}

// tailRisk returns the empirical quantile of the trade P&L distribution and
// the conditional mean of the tail at or below it. The input is copied, never
// reordered in place.
func tailRisk(pnls []float64, level float64) (valueAtRisk, conditional float64) {
	if len(pnls) == 0 {
		return 0, 0
	}

	sorted := make([]float64, len(pnls))
	copy(sorted, pnls)
	sort.Float64s(sorted)

	k := int(math.Ceil(level*float64(len(sorted)))) - 1
	if k < 0 {
		k = 0
	}

	valueAtRisk = sorted[k]
	conditional = mean(sorted[:k+1])

	return valueAtRisk, conditional
}
