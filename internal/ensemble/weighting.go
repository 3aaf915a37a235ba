package ensemble

import (
	"math"

	"github.com/helixquant/backsim/internal/types"
)

// setEqualWeights resets every sub-strategy to 1/N.
func (e *Ensemble) setEqualWeights() {
	n := float64(len(e.strategies))
	for _, s := range e.strategies {
		e.weights[s.Name()] = 1 / n
	}
}

// rebalance recomputes the weights from each strategy's trailing trades
// according to the configured method. Weights always end non-negative and
// summing to 1.
func (e *Ensemble) rebalance() {
	if e.config.Method == WeightingEqual {
		e.setEqualWeights()

		return
	}

	scores := make(map[string]float64, len(e.strategies))

	switch e.config.Method {
	case WeightingAdaptive:
		perf := e.scoreAll(performanceScore)
		sharpe := e.scoreAll(sharpeScore)
		winRate := e.scoreAll(winRateScore)

		normalizeScores(perf)
		normalizeScores(sharpe)
		normalizeScores(winRate)

		for _, s := range e.strategies {
			id := s.Name()
			scores[id] = AdaptivePerformanceShare*perf[id] +
				AdaptiveSharpeShare*sharpe[id] +
				AdaptiveWinRateShare*winRate[id]
		}
	case WeightingPerformance:
		scores = e.scoreAll(performanceScore)
	case WeightingSharpe:
		scores = e.scoreAll(sharpeScore)
	case WeightingWinRate:
		scores = e.scoreAll(winRateScore)
	case WeightingProfitFactor:
		scores = e.scoreAll(profitFactorScore)
	case WeightingInverseVolatility:
		scores = e.scoreAll(inverseVolatilityScore)
	}

	normalizeScores(scores)
	e.weights = scores
}

// scoreAll applies the scoring function to every strategy's trailing window.
func (e *Ensemble) scoreAll(score func([]types.Trade) float64) map[string]float64 {
	out := make(map[string]float64, len(e.strategies))
	for _, s := range e.strategies {
		out[s.Name()] = score(e.trailing[s.Name()])
	}

	return out
}

// normalizeScores turns raw scores into weights in place: non-positive scores
// get weight 0 and the rest renormalize proportionally to sum to 1; if every
// score is non-positive, fall back to equal weights.
func normalizeScores(scores map[string]float64) {
	sum := 0.0

	for id, score := range scores {
		if score <= 0 || math.IsNaN(score) || math.IsInf(score, 0) {
			scores[id] = 0

			continue
		}

		sum += score
	}

	if sum <= 0 {
		equal := 1 / float64(len(scores))
		for id := range scores {
			scores[id] = equal
		}

		return
	}

	for id := range scores {
		scores[id] /= sum
	}
}

func performanceScore(trades []types.Trade) float64 {
	total := 0.0
	for _, t := range trades {
		total += t.NetPnL()
	}

	return total
}

func sharpeScore(trades []types.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}

	mean := performanceScore(trades) / float64(len(trades))

	variance := 0.0
	for _, t := range trades {
		d := t.NetPnL() - mean
		variance += d * d
	}
	variance /= float64(len(trades) - 1)

	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance)
}

func winRateScore(trades []types.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}

	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}

	return float64(wins) / float64(len(trades))
}

// profitFactorScore returns gross profit over gross loss. A loss-free window
// scores its gross profit directly so it stays finite for normalization.
func profitFactorScore(trades []types.Trade) float64 {
	grossProfit := 0.0
	grossLoss := 0.0

	for _, t := range trades {
		pnl := t.NetPnL()
		if pnl > 0 {
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}
	}

	if grossLoss == 0 {
		return grossProfit
	}

	return grossProfit / grossLoss
}

func inverseVolatilityScore(trades []types.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}

	mean := performanceScore(trades) / float64(len(trades))

	variance := 0.0
	for _, t := range trades {
		d := t.NetPnL() - mean
		variance += d * d
	}
	variance /= float64(len(trades) - 1)

	if variance == 0 {
		return 0
	}

	return 1 / math.Sqrt(variance)
}
