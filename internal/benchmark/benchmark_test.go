package benchmark

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/helixquant/backsim/internal/types"
)

type BenchmarkTestSuite struct {
	suite.Suite
}

func TestBenchmarkSuite(t *testing.T) {
	suite.Run(t, new(BenchmarkTestSuite))
}

func curveFrom(equities []float64) []types.EquityPoint {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := make([]types.EquityPoint, len(equities))

	for i, e := range equities {
		curve[i] = types.EquityPoint{
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Equity: e,
		}
	}

	return curve
}

func tradeWithPnL(pnl float64) types.Trade {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	return types.Trade{
		ID:         "t",
		StrategyID: "s",
		Direction:  types.DirectionLong,
		EntryTime:  entry,
		EntryPrice: 100,
		ExitTime:   entry.Add(2 * time.Hour),
		ExitPrice:  100 + pnl,
		Size:       1,
		GrossPnL:   pnl,
		ExitReason: types.ExitReasonSignal,
	}
}

func (suite *BenchmarkTestSuite) TestProfitFactorConventions() {
	// all losers: gross profit 0 -> profit factor 0 and win rate 0
	losers := []types.Trade{tradeWithPnL(-200), tradeWithPnL(-300)}

	report := Compute(Input{
		EquityCurve:    curveFrom([]float64{10000, 9800, 9500}),
		Trades:         losers,
		InitialCapital: 10000,
	})

	suite.Equal(0.0, report.ProfitFactor)
	suite.Equal(0.0, report.WinRate)
	suite.Equal(500.0, report.GrossLoss)
	suite.Equal(0.0, report.GrossProfit)

	// all winners: gross loss 0 -> profit factor +Inf
	winners := []types.Trade{tradeWithPnL(100), tradeWithPnL(50)}

	report = Compute(Input{
		EquityCurve:    curveFrom([]float64{10000, 10100, 10150}),
		Trades:         winners,
		InitialCapital: 10000,
	})

	suite.True(math.IsInf(report.ProfitFactor, 1))
	suite.Equal(1.0, report.WinRate)
}

func (suite *BenchmarkTestSuite) TestZeroTradesProducesSentinels() {
	report := Compute(Input{
		EquityCurve:    curveFrom([]float64{10000, 10000, 10000}),
		InitialCapital: 10000,
	})

	suite.Equal(0, report.NumberOfTrades)
	suite.Equal(0.0, report.WinRate)
	suite.Equal(0.0, report.ProfitFactor)
	suite.Equal(0.0, report.Expectancy)
	suite.Equal(0.0, report.VaR95)
	suite.Equal(0.0, report.CVaR95)
	suite.Equal(0.0, report.SharpeRatio)

	// nothing may be NaN even on a degenerate input
	suite.False(math.IsNaN(report.SortinoRatio))
	suite.False(math.IsNaN(report.CalmarRatio))
	suite.False(math.IsNaN(report.UlcerIndex))
}

func (suite *BenchmarkTestSuite) TestDrawdownStats() {
	// peak 12000 at index 1, trough 9000 at index 3, recovered at index 5
	curve := curveFrom([]float64{10000, 12000, 10500, 9000, 11000, 12500})

	report := Compute(Input{
		EquityCurve:    curve,
		InitialCapital: 10000,
	})

	suite.InDelta(0.25, report.Drawdown.MaxPct, 1e-9)
	suite.InDelta(3000, report.Drawdown.MaxAbs, 1e-9)
	suite.Equal(2, report.Drawdown.DurationBars)
	suite.Equal(2, report.Drawdown.RecoveryBars)
	suite.Positive(report.UlcerIndex)
}

func (suite *BenchmarkTestSuite) TestIdempotence() {
	curve := curveFrom([]float64{10000, 10200, 9900, 10400, 10100, 10800})
	trades := []types.Trade{
		tradeWithPnL(200), tradeWithPnL(-300), tradeWithPnL(500), tradeWithPnL(-100),
	}

	in := Input{
		RunID:          "run-1",
		EquityCurve:    curve,
		Trades:         trades,
		InitialCapital: 10000,
		RiskFreeRate:   0.02,
		BarsPerYear:    252,
	}

	first := Compute(in)
	second := Compute(in)

	// identical except the computation timestamp
	first.Timestamp = time.Time{}
	second.Timestamp = time.Time{}
	suite.Equal(first, second)

	// inputs must not be reordered
	suite.Equal(200.0, trades[0].GrossPnL)
	suite.Equal(-100.0, trades[3].GrossPnL)
}

func (suite *BenchmarkTestSuite) TestTailRisk() {
	trades := make([]types.Trade, 0, 20)
	// nineteen +10 trades and one -100 trade
	for i := 0; i < 19; i++ {
		trades = append(trades, tradeWithPnL(10))
	}
	trades = append(trades, tradeWithPnL(-100))

	report := Compute(Input{
		EquityCurve:    curveFrom([]float64{10000, 10090}),
		Trades:         trades,
		InitialCapital: 10000,
	})

	// 5% tail of 20 trades is exactly the single worst trade
	suite.Equal(-100.0, report.VaR95)
	suite.Equal(-100.0, report.CVaR95)
}

func (suite *BenchmarkTestSuite) TestSharpeAndSortinoSigns() {
	rising := curveFrom([]float64{10000, 10100, 10250, 10300, 10500, 10450, 10700})

	report := Compute(Input{
		EquityCurve:    rising,
		InitialCapital: 10000,
		BarsPerYear:    252,
	})

	suite.Positive(report.SharpeRatio)
	suite.Positive(report.SortinoRatio)
	suite.Positive(report.CAGR)
	suite.Positive(report.OmegaRatio)
}

func (suite *BenchmarkTestSuite) TestExpectancyAndHoldingTime() {
	trades := []types.Trade{tradeWithPnL(100), tradeWithPnL(-40)}

	report := Compute(Input{
		EquityCurve:    curveFrom([]float64{10000, 10060}),
		Trades:         trades,
		InitialCapital: 10000,
	})

	suite.InDelta(30, report.Expectancy, 1e-9)
	suite.Equal(7200, report.HoldingTime.Min)
	suite.Equal(7200, report.HoldingTime.Max)
	suite.Equal(7200, report.HoldingTime.Avg)
}

func (suite *BenchmarkTestSuite) TestBuyAndHoldComparison() {
	report := Compute(Input{
		EquityCurve:    curveFrom([]float64{10000, 10500}),
		InitialCapital: 10000,
		FirstPrice:     100,
		LastPrice:      110,
	})

	// 100 units bought at 100, marked at 110
	suite.InDelta(1000, report.BuyAndHoldPnL, 1e-9)
}
