package engine

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/series"
	"github.com/helixquant/backsim/internal/strategy"
	"github.com/helixquant/backsim/internal/types"
)

type EngineTestSuite struct {
	suite.Suite

	log *logger.Logger
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	suite.log = logger.NewNopLogger()
}

// flatBars builds bars whose open/high/low/close all equal the given close,
// so stop and target levels never trigger accidentally.
func flatBars(closes []float64) []types.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}

	return bars
}

func frictionlessConfig() Config {
	config := DefaultConfig()
	config.Commission = 0
	config.SlippagePct = 0
	config.SpreadPips = 0
	config.SpeedMode = SpeedModeFast
	config.PositionSizePct = 0.1
	config.ConfidenceThreshold = 0.5
	config.StopOnMarginCall = false

	return config
}

func (suite *EngineTestSuite) mustSeries(closes []float64) *series.Series {
	s, err := series.New("TEST", "1h", flatBars(closes))
	suite.Require().NoError(err)

	return s
}

func (suite *EngineTestSuite) TestAlternatingStrategyTradeCountAndEquity() {
	// 100 bars alternating between 100 and 101
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}

	s := suite.mustSeries(closes)

	eng, err := New(frictionlessConfig(), suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), s, []strategy.Strategy{strategy.NewAlternating()})
	suite.Require().NoError(err)

	// one signal per bar, one closed trade per signal
	suite.Len(result.Trades, 100)
	suite.Equal(types.TerminationCompleted, result.TerminationReason)
	suite.Len(result.EquityCurve, 100)

	// replay the arithmetic by hand: every reversal captures the 1.0 move
	equity := 10000.0

	for i := 0; i < 99; i++ {
		size := equity * 0.1 / closes[i]
		diff := closes[i+1] - closes[i]

		if i%2 == 0 { // long entered at even bars
			equity += diff * size
		} else { // short entered at odd bars
			equity -= diff * size
		}
	}
	// final position opens and closes on the last bar with zero P&L

	suite.InDelta(equity, result.FinalEquity, 1e-6)

	// the ledger alone accounts for the full equity change
	ledgerSum := 0.0
	for _, trade := range result.Trades {
		ledgerSum += trade.NetPnL()
	}

	suite.InDelta(result.FinalEquity-result.InitialCapital, ledgerSum, 1e-6)
}

func (suite *EngineTestSuite) TestDeterminismAcrossSpeedModes() {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}

	run := func(mode SpeedMode) *Result {
		config := frictionlessConfig()
		config.Commission = 0.001
		config.SlippagePct = 0.0005
		config.SpeedMode = mode
		config.SlowDelayMs = 1

		eng, err := New(config, suite.log)
		suite.Require().NoError(err)

		eng.sleep = func(time.Duration) {} // timing must never affect outcomes

		s := suite.mustSeries(closes)
		result, err := eng.Run(context.Background(), s, []strategy.Strategy{strategy.NewAlternating()})
		suite.Require().NoError(err)

		return result
	}

	baseline := run(SpeedModeFast)

	for _, mode := range []SpeedMode{SpeedModeNormal, SpeedModeSlow, SpeedModeRealtime, SpeedModeHFTTest} {
		result := run(mode)

		suite.Require().Len(result.Trades, len(baseline.Trades), "mode %s", mode)

		for i := range baseline.Trades {
			suite.Equal(baseline.Trades[i].EntryPrice, result.Trades[i].EntryPrice)
			suite.Equal(baseline.Trades[i].ExitPrice, result.Trades[i].ExitPrice)
			suite.Equal(baseline.Trades[i].GrossPnL, result.Trades[i].GrossPnL)
			suite.Equal(baseline.Trades[i].Direction, result.Trades[i].Direction)
		}

		suite.Equal(baseline.FinalEquity, result.FinalEquity)
	}
}

func (suite *EngineTestSuite) TestRepeatedRunsAreBitIdentical() {
	closes := []float64{100, 102, 101, 103, 99, 104, 98, 105}

	config := frictionlessConfig()
	config.Commission = 0.002
	config.SlippagePct = 0.001

	run := func() *Result {
		eng, err := New(config, suite.log)
		suite.Require().NoError(err)

		result, err := eng.Run(context.Background(), suite.mustSeries(closes), []strategy.Strategy{strategy.NewAlternating()})
		suite.Require().NoError(err)

		return result
	}

	first := run()
	second := run()

	// strip the per-run identifiers before comparing ledgers
	for i := range first.Trades {
		first.Trades[i].ID = ""
		second.Trades[i].ID = ""
	}

	suite.Equal(first.Trades, second.Trades)
	suite.Equal(first.FinalEquity, second.FinalEquity)
}

func (suite *EngineTestSuite) TestNoLookahead() {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	s := suite.mustSeries(closes)

	// the probe asserts the engine only ever shows bars up to the current one
	seen := 0
	probe := strategy.NewFunc("probe", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		suite.Require().Len(window, seen+1)
		suite.Require().Equal(closes[seen], window[len(window)-1].Close)
		seen++

		return optional.None[types.Signal](), nil
	})

	eng, err := New(frictionlessConfig(), suite.log)
	suite.Require().NoError(err)

	_, err = eng.Run(context.Background(), s, []strategy.Strategy{probe})
	suite.Require().NoError(err)
	suite.Equal(len(closes), seen)
}

func (suite *EngineTestSuite) TestStopLossExit() {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Time: start, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1},
		{Time: start.Add(time.Hour), Open: 99, High: 99, Low: 94, Close: 96, Volume: 1},
	}

	s, err := series.New("TEST", "1h", bars)
	suite.Require().NoError(err)

	entered := false
	strat := strategy.NewFunc("stops", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		if entered {
			return optional.None[types.Signal](), nil
		}

		entered = true

		return optional.Some(types.Signal{
			Time:       window[len(window)-1].Time,
			Direction:  types.DirectionLong,
			Confidence: 1,
			StopLoss:   optional.Some(95.0),
			TakeProfit: optional.Some(110.0),
			StrategyID: "stops",
		}), nil
	})

	eng, err := New(frictionlessConfig(), suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), s, []strategy.Strategy{strat})
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(types.ExitReasonStopLoss, result.Trades[0].ExitReason)
	suite.Equal(95.0, result.Trades[0].ExitPrice)
	suite.Negative(result.Trades[0].NetPnL())
}

func (suite *EngineTestSuite) TestTakeProfitGapFillsAtOpen() {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Time: start, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1},
		{Time: start.Add(time.Hour), Open: 115, High: 116, Low: 114, Close: 115, Volume: 1},
	}

	s, err := series.New("TEST", "1h", bars)
	suite.Require().NoError(err)

	entered := false
	strat := strategy.NewFunc("gaps", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		if entered {
			return optional.None[types.Signal](), nil
		}

		entered = true

		return optional.Some(types.Signal{
			Time:       window[len(window)-1].Time,
			Direction:  types.DirectionLong,
			Confidence: 1,
			TakeProfit: optional.Some(110.0),
			StrategyID: "gaps",
		}), nil
	})

	eng, err := New(frictionlessConfig(), suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), s, []strategy.Strategy{strat})
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(types.ExitReasonTakeProfit, result.Trades[0].ExitReason)
	// gapped past the target, filled at the bar open
	suite.Equal(115.0, result.Trades[0].ExitPrice)
}

func (suite *EngineTestSuite) TestMarginCallHaltsRun() {
	closes := []float64{100, 90, 70, 49, 48, 47}

	config := frictionlessConfig()
	config.PositionSizePct = 1.0
	config.StopOnMarginCall = true
	config.MarginCallLevel = 0.5

	longOnce := suite.longOnceStrategy()

	eng, err := New(config, suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), suite.mustSeries(closes), []strategy.Strategy{longOnce})
	suite.Require().NoError(err)

	suite.Equal(types.TerminationMarginCall, result.TerminationReason)
	suite.Require().Len(result.Trades, 1)
	suite.Equal(types.ExitReasonMarginCall, result.Trades[0].ExitReason)
	// halted at the 49 bar, bars after it never processed
	suite.Len(result.EquityCurve, 4)
	suite.Less(result.FinalEquity, 5001.0)

	foundEvent := false
	for _, event := range result.Events {
		if event.Kind == types.EventMarginCall {
			foundEvent = true
		}
	}
	suite.True(foundEvent)
}

func (suite *EngineTestSuite) longOnceStrategy() strategy.Strategy {
	entered := false

	return strategy.NewFunc("long_once", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		if entered {
			return optional.None[types.Signal](), nil
		}

		entered = true

		return optional.Some(types.Signal{
			Time:       window[len(window)-1].Time,
			Direction:  types.DirectionLong,
			Confidence: 1,
			StrategyID: "long_once",
		}), nil
	})
}

func (suite *EngineTestSuite) TestShortSellingDisabledRejectsEntry() {
	config := frictionlessConfig()
	config.EnableShortSelling = false

	shortOnce := strategy.NewFunc("short_once", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		if len(window) > 1 {
			return optional.None[types.Signal](), nil
		}

		return optional.Some(types.Signal{
			Time:       window[len(window)-1].Time,
			Direction:  types.DirectionShort,
			Confidence: 1,
			StrategyID: "short_once",
		}), nil
	})

	eng, err := New(config, suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), suite.mustSeries([]float64{100, 101, 102}), []strategy.Strategy{shortOnce})
	suite.Require().NoError(err)

	suite.Empty(result.Trades)

	rejected := false
	for _, event := range result.Events {
		if event.Kind == types.EventEntryRejected {
			rejected = true
		}
	}
	suite.True(rejected)
}

func (suite *EngineTestSuite) TestConfidenceThresholdFiltersSignals() {
	weak := strategy.NewFunc("weak", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		return optional.Some(types.Signal{
			Time:       window[len(window)-1].Time,
			Direction:  types.DirectionLong,
			Confidence: 0.3,
			StrategyID: "weak",
		}), nil
	})

	eng, err := New(frictionlessConfig(), suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), suite.mustSeries([]float64{100, 101, 102}), []strategy.Strategy{weak})
	suite.Require().NoError(err)

	suite.Empty(result.Trades)
}

func (suite *EngineTestSuite) TestStrategyErrorSkipsBarOnly() {
	calls := 0
	flaky := strategy.NewFunc("flaky", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		calls++
		if calls == 2 {
			return optional.None[types.Signal](), assertError{}
		}

		return optional.None[types.Signal](), nil
	})

	eng, err := New(frictionlessConfig(), suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), suite.mustSeries([]float64{100, 101, 102, 103}), []strategy.Strategy{flaky})
	suite.Require().NoError(err)

	suite.Equal(types.TerminationCompleted, result.TerminationReason)
	suite.Equal(4, calls)

	errorEvents := 0
	for _, event := range result.Events {
		if event.Kind == types.EventStrategyError {
			errorEvents++
		}
	}
	suite.Equal(1, errorEvents)
}

func (suite *EngineTestSuite) TestStrictStrategyErrorHaltsRun() {
	flaky := strategy.NewFunc("flaky", func(ctx strategy.Context, window []types.Bar) (optional.Option[types.Signal], error) {
		return optional.None[types.Signal](), assertError{}
	})

	config := frictionlessConfig()
	config.StrictStrategyErrors = true

	eng, err := New(config, suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), suite.mustSeries([]float64{100, 101, 102}), []strategy.Strategy{flaky})
	suite.Require().NoError(err)

	suite.Equal(types.TerminationStrategyError, result.TerminationReason)
}

func (suite *EngineTestSuite) TestCancellationReturnsPartialResult() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng, err := New(frictionlessConfig(), suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(ctx, suite.mustSeries([]float64{100, 101, 102}), []strategy.Strategy{strategy.NewAlternating()})
	suite.Require().NoError(err)

	suite.Equal(types.TerminationCancelled, result.TerminationReason)
}

func (suite *EngineTestSuite) TestFrictionAccounting() {
	config := frictionlessConfig()
	config.Commission = 0.001
	config.SlippagePct = 0.002

	closes := []float64{100, 110}

	eng, err := New(config, suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), suite.mustSeries(closes), []strategy.Strategy{suite.longOnceStrategy()})
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	trade := result.Trades[0]

	suite.Equal(100.0, trade.EntryPrice)
	suite.Equal(110.0, trade.ExitPrice)
	suite.Positive(trade.Commission)
	suite.Positive(trade.SlippageCost)
	suite.InDelta(10.0*trade.Size, trade.GrossPnL, 1e-9)

	// the ledger fully explains the equity change
	suite.InDelta(result.FinalEquity-result.InitialCapital, trade.NetPnL(), 1e-6)
}

func (suite *EngineTestSuite) TestSlowModePacesBetweenBars() {
	config := frictionlessConfig()
	config.SpeedMode = SpeedModeSlow
	config.SlowDelayMs = 5

	eng, err := New(config, suite.log)
	suite.Require().NoError(err)

	sleeps := 0
	eng.sleep = func(d time.Duration) {
		suite.Equal(5*time.Millisecond, d)
		sleeps++
	}

	_, err = eng.Run(context.Background(), suite.mustSeries([]float64{100, 101, 102, 103}), []strategy.Strategy{strategy.NewAlternating()})
	suite.Require().NoError(err)

	suite.Equal(3, sleeps)
}

func (suite *EngineTestSuite) TestRealtimeModeSleepsBarDelta() {
	config := frictionlessConfig()
	config.SpeedMode = SpeedModeRealtime

	eng, err := New(config, suite.log)
	suite.Require().NoError(err)

	var slept []time.Duration
	eng.sleep = func(d time.Duration) {
		slept = append(slept, d)
	}

	_, err = eng.Run(context.Background(), suite.mustSeries([]float64{100, 101, 102}), []strategy.Strategy{strategy.NewAlternating()})
	suite.Require().NoError(err)

	suite.Equal([]time.Duration{time.Hour, time.Hour}, slept)
}

func (suite *EngineTestSuite) TestTrackIntrabarData() {
	config := frictionlessConfig()
	config.TrackIntrabarData = true

	eng, err := New(config, suite.log)
	suite.Require().NoError(err)

	result, err := eng.Run(context.Background(), suite.mustSeries([]float64{100, 101}), []strategy.Strategy{strategy.NewAlternating()})
	suite.Require().NoError(err)

	// four path points per bar
	suite.Len(result.Intrabar, 8)
}

func (suite *EngineTestSuite) TestInvalidConfigRejectedAtConstruction() {
	config := DefaultConfig()
	config.InitialCapital = -1

	_, err := New(config, suite.log)
	suite.Error(err)

	config = DefaultConfig()
	config.PositionSizePct = 0

	_, err = New(config, suite.log)
	suite.Error(err)

	config = DefaultConfig()
	config.SpeedMode = "WARP"

	_, err = New(config, suite.log)
	suite.Error(err)
}

// assertError is a minimal error used to provoke strategy failures.
type assertError struct{}

func (assertError) Error() string { return "synthetic strategy failure" }
