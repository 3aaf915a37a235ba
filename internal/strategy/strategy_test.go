package strategy

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/types"
)

type StrategyTestSuite struct {
	suite.Suite

	ctx Context
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) SetupTest() {
	suite.ctx = Context{
		Symbol: "EURUSD",
		Logger: logger.NewNopLogger(),
	}
}

func barsFromCloses(closes []float64) []types.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}

	return bars
}

func (suite *StrategyTestSuite) TestSMACrossoverConfigValidation() {
	_, err := NewSMACrossover(0, 10)
	suite.Error(err)

	_, err = NewSMACrossover(10, 5)
	suite.Error(err)

	s, err := NewSMACrossover(2, 4)
	suite.NoError(err)
	suite.Equal("sma_crossover_2_4", s.Name())
}

func (suite *StrategyTestSuite) TestSMACrossoverSignalsOnCross() {
	s, err := NewSMACrossover(2, 4)
	suite.NoError(err)

	// falling then sharply rising closes force a bullish cross at the end
	window := barsFromCloses([]float64{110, 108, 106, 104, 102, 100, 104, 112})

	signal, err := s.Evaluate(suite.ctx, window)
	suite.NoError(err)
	suite.True(signal.IsSome())
	suite.Equal(types.DirectionLong, signal.Unwrap().Direction)
	suite.Greater(signal.Unwrap().Confidence, 0.0)
	suite.LessOrEqual(signal.Unwrap().Confidence, 1.0)
}

func (suite *StrategyTestSuite) TestSMACrossoverNeedsWarmup() {
	s, err := NewSMACrossover(2, 4)
	suite.NoError(err)

	signal, err := s.Evaluate(suite.ctx, barsFromCloses([]float64{100, 101, 102}))
	suite.NoError(err)
	suite.True(signal.IsNone())
}

func (suite *StrategyTestSuite) TestRSIReversionOversold() {
	r, err := NewRSIReversion(5, 30, 70)
	suite.NoError(err)

	// monotonically falling closes drive RSI to 0
	window := barsFromCloses([]float64{110, 109, 108, 107, 106, 105, 104})

	signal, err := r.Evaluate(suite.ctx, window)
	suite.NoError(err)
	suite.True(signal.IsSome())
	suite.Equal(types.DirectionLong, signal.Unwrap().Direction)
}

func (suite *StrategyTestSuite) TestRSIReversionOverbought() {
	r, err := NewRSIReversion(5, 30, 70)
	suite.NoError(err)

	window := barsFromCloses([]float64{100, 101, 102, 103, 104, 105, 106})

	signal, err := r.Evaluate(suite.ctx, window)
	suite.NoError(err)
	suite.True(signal.IsSome())
	suite.Equal(types.DirectionShort, signal.Unwrap().Direction)
}

func (suite *StrategyTestSuite) TestAlternatingEmitsEveryBar() {
	a := NewAlternating()
	window := barsFromCloses([]float64{100})

	expected := []types.Direction{
		types.DirectionLong, types.DirectionShort,
		types.DirectionLong, types.DirectionShort,
	}

	for _, want := range expected {
		signal, err := a.Evaluate(suite.ctx, window)
		suite.NoError(err)
		suite.True(signal.IsSome())
		suite.Equal(want, signal.Unwrap().Direction)
		suite.Equal(1.0, signal.Unwrap().Confidence)
	}
}

func (suite *StrategyTestSuite) TestNewFunc() {
	called := 0
	s := NewFunc("probe", func(ctx Context, window []types.Bar) (optional.Option[types.Signal], error) {
		called++

		return optional.None[types.Signal](), nil
	})

	suite.Equal("probe", s.Name())

	_, err := s.Evaluate(suite.ctx, barsFromCloses([]float64{100}))
	suite.NoError(err)
	suite.Equal(1, called)
}
