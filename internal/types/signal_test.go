package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type SignalTestSuite struct {
	suite.Suite
}

func TestSignalSuite(t *testing.T) {
	suite.Run(t, new(SignalTestSuite))
}

func (suite *SignalTestSuite) TestDirectionOpposite() {
	suite.Equal(DirectionShort, DirectionLong.Opposite())
	suite.Equal(DirectionLong, DirectionShort.Opposite())
	suite.Equal(DirectionFlat, DirectionFlat.Opposite())
}

func (suite *SignalTestSuite) TestIsActionable() {
	tests := []struct {
		name       string
		direction  Direction
		actionable bool
	}{
		{"long", DirectionLong, true},
		{"short", DirectionShort, true},
		{"flat", DirectionFlat, false},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			signal := Signal{
				Time:       time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
				Direction:  tc.direction,
				Confidence: 0.8,
				StrategyID: "test",
			}
			suite.Equal(tc.actionable, signal.IsActionable())
		})
	}
}

func (suite *SignalTestSuite) TestBarHelpers() {
	bar := Bar{Open: 100, High: 110, Low: 90, Close: 105}

	suite.InDelta(100.0, bar.Mid(), 1e-9)
	suite.InDelta(20.0, bar.Range(), 1e-9)
}
