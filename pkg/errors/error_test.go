package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNew() {
	err := New(ErrCodeDataEmptySeries, "series has no bars")

	suite.Equal(ErrCodeDataEmptySeries, err.Code)
	suite.Equal("series has no bars", err.Message)
	suite.Nil(err.Cause)
	suite.Equal("[102] series has no bars", err.Error())
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(ErrCodeDataOutOfOrder, "bar %d precedes bar %d", 5, 4)

	suite.Equal(ErrCodeDataOutOfOrder, err.Code)
	suite.Equal("bar 5 precedes bar 4", err.Message)
}

func (suite *ErrorTestSuite) TestWrap() {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrCodeStoreWrite, "failed to persist trades", cause)

	suite.Equal(ErrCodeStoreWrite, err.Code)
	suite.Equal(cause, err.Unwrap())
	suite.Contains(err.Error(), "disk full")
}

func (suite *ErrorTestSuite) TestGetCode() {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"typed error", New(ErrCodeMarginCall, "margin call"), ErrCodeMarginCall},
		{"wrapped typed error", fmt.Errorf("outer: %w", New(ErrCodeNoTrades, "no trades")), ErrCodeNoTrades},
		{"plain error", fmt.Errorf("plain"), ErrCodeUnknown},
		{"nil error", nil, ErrCodeUnknown},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, GetCode(tc.err))
		})
	}
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodePositionLimitReached, "max positions reached")

	suite.True(HasCode(err, ErrCodePositionLimitReached))
	suite.False(HasCode(err, ErrCodeMarginCall))
}

func (suite *ErrorTestSuite) TestIsFatal() {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"data error", New(ErrCodeDataOutOfOrder, "out of order"), true},
		{"config error", New(ErrCodeInvalidInSamplePct, "bad split"), true},
		{"margin call", New(ErrCodeMarginCall, "margin call"), true},
		{"strategy error", New(ErrCodeStrategyEvaluation, "bad bar"), false},
		{"execution error", New(ErrCodePositionLimitReached, "limit"), false},
		{"plain error", fmt.Errorf("plain"), false},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.fatal, IsFatal(tc.err))
		})
	}
}
