package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	log, err := NewLogger()

	suite.NoError(err)
	suite.NotNil(log)
	suite.NotNil(log.Logger)
}

func (suite *LoggerTestSuite) TestNewDebugLogger() {
	log, err := NewDebugLogger()

	suite.NoError(err)
	suite.NotNil(log)
}

func (suite *LoggerTestSuite) TestNewNopLogger() {
	log := NewNopLogger()

	suite.NotNil(log)
	suite.NoError(log.Sync())

	// must be safe to log through
	log.Info("discarded")
}
