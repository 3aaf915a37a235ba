package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/helixquant/backsim/pkg/errors"
)

type DataSourceTestSuite struct {
	suite.Suite
}

func TestDataSourceSuite(t *testing.T) {
	suite.Run(t, new(DataSourceTestSuite))
}

func (suite *DataSourceTestSuite) writeCSV(rows int, withSpread bool) string {
	path := filepath.Join(suite.T().TempDir(), "bars.csv")

	header := "time,open,high,low,close,volume"
	if withSpread {
		header += ",spread"
	}

	content := header + "\n"
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < rows; i++ {
		price := 100.0 + float64(i)
		line := fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,%d",
			start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339),
			price, price+1, price-1, price+0.5, 1000+i)

		if withSpread {
			line += ",0.0002"
		}

		content += line + "\n"
	}

	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	return path
}

func (suite *DataSourceTestSuite) TestLoadCSVMaterializesSeries() {
	path := suite.writeCSV(24, false)

	source, err := NewDuckDBSource(path, nil)
	suite.Require().NoError(err)
	defer source.Close()

	count, err := source.Count(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Equal(24, count)

	s, err := source.Load("EURUSD", "1h", optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)

	suite.Equal(24, s.Len())
	suite.Equal("EURUSD", s.Symbol())
	suite.Equal(time.Hour, s.BarInterval())

	first, err := s.Bar(0)
	suite.Require().NoError(err)
	suite.Equal(100.0, first.Open)
	suite.Equal(100.5, first.Close)
	suite.Equal(0.0, first.Spread)
}

func (suite *DataSourceTestSuite) TestLoadReadsSpreadColumn() {
	path := suite.writeCSV(5, true)

	source, err := NewDuckDBSource(path, nil)
	suite.Require().NoError(err)
	defer source.Close()

	s, err := source.Load("EURUSD", "1h", optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)

	first, err := s.Bar(0)
	suite.Require().NoError(err)
	suite.InDelta(0.0002, first.Spread, 1e-9)
}

func (suite *DataSourceTestSuite) TestLoadHonorsTimeBounds() {
	path := suite.writeCSV(24, false)

	source, err := NewDuckDBSource(path, nil)
	suite.Require().NoError(err)
	defer source.Close()

	start := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC)

	s, err := source.Load("EURUSD", "1h",
		optional.Some(start), optional.Some(end))
	suite.Require().NoError(err)

	suite.Equal(6, s.Len())

	first, err := s.Bar(0)
	suite.Require().NoError(err)
	suite.True(first.Time.Equal(start))
}

func (suite *DataSourceTestSuite) TestEmptyRangeFailsValidation() {
	path := suite.writeCSV(5, false)

	source, err := NewDuckDBSource(path, nil)
	suite.Require().NoError(err)
	defer source.Close()

	farFuture := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err = source.Load("EURUSD", "1h", optional.Some(farFuture), optional.None[time.Time]())
	suite.True(errors.HasCode(err, errors.ErrCodeDataEmptySeries))
}

func (suite *DataSourceTestSuite) TestMissingFileFails() {
	_, err := NewDuckDBSource("/nonexistent/bars.csv", nil)
	suite.Error(err)
}
