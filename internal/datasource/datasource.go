// Package datasource loads historical market data into fully materialized
// series. The engine never reaches back into a source mid-run.
package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/series"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// Source yields an ordered bar sequence for (symbol, timeframe, range).
type Source interface {
	// Load materializes the series between the optional bounds.
	Load(symbol, timeframe string, start, end optional.Option[time.Time]) (*series.Series, error)
	// Count returns how many bars the source holds between the bounds.
	Count(start, end optional.Option[time.Time]) (int, error)
	// Close releases the source's resources.
	Close() error
}

// DuckDBSource reads CSV or Parquet files through an in-memory DuckDB
// instance. Column layout: time, open, high, low, close, volume and an
// optional spread.
type DuckDBSource struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType

	hasSpread bool
}

// NewDuckDBSource opens a source over the given data file. The file format
// is inferred from the extension: .parquet reads as Parquet, anything else
// as CSV with a header row.
func NewDuckDBSource(path string, log *logger.Logger) (*DuckDBSource, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataLoadFailed, "failed to open duckdb", err)
	}

	reader := fmt.Sprintf("read_csv_auto('%s', header=true)", path)
	if strings.HasSuffix(path, ".parquet") {
		reader = fmt.Sprintf("read_parquet('%s')", path)
	}

	if _, err := db.Exec(fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM %s`, reader)); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeDataLoadFailed, err, "failed to read market data from %s", path)
	}

	source := &DuckDBSource{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}

	source.hasSpread, err = source.columnExists("spread")
	if err != nil {
		db.Close()

		return nil, err
	}

	log.Debug("Market data source ready", zap.String("path", path), zap.Bool("has_spread", source.hasSpread))

	return source, nil
}

func (d *DuckDBSource) columnExists(name string) (bool, error) {
	rows, err := d.db.Query(`SELECT column_name FROM (DESCRIBE market_data)`)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeDataLoadFailed, "failed to describe market data", err)
	}
	defer rows.Close()

	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return false, errors.Wrap(errors.ErrCodeDataLoadFailed, "failed to scan column name", err)
		}

		if strings.EqualFold(column, name) {
			return true, nil
		}
	}

	return false, rows.Err()
}

// Count implements Source.
func (d *DuckDBSource) Count(start, end optional.Option[time.Time]) (int, error) {
	query := d.sq.
		Select("COUNT(*)").
		From("market_data")

	query = applyBounds(query, start, end)

	var count int
	if err := query.RunWith(d.db).QueryRow().Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeDataLoadFailed, "failed to count bars", err)
	}

	return count, nil
}

// Load implements Source: it reads the bounded range in timestamp order and
// materializes a validated series.
func (d *DuckDBSource) Load(symbol, timeframe string, start, end optional.Option[time.Time]) (*series.Series, error) {
	columns := []string{"time", "open", "high", "low", "close", "volume"}
	if d.hasSpread {
		columns = append(columns, "spread")
	}

	query := d.sq.
		Select(columns...).
		From("market_data")

	query = applyBounds(query, start, end)
	query = query.OrderBy("time ASC")

	rows, err := query.RunWith(d.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataLoadFailed, "failed to query bars", err)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		if d.hasSpread {
			err = rows.Scan(&bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.Spread)
		} else {
			err = rows.Scan(&bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
		}

		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataParseFailed, "failed to scan bar", err)
		}

		bar.Time = bar.Time.UTC()
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataLoadFailed, "failed to read bars", err)
	}

	return series.New(symbol, timeframe, bars)
}

// Close implements Source.
func (d *DuckDBSource) Close() error {
	return d.db.Close()
}

func applyBounds(query squirrel.SelectBuilder, start, end optional.Option[time.Time]) squirrel.SelectBuilder {
	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	return query
}
