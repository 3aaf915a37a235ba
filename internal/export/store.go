package export

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/engine"
	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/types"
	"github.com/helixquant/backsim/pkg/errors"
)

// ResultStore records run artifacts in a DuckDB database and can export them
// to Parquet for downstream analysis.
type ResultStore struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewResultStore opens a store at the given path; an empty path uses an
// in-memory database.
func NewResultStore(path string, log *logger.Logger) (*ResultStore, error) {
	if path == "" {
		path = ":memory:"
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, "failed to open result database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreOpen, "failed to connect to result database", err)
	}

	store := &ResultStore{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

// initialize creates the runs, trades, equity and events tables.
func (s *ResultStore) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			symbol TEXT,
			initial_capital DOUBLE,
			final_equity DOUBLE,
			net_profit DOUBLE,
			termination_reason TEXT,
			number_of_trades INTEGER,
			win_rate DOUBLE,
			sharpe_ratio DOUBLE,
			max_drawdown_pct DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT,
			trade_id TEXT,
			strategy_id TEXT,
			direction TEXT,
			entry_time TIMESTAMP,
			entry_price DOUBLE,
			exit_time TIMESTAMP,
			exit_price DOUBLE,
			size DOUBLE,
			gross_pnl DOUBLE,
			commission DOUBLE,
			slippage_cost DOUBLE,
			net_pnl DOUBLE,
			exit_reason TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS equity (
			run_id TEXT,
			time TIMESTAMP,
			equity DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT,
			time TIMESTAMP,
			bar_index INTEGER,
			kind TEXT,
			strategy_id TEXT,
			message TEXT
		)`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeStoreOpen, "failed to create result tables", err)
		}
	}

	return nil
}

// WriteRun implements ResultWriter. Each run is written in one transaction.
func (s *ResultStore) WriteRun(result *engine.Result, report types.PerformanceReport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to begin transaction", err)
	}

	insertRun := s.sq.
		Insert("runs").
		Columns(
			"run_id", "symbol", "initial_capital", "final_equity", "net_profit",
			"termination_reason", "number_of_trades", "win_rate", "sharpe_ratio",
			"max_drawdown_pct",
		).
		Values(
			result.ID, result.Symbol, result.InitialCapital, result.FinalEquity,
			result.NetProfit(), string(result.TerminationReason), report.NumberOfTrades,
			report.WinRate, report.SharpeRatio, report.Drawdown.MaxPct,
		).
		RunWith(tx)

	if _, err := insertRun.Exec(); err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to insert run", err)
	}

	for _, trade := range result.Trades {
		insertTrade := s.sq.
			Insert("trades").
			Columns(
				"run_id", "trade_id", "strategy_id", "direction",
				"entry_time", "entry_price", "exit_time", "exit_price",
				"size", "gross_pnl", "commission", "slippage_cost", "net_pnl",
				"exit_reason",
			).
			Values(
				result.ID, trade.ID, trade.StrategyID, string(trade.Direction),
				trade.EntryTime, trade.EntryPrice, trade.ExitTime, trade.ExitPrice,
				trade.Size, trade.GrossPnL, trade.Commission, trade.SlippageCost,
				trade.NetPnL(), string(trade.ExitReason),
			).
			RunWith(tx)

		if _, err := insertTrade.Exec(); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeStoreWrite, "failed to insert trade", err)
		}
	}

	for _, point := range result.EquityCurve {
		insertEquity := s.sq.
			Insert("equity").
			Columns("run_id", "time", "equity").
			Values(result.ID, point.Time, point.Equity).
			RunWith(tx)

		if _, err := insertEquity.Exec(); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeStoreWrite, "failed to insert equity point", err)
		}
	}

	for _, event := range result.Events {
		insertEvent := s.sq.
			Insert("events").
			Columns("run_id", "time", "bar_index", "kind", "strategy_id", "message").
			Values(result.ID, event.Time, event.BarIndex, string(event.Kind), event.StrategyID, event.Message).
			RunWith(tx)

		if _, err := insertEvent.Exec(); err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeStoreWrite, "failed to insert event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "failed to commit run", err)
	}

	s.log.Debug("Run persisted",
		zap.String("run_id", result.ID),
		zap.Int("trades", len(result.Trades)),
		zap.Int("equity_points", len(result.EquityCurve)),
	)

	return nil
}

// TradeCount returns the number of stored trades for a run.
func (s *ResultStore) TradeCount(runID string) (int, error) {
	query := s.sq.
		Select("COUNT(*)").
		From("trades").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(s.db)

	var count int
	if err := query.QueryRow().Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQuery, "failed to count trades", err)
	}

	return count, nil
}

// NetPnL returns the summed net P&L of a run's stored trades.
func (s *ResultStore) NetPnL(runID string) (float64, error) {
	query := s.sq.
		Select("COALESCE(SUM(net_pnl), 0)").
		From("trades").
		Where(squirrel.Eq{"run_id": runID}).
		RunWith(s.db)

	var total float64
	if err := query.QueryRow().Scan(&total); err != nil {
		return 0, errors.Wrap(errors.ErrCodeStoreQuery, "failed to sum net pnl", err)
	}

	return total, nil
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID             string
	Symbol            string
	InitialCapital    float64
	FinalEquity       float64
	NetProfit         float64
	TerminationReason string
	NumberOfTrades    int
	WinRate           float64
	SharpeRatio       float64
	MaxDrawdownPct    float64
}

// Runs lists every stored run, newest insertion last.
func (s *ResultStore) Runs() ([]RunSummary, error) {
	query := s.sq.
		Select(
			"run_id", "symbol", "initial_capital", "final_equity", "net_profit",
			"termination_reason", "number_of_trades", "win_rate", "sharpe_ratio",
			"max_drawdown_pct",
		).
		From("runs").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQuery, "failed to list runs", err)
	}
	defer rows.Close()

	var summaries []RunSummary

	for rows.Next() {
		var summary RunSummary
		if err := rows.Scan(
			&summary.RunID, &summary.Symbol, &summary.InitialCapital,
			&summary.FinalEquity, &summary.NetProfit, &summary.TerminationReason,
			&summary.NumberOfTrades, &summary.WinRate, &summary.SharpeRatio,
			&summary.MaxDrawdownPct,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQuery, "failed to scan run row", err)
		}

		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// ExportParquet copies every table to Parquet files in the given directory.
func (s *ResultStore) ExportParquet(dir string) error {
	for _, table := range []string{"runs", "trades", "equity", "events"} {
		target := filepath.Join(dir, table+".parquet")

		if _, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, target)); err != nil {
			return errors.Wrapf(errors.ErrCodeParquetExport, err, "failed to export %s to parquet", table)
		}
	}

	s.log.Debug("Exported results to parquet", zap.String("dir", dir))

	return nil
}

// Close implements ResultWriter.
func (s *ResultStore) Close() error {
	return s.db.Close()
}
