package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/benchmark"
	"github.com/helixquant/backsim/internal/datasource"
	"github.com/helixquant/backsim/internal/engine"
	"github.com/helixquant/backsim/internal/ensemble"
	"github.com/helixquant/backsim/internal/export"
	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/strategy"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a backtest over one or more market data files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Market data file or glob (CSV or Parquet)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "symbol",
				Aliases: []string{"s"},
				Usage:   "Instrument symbol",
				Value:   "UNKNOWN",
			},
			&cli.StringFlag{
				Name:  "timeframe",
				Usage: "Bar timeframe label",
				Value: "1h",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Engine configuration YAML file (defaults apply when omitted)",
			},
			&cli.StringFlag{
				Name:  "strategies",
				Usage: "Comma-separated strategy list (sma_crossover, rsi_reversion)",
				Value: "sma_crossover",
			},
			&cli.StringFlag{
				Name:  "ensemble",
				Usage: "Wrap the strategies in an ensemble with this weighting method (EQUAL, PERFORMANCE, SHARPE, WIN_RATE, PROFIT_FACTOR, ADAPTIVE, INVERSE_VOLATILITY)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory for YAML result artifacts",
				Value:   "./results",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "DuckDB database path for persisted results (in-memory when empty)",
			},
			&cli.StringFlag{
				Name:  "parquet",
				Usage: "Directory for Parquet exports of the result tables",
			},
			&cli.FloatFlag{
				Name:  "risk-free-rate",
				Usage: "Annualized risk-free rate for Sharpe and Sortino",
				Value: 0.0,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return err
	}
	defer log.Sync()

	files, err := filepath.Glob(cmd.String("data"))
	if err != nil {
		return fmt.Errorf("invalid data glob: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("no data files match %q", cmd.String("data"))
	}

	engineConfig, err := loadEngineConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	yamlWriter, err := export.NewYAMLWriter(cmd.String("out"))
	if err != nil {
		return err
	}
	defer yamlWriter.Close()

	var store *export.ResultStore
	if cmd.String("db") != "" || cmd.String("parquet") != "" {
		store, err = export.NewResultStore(cmd.String("db"), log)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	bar := progressbar.Default(int64(len(files)), "backtesting")

	for _, file := range files {
		if err := runOne(ctx, cmd, log, engineConfig, file, yamlWriter, store); err != nil {
			return err
		}

		bar.Add(1)
	}

	if store != nil && cmd.String("parquet") != "" {
		if err := store.ExportParquet(cmd.String("parquet")); err != nil {
			return err
		}
	}

	return nil
}

func runOne(
	ctx context.Context,
	cmd *cli.Command,
	log *logger.Logger,
	engineConfig engine.Config,
	file string,
	yamlWriter *export.YAMLWriter,
	store *export.ResultStore,
) error {
	source, err := datasource.NewDuckDBSource(file, log)
	if err != nil {
		return err
	}
	defer source.Close()

	s, err := source.Load(cmd.String("symbol"), cmd.String("timeframe"),
		optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return err
	}

	quality := s.Quality()
	if quality.HasGaps {
		log.Warn("Series has gaps",
			zap.String("file", file),
			zap.Int("gaps", quality.Gaps),
			zap.Float64("quality_score", quality.Score),
		)
	}

	strategies, err := buildStrategies(strings.Split(cmd.String("strategies"), ","))
	if err != nil {
		return err
	}

	if method := cmd.String("ensemble"); method != "" {
		ensembleConfig := ensemble.DefaultConfig()
		ensembleConfig.Method = ensemble.WeightingMethod(method)
		ensembleConfig.ConfidenceThreshold = engineConfig.ConfidenceThreshold

		wrapped, err := ensemble.New("ensemble", ensembleConfig, strategies)
		if err != nil {
			return err
		}

		strategies = []strategy.Strategy{wrapped}
	}

	eng, err := engine.New(engineConfig, log)
	if err != nil {
		return err
	}

	result, err := eng.Run(ctx, s, strategies)
	if err != nil {
		return err
	}

	bars := s.Bars()
	report := benchmark.Compute(benchmark.Input{
		RunID:          result.ID,
		EquityCurve:    result.EquityCurve,
		Trades:         result.Trades,
		InitialCapital: engineConfig.InitialCapital,
		RiskFreeRate:   cmd.Float("risk-free-rate"),
		BarsPerYear:    s.BarsPerYear(),
		FirstPrice:     bars[0].Close,
		LastPrice:      bars[len(bars)-1].Close,
	})

	if err := yamlWriter.WriteRun(result, report); err != nil {
		return err
	}

	if store != nil {
		if err := store.WriteRun(result, report); err != nil {
			return err
		}
	}

	log.Info("Run complete",
		zap.String("file", file),
		zap.String("run_id", result.ID),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("net_profit", result.NetProfit()),
		zap.Float64("sharpe", report.SharpeRatio),
		zap.String("termination", string(result.TerminationReason)),
	)

	return nil
}
