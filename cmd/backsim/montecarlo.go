package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/datasource"
	"github.com/helixquant/backsim/internal/engine"
	"github.com/helixquant/backsim/internal/montecarlo"
)

func montecarloCommand() *cli.Command {
	return &cli.Command{
		Name:  "montecarlo",
		Usage: "Backtest once, then resample the trade ledger with replacement",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Market data file (CSV or Parquet)",
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
				Usage:   "Engine configuration YAML file",
			},
			&cli.StringFlag{
				Name:  "strategies",
				Usage: "Comma-separated strategy names",
				Value: "sma_crossover",
			},
			&cli.IntFlag{
				Name:  "sims",
				Usage: "Number of resampled equity paths",
				Value: 1000,
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Base seed for the resampler",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel simulations",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: montecarloAction,
	}
}

func montecarloAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return err
	}
	defer log.Sync()

	engineConfig, err := loadEngineConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	source, err := datasource.NewDuckDBSource(cmd.String("data"), log)
	if err != nil {
		return err
	}
	defer source.Close()

	s, err := source.Load(cmd.String("symbol"), cmd.String("timeframe"),
		optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return err
	}

	strategies, err := buildStrategies(strings.Split(cmd.String("strategies"), ","))
	if err != nil {
		return err
	}

	eng, err := engine.New(engineConfig, log)
	if err != nil {
		return err
	}

	backtest, err := eng.Run(ctx, s, strategies)
	if err != nil {
		return err
	}
	log.Info("Backtest complete",
		zap.Int("trades", len(backtest.Trades)),
		zap.Float64("final_equity", backtest.FinalEquity),
	)

	sim, err := montecarlo.New(montecarlo.Config{
		NumSimulations: cmd.Int("sims"),
		Seed:           int64(cmd.Int("seed")),
		Workers:        cmd.Int("workers"),
	}, log)
	if err != nil {
		return err
	}

	result, err := sim.Run(ctx, backtest.Trades, engineConfig.InitialCapital)
	if err != nil {
		return err
	}

	printDistribution("final equity", result.FinalEquity)
	printDistribution("max drawdown", result.MaxDrawdown)
	if result.Cancelled {
		fmt.Printf("cancelled after %d of %d simulations\n",
			result.NumSimulations, cmd.Int("sims"))
	}

	return nil
}

func printDistribution(name string, d montecarlo.Distribution) {
	fmt.Printf("%s: mean=%.2f p5=%.2f p50=%.2f p95=%.2f\n",
		name, d.Mean, d.P5, d.P50, d.P95)
}
