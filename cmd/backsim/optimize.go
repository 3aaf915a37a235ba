package main

import (
	"context"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/helixquant/backsim/internal/datasource"
	"github.com/helixquant/backsim/internal/optimizer"
	"github.com/helixquant/backsim/internal/strategy"
)

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Walk-forward optimize SMA crossover parameters",
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
			&cli.FloatSliceFlag{
				Name:  "fast",
				Usage: "Fast SMA period candidates",
				Value: []float64{5, 10, 20},
			},
			&cli.FloatSliceFlag{
				Name:  "slow",
				Usage: "Slow SMA period candidates",
				Value: []float64{50, 100, 200},
			},
			&cli.FloatFlag{
				Name:  "in-sample-pct",
				Usage: "In-sample fraction of each window",
				Value: 0.7,
			},
			&cli.IntFlag{
				Name:  "windows",
				Usage: "Number of walk-forward windows",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "rolling",
				Usage: "Use overlapping rolling windows instead of a partition",
			},
			&cli.StringFlag{
				Name:  "metric",
				Usage: "Metric to maximize in-sample",
				Value: optimizer.MetricSharpe,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel grid evaluations",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: optimizeAction,
	}
}

func optimizeAction(ctx context.Context, cmd *cli.Command) error {
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

	grid := optimizer.Grid{
		"fast": cmd.FloatSlice("fast"),
		"slow": cmd.FloatSlice("slow"),
	}

	factory := func(params optimizer.Params) (strategy.Strategy, error) {
		return strategy.NewSMACrossover(int(params["fast"]), int(params["slow"]))
	}

	opt, err := optimizer.New(optimizer.Config{
		InSamplePct: cmd.Float("in-sample-pct"),
		NumWindows:  cmd.Int("windows"),
		Rolling:     cmd.Bool("rolling"),
		Metric:      cmd.String("metric"),
		Workers:     cmd.Int("workers"),
		Engine:      engineConfig,
	}, factory, grid, log)
	if err != nil {
		return err
	}

	result, err := opt.Optimize(ctx, s)
	if err != nil {
		return err
	}

	for _, w := range result.Windows {
		log.Info("Window result",
			zap.Int("window", w.WindowIndex),
			zap.Any("best_params", w.BestParams),
			zap.Float64("in_sample", w.InSampleScore),
			zap.Float64("out_sample", w.OutSampleScore),
			zap.Float64("overfitting_gap", w.OverfittingGap),
		)
	}

	fmt.Printf("best params: %v\n", result.BestParams)
	fmt.Printf("mean in-sample %s: %.4f\n", cmd.String("metric"), result.MeanInSampleScore)
	fmt.Printf("mean out-of-sample %s: %.4f\n", cmd.String("metric"), result.MeanOutSampleScore)
	fmt.Printf("mean overfitting gap: %.4f\n", result.MeanOverfittingGap)

	return nil
}
