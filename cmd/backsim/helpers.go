package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/helixquant/backsim/internal/engine"
	"github.com/helixquant/backsim/internal/strategy"
)

// loadEngineConfig reads an engine configuration file, or returns the
// defaults when no path is given.
func loadEngineConfig(path string) (engine.Config, error) {
	if path == "" {
		return engine.DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return engine.Config{}, fmt.Errorf("failed to read engine config: %w", err)
	}

	return engine.LoadConfig(string(content))
}

// buildStrategies resolves strategy names to instances with their default
// parameters.
func buildStrategies(names []string) ([]strategy.Strategy, error) {
	strategies := make([]strategy.Strategy, 0, len(names))

	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "sma_crossover":
			s, err := strategy.NewSMACrossover(10, 30)
			if err != nil {
				return nil, err
			}

			strategies = append(strategies, s)
		case "rsi_reversion":
			s, err := strategy.NewRSIReversion(14, 30, 70)
			if err != nil {
				return nil, err
			}

			strategies = append(strategies, s)
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}

	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies selected")
	}

	return strategies, nil
}
