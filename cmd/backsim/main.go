// backsim runs historical simulations, walk-forward optimizations and Monte
// Carlo robustness checks from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/helixquant/backsim/internal/logger"
	"github.com/helixquant/backsim/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "backsim",
		Usage:   "Backtest simulation and ensemble decision engine",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			runCommand(),
			optimizeCommand(),
			montecarloCommand(),
			schemaCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger, honoring the global --debug flag.
func newLogger(debug bool) (*logger.Logger, error) {
	if debug {
		return logger.NewDebugLogger()
	}

	return logger.NewLogger()
}
