// Package export persists completed run artifacts. The simulation core
// defines the shape of trades, equity curves and metrics; this package owns
// their storage formats.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/helixquant/backsim/internal/engine"
	"github.com/helixquant/backsim/internal/types"
)

// ResultWriter consumes a completed run's artifacts as opaque structured
// data.
type ResultWriter interface {
	// WriteRun persists the run result and its metrics bundle.
	WriteRun(result *engine.Result, report types.PerformanceReport) error
	// Close releases any resources held by the writer.
	Close() error
}

// YAMLWriter writes each run into its own directory of YAML files.
type YAMLWriter struct {
	dir string
}

// NewYAMLWriter creates a writer rooted at dir, creating it if needed.
func NewYAMLWriter(dir string) (*YAMLWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &YAMLWriter{dir: dir}, nil
}

// WriteRun implements ResultWriter.
func (w *YAMLWriter) WriteRun(result *engine.Result, report types.PerformanceReport) error {
	runDir := filepath.Join(w.dir, result.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	if err := writeYAML(filepath.Join(runDir, "result.yaml"), result); err != nil {
		return err
	}

	return types.WritePerformanceReport(filepath.Join(runDir, "stats.yaml"), report)
}

// Close implements ResultWriter.
func (w *YAMLWriter) Close() error {
	return nil
}

func writeYAML(path string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return nil
}
