package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DrawdownStats describes the worst peak-to-trough decline of the equity curve.
type DrawdownStats struct {
	// MaxPct is the maximum drawdown as a fraction of the peak equity.
	MaxPct float64 `yaml:"max_pct"`
	// MaxAbs is the maximum drawdown in account currency.
	MaxAbs float64 `yaml:"max_abs"`
	// DurationBars is the number of bars from the peak to the trough.
	DurationBars int `yaml:"duration_bars"`
	// RecoveryBars is the number of bars from the trough back to the prior
	// peak, or 0 if the curve never recovered.
	RecoveryBars int `yaml:"recovery_bars"`
}

// TradeHoldingTime summarizes holding times across the ledger, in seconds.
type TradeHoldingTime struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
	Avg int `yaml:"avg"`
}

// PerformanceReport is the full metrics bundle computed once per completed
// run. It is immutable and never partially populated: all fields are computed
// atomically from the final trade ledger and equity curve.
type PerformanceReport struct {
	// ID is the unique identifier for the run that produced this report.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when the report was computed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`

	InitialCapital float64 `yaml:"initial_capital"`
	FinalEquity    float64 `yaml:"final_equity"`
	NetProfit      float64 `yaml:"net_profit"`
	TotalReturn    float64 `yaml:"total_return"`
	CAGR           float64 `yaml:"cagr"`

	SharpeRatio  float64 `yaml:"sharpe_ratio"`
	SortinoRatio float64 `yaml:"sortino_ratio"`
	CalmarRatio  float64 `yaml:"calmar_ratio"`
	OmegaRatio   float64 `yaml:"omega_ratio"`

	Drawdown   DrawdownStats `yaml:"drawdown"`
	UlcerIndex float64       `yaml:"ulcer_index"`

	NumberOfTrades int     `yaml:"number_of_trades"`
	WinningTrades  int     `yaml:"winning_trades"`
	LosingTrades   int     `yaml:"losing_trades"`
	WinRate        float64 `yaml:"win_rate"`
	GrossProfit    float64 `yaml:"gross_profit"`
	GrossLoss      float64 `yaml:"gross_loss"`
	// ProfitFactor is gross profit / gross loss. +Inf when gross loss is 0
	// and gross profit is positive; 0 when gross profit is 0.
	ProfitFactor float64 `yaml:"profit_factor"`
	Expectancy   float64 `yaml:"expectancy"`

	VaR95          float64 `yaml:"var_95"`
	CVaR95         float64 `yaml:"cvar_95"`
	RecoveryFactor float64 `yaml:"recovery_factor"`

	TotalCommission float64 `yaml:"total_commission"`
	TotalSlippage   float64 `yaml:"total_slippage"`

	HoldingTime TradeHoldingTime `yaml:"holding_time"`
	// BuyAndHoldPnL is the profit of holding the instrument for the whole
	// series with the same initial capital.
	BuyAndHoldPnL float64 `yaml:"buy_and_hold_pnl"`
}

// WritePerformanceReport writes a report to disk as YAML.
func WritePerformanceReport(path string, report PerformanceReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal performance report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write performance report to file: %w", err)
	}

	return nil
}
