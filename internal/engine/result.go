package engine

import (
	"time"

	"github.com/helixquant/backsim/internal/types"
)

// IntrabarTick is one point of the subdivided intrabar price path, recorded
// only when intrabar tracking is enabled. Diagnostic data: fills never use it.
type IntrabarTick struct {
	Time  time.Time `yaml:"time" json:"time"`
	Price float64   `yaml:"price" json:"price"`
}

// Result is the complete outcome of one simulation run. A run always returns
// a Result, even on early termination.
type Result struct {
	// ID is a unique identifier for this run.
	ID string `yaml:"id" json:"id"`
	// Symbol is the instrument the run was executed on.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Trades is the append-only closed trade ledger, in exit order.
	Trades []types.Trade `yaml:"trades" json:"trades"`
	// EquityCurve holds one sample per bar processed.
	EquityCurve []types.EquityPoint `yaml:"equity_curve" json:"equity_curve"`
	// Events records all non-fatal conditions encountered during the run.
	Events []types.RunEvent `yaml:"events" json:"events"`
	// TerminationReason explains how the run ended.
	TerminationReason types.TerminationReason `yaml:"termination_reason" json:"termination_reason"`
	// InitialCapital echoes the configured starting capital.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	// FinalEquity is the last equity sample, after all positions are closed.
	FinalEquity float64 `yaml:"final_equity" json:"final_equity"`
	// Intrabar is the subdivided price path, populated only when
	// track_intrabar_data is set.
	Intrabar []IntrabarTick `yaml:"intrabar,omitempty" json:"intrabar,omitempty"`
}

// NetProfit returns the profit over the configured initial capital.
func (r *Result) NetProfit() float64 {
	return r.FinalEquity - r.InitialCapital
}
