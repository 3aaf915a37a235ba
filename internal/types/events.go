package types

import "time"

// TerminationReason explains why a run ended. A run always returns a result,
// even on early termination.
type TerminationReason string

const (
	// TerminationCompleted means the full series was processed
	TerminationCompleted TerminationReason = "completed"
	// TerminationMarginCall means equity breached the configured floor
	TerminationMarginCall TerminationReason = "margin_call"
	// TerminationCancelled means the surrounding batch was cancelled
	TerminationCancelled TerminationReason = "cancelled"
	// TerminationStrategyError means a strategy failed while strict
	// strategy errors were enabled
	TerminationStrategyError TerminationReason = "strategy_error"
)

// EventKind classifies non-fatal conditions recorded during a run.
type EventKind string

const (
	// EventStrategyError records a strategy failing on one bar
	EventStrategyError EventKind = "strategy_error"
	// EventEntryRejected records an entry attempt rejected by position
	// limits or margin rules
	EventEntryRejected EventKind = "entry_rejected"
	// EventMarginCall records the margin breach that terminated the run
	EventMarginCall EventKind = "margin_call"
)

// RunEvent is a structured event attached to a run result. Non-fatal
// conditions are recorded here, never thrown past the engine boundary.
type RunEvent struct {
	Time       time.Time `yaml:"time" json:"time"`
	BarIndex   int       `yaml:"bar_index" json:"bar_index"`
	Kind       EventKind `yaml:"kind" json:"kind"`
	StrategyID string    `yaml:"strategy_id,omitempty" json:"strategy_id,omitempty"`
	Message    string    `yaml:"message" json:"message"`
}
