package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/helixquant/backsim/pkg/errors"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonTakeProfit ExitReason = "take_profit"
	ExitReasonStopLoss   ExitReason = "stop_loss"
	ExitReasonSignal     ExitReason = "signal"
	ExitReasonTimeLimit  ExitReason = "time_limit"
	ExitReasonMarginCall ExitReason = "margin_call"
	ExitReasonEndOfData  ExitReason = "end_of_data"
)

// Position is the open trade state owned exclusively by the simulation
// engine. At most one active position per (strategy, instrument) slot unless
// multi-position mode is configured.
type Position struct {
	ID         string    `validate:"required"`
	StrategyID string    `validate:"required"`
	Direction  Direction `validate:"required,oneof=LONG SHORT"`
	EntryIndex int       `validate:"gte=0"`
	EntryTime  time.Time
	EntryPrice float64 `validate:"gt=0"`
	Size       float64 `validate:"gt=0"`
	StopLoss   optional.Option[float64]
	TakeProfit optional.Option[float64]
	// EntryCommission and EntrySlippage are the friction costs paid on open,
	// charged against equity when the position closes.
	EntryCommission float64
	EntrySlippage   float64
	// UnrealizedPnL is recomputed on every bar against the latest close.
	UnrealizedPnL float64
}

// Validate validates the Position struct.
func (p *Position) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid position", err)
	}

	return nil
}

// MarkToMarket recomputes the unrealized P&L against the given price.
func (p *Position) MarkToMarket(price float64) float64 {
	entry := decimal.NewFromFloat(p.EntryPrice)
	mark := decimal.NewFromFloat(price)
	size := decimal.NewFromFloat(p.Size)

	var pnl decimal.Decimal
	if p.Direction == DirectionLong {
		pnl = mark.Sub(entry).Mul(size)
	} else {
		pnl = entry.Sub(mark).Mul(size)
	}

	p.UnrealizedPnL, _ = pnl.Float64()

	return p.UnrealizedPnL
}

// Trade is a closed trade record, immutable once written. The trade ledger is
// an append-only ordered sequence.
type Trade struct {
	ID           string     `yaml:"id" json:"id" csv:"id"`
	StrategyID   string     `yaml:"strategy_id" json:"strategy_id" csv:"strategy_id"`
	Direction    Direction  `yaml:"direction" json:"direction" csv:"direction"`
	EntryTime    time.Time  `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	EntryPrice   float64    `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitTime     time.Time  `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	ExitPrice    float64    `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	Size         float64    `yaml:"size" json:"size" csv:"size"`
	GrossPnL     float64    `yaml:"gross_pnl" json:"gross_pnl" csv:"gross_pnl"`
	Commission   float64    `yaml:"commission" json:"commission" csv:"commission"`
	SlippageCost float64    `yaml:"slippage_cost" json:"slippage_cost" csv:"slippage_cost"`
	ExitReason   ExitReason `yaml:"exit_reason" json:"exit_reason" csv:"exit_reason"`
}

// NetPnL returns the trade's profit after commission and slippage costs.
func (t Trade) NetPnL() float64 {
	gross := decimal.NewFromFloat(t.GrossPnL)
	fees := decimal.NewFromFloat(t.Commission).Add(decimal.NewFromFloat(t.SlippageCost))
	net, _ := gross.Sub(fees).Float64()

	return net
}

// HoldingTime returns the duration the trade was open.
func (t Trade) HoldingTime() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// IsWin reports whether the trade closed with a positive net P&L.
func (t Trade) IsWin() bool {
	return t.NetPnL() > 0
}
