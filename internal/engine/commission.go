package engine

// CommissionModel prices the fee for a single fill.
type CommissionModel interface {
	// Calculate returns the fee in account currency for a fill of the given
	// notional value.
	Calculate(notional float64) float64
}

// FractionalCommission charges a flat fraction of traded notional.
type FractionalCommission struct {
	rate float64
}

// NewFractionalCommission creates a commission model charging rate per fill.
func NewFractionalCommission(rate float64) *FractionalCommission {
	return &FractionalCommission{rate: rate}
}

// Calculate implements CommissionModel.
func (f *FractionalCommission) Calculate(notional float64) float64 {
	if notional <= 0 {
		return 0
	}

	return notional * f.rate
}

// ZeroCommission charges nothing. Used for frictionless scenario tests.
type ZeroCommission struct{}

// NewZeroCommission creates a commission model that always returns 0.
func NewZeroCommission() *ZeroCommission {
	return &ZeroCommission{}
}

// Calculate implements CommissionModel.
func (z *ZeroCommission) Calculate(notional float64) float64 {
	return 0
}
