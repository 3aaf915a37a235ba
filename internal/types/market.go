package types

import "time"

// Bar is one OHLCV sample for a fixed time interval. Bars are immutable and
// form an ordered sequence with strictly increasing timestamps.
type Bar struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
	// Spread is the quoted bid/ask spread in price units. Zero when the feed
	// does not carry quote data.
	Spread float64 `yaml:"spread,omitempty" json:"spread,omitempty" csv:"spread"`
}

// Mid returns the average of the bar's high and low.
func (b Bar) Mid() float64 {
	return (b.High + b.Low) / 2
}

// Range returns the high-low range of the bar.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// EquityPoint is one sample of the equity curve, one per bar processed.
type EquityPoint struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Equity float64   `yaml:"equity" json:"equity" csv:"equity"`
}
