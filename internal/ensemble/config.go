package ensemble

import (
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/helixquant/backsim/pkg/errors"
)

// WeightingMethod selects how sub-strategy weights are recomputed at each
// rebalance.
type WeightingMethod string

const (
	// WeightingEqual resets every strategy to 1/N.
	WeightingEqual WeightingMethod = "EQUAL"
	// WeightingPerformance weights by trailing net P&L.
	WeightingPerformance WeightingMethod = "PERFORMANCE"
	// WeightingSharpe weights by the trailing per-trade Sharpe ratio.
	WeightingSharpe WeightingMethod = "SHARPE"
	// WeightingWinRate weights by trailing win rate.
	WeightingWinRate WeightingMethod = "WIN_RATE"
	// WeightingProfitFactor weights by trailing profit factor.
	WeightingProfitFactor WeightingMethod = "PROFIT_FACTOR"
	// WeightingAdaptive blends performance, Sharpe and win rate.
	WeightingAdaptive WeightingMethod = "ADAPTIVE"
	// WeightingInverseVolatility weights by the inverse stdev of trailing
	// trade P&L.
	WeightingInverseVolatility WeightingMethod = "INVERSE_VOLATILITY"
)

// Adaptive blend coefficients: share of normalized performance, Sharpe and
// win rate in the ADAPTIVE weighting method. They must sum to 1.
const (
	AdaptivePerformanceShare = 0.4
	AdaptiveSharpeShare      = 0.4
	AdaptiveWinRateShare     = 0.2
)

// Config enumerates the ensemble parameters.
type Config struct {
	Method WeightingMethod `yaml:"method" json:"method" validate:"oneof=EQUAL PERFORMANCE SHARPE WIN_RATE PROFIT_FACTOR ADAPTIVE INVERSE_VOLATILITY"`
	// RebalancePeriodBars is the exact cadence, in bars, at which weights
	// are recomputed.
	RebalancePeriodBars int `yaml:"rebalance_period_bars" json:"rebalance_period_bars" validate:"gte=1"`
	// TrailingTradeWindow caps how many of each strategy's most recent
	// trades feed the rebalance scores.
	TrailingTradeWindow int `yaml:"trailing_trade_window" json:"trailing_trade_window" validate:"gte=1"`
	// ConfidenceThreshold is the minimum winning vote required to emit a
	// signal.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold" validate:"gte=0,lte=1"`
	// RequireMajority demands that more than half of the sub-strategies
	// agree on the winning direction.
	RequireMajority bool `yaml:"require_majority" json:"require_majority"`
}

// DefaultConfig returns an equal-weighted ensemble configuration.
func DefaultConfig() Config {
	return Config{
		Method:              WeightingEqual,
		RebalancePeriodBars: 20,
		TrailingTradeWindow: 30,
		ConfidenceThreshold: 0.5,
		RequireMajority:     false,
	}
}

// LoadConfig parses a YAML configuration on top of the defaults.
func LoadConfig(content string) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse ensemble config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid ensemble config", err)
	}

	return nil
}
