package engine

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v2"

	"github.com/helixquant/backsim/pkg/errors"
)

// SpeedMode is a timing discipline for the bar loop. Modes only affect
// scheduling between bars; the trade ledger is identical across all modes for
// identical inputs.
type SpeedMode string

const (
	// SpeedModeFast batches all bars without yielding between them
	SpeedModeFast SpeedMode = "FAST"
	// SpeedModeNormal processes one bar per scheduling quantum, no delay
	SpeedModeNormal SpeedMode = "NORMAL"
	// SpeedModeSlow inserts a configurable delay after each bar
	SpeedModeSlow SpeedMode = "SLOW"
	// SpeedModeRealtime sleeps the wall-clock delta between bar timestamps
	SpeedModeRealtime SpeedMode = "REALTIME"
	// SpeedModeHFTTest is FAST plus intrabar tick subdivision when tracking
	// is enabled; fills are unaffected
	SpeedModeHFTTest SpeedMode = "HFT_TEST"
)

// AllSpeedModes lists the valid speed modes for schema generation.
var AllSpeedModes = []any{
	SpeedModeFast,
	SpeedModeNormal,
	SpeedModeSlow,
	SpeedModeRealtime,
	SpeedModeHFTTest,
}

// Config enumerates the simulation parameters. Invalid combinations are
// rejected at engine construction time, never mid-run.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting capital in account currency,minimum=0"`
	// Commission is the fee charged per fill as a fraction of notional.
	Commission float64 `yaml:"commission" json:"commission" validate:"gte=0,lt=1" jsonschema:"title=Commission,description=Commission as a fraction of traded notional"`
	// SlippagePct is the adverse price movement applied to every fill.
	SlippagePct float64 `yaml:"slippage_pct" json:"slippage_pct" validate:"gte=0,lt=1" jsonschema:"title=Slippage,description=Fill slippage as a fraction of price"`
	// SpreadPips is half paid on entry and half on exit.
	SpreadPips float64 `yaml:"spread_pips" json:"spread_pips" validate:"gte=0" jsonschema:"title=Spread Pips,description=Quoted spread in pips"`
	PipSize    float64 `yaml:"pip_size" json:"pip_size" validate:"gt=0" jsonschema:"title=Pip Size,description=Price value of one pip"`

	SpeedMode   SpeedMode `yaml:"speed_mode" json:"speed_mode" validate:"oneof=FAST NORMAL SLOW REALTIME HFT_TEST" jsonschema:"title=Speed Mode,description=Timing discipline for the bar loop"`
	SlowDelayMs int       `yaml:"slow_delay_ms" json:"slow_delay_ms" validate:"gte=0" jsonschema:"title=Slow Delay,description=Per-bar delay in milliseconds for SLOW mode"`

	MaxPositions int `yaml:"max_positions" json:"max_positions" validate:"gte=1" jsonschema:"title=Max Positions,description=Maximum simultaneously open positions"`
	// PositionSizePct sizes each entry as a fraction of current equity.
	PositionSizePct     float64 `yaml:"position_size_pct" json:"position_size_pct" validate:"gt=0,lte=1" jsonschema:"title=Position Size,description=Fraction of equity committed per position"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold" validate:"gte=0,lte=1" jsonschema:"title=Confidence Threshold,description=Minimum signal confidence to act on"`
	// MaxHoldingBars force-closes positions older than this many bars.
	// Zero disables the time-based exit.
	MaxHoldingBars int `yaml:"max_holding_bars" json:"max_holding_bars" validate:"gte=0" jsonschema:"title=Max Holding Bars,description=Bars after which an open position is force-closed (0 disables)"`

	StopOnMarginCall bool `yaml:"stop_on_margin_call" json:"stop_on_margin_call" jsonschema:"title=Stop On Margin Call,description=Halt the run when equity breaches the margin floor"`
	// MarginCallLevel is the equity floor as a fraction of initial capital.
	MarginCallLevel    float64 `yaml:"margin_call_level" json:"margin_call_level" validate:"gte=0,lt=1" jsonschema:"title=Margin Call Level,description=Equity floor as a fraction of initial capital"`
	EnableShortSelling bool    `yaml:"enable_short_selling" json:"enable_short_selling" jsonschema:"title=Enable Short Selling,description=Allow SHORT signals to open positions"`

	TrackIntrabarData    bool `yaml:"track_intrabar_data" json:"track_intrabar_data" jsonschema:"title=Track Intrabar Data,description=Record the subdivided intrabar price path (diagnostic only)"`
	StrictStrategyErrors bool `yaml:"strict_strategy_errors" json:"strict_strategy_errors" jsonschema:"title=Strict Strategy Errors,description=Treat a strategy error on any bar as fatal for the run"`
}

// DefaultConfig returns a Config with conservative defaults.
func DefaultConfig() Config {
	return Config{
		InitialCapital:       10000,
		Commission:           0.001,
		SlippagePct:          0.0005,
		SpreadPips:           0,
		PipSize:              0.0001,
		SpeedMode:            SpeedModeNormal,
		SlowDelayMs:          100,
		MaxPositions:         1,
		PositionSizePct:      0.1,
		ConfidenceThreshold:  0.5,
		MaxHoldingBars:       0,
		StopOnMarginCall:     true,
		MarginCallLevel:      0.5,
		EnableShortSelling:   true,
		TrackIntrabarData:    false,
		StrictStrategyErrors: false,
	}
}

// LoadConfig parses a YAML configuration on top of the defaults.
func LoadConfig(content string) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse engine config", err)
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
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	return nil
}

// GenerateSchema generates a JSON schema for the engine Config.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if strings.Contains(t.String(), "engine.SpeedMode") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllSpeedModes,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backsim-engine-config"
	schema.Description = "Configuration schema for the simulation engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the engine Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
