// Package config loads runtime configuration from YAML, layered with
// environment variables, and validates it fail-fast before anything is
// constructed from it.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quantfall/riskcore/core"
	"github.com/quantfall/riskcore/execution"
)

const (
	defaultConfigPath = "configs/riskcore.yaml"
	envPrefix         = "riskcore"
)

// Config aggregates every runtime option.
type Config struct {
	InitialEquity float64 `mapstructure:"initial_equity"`
	BadBarPolicy  string  `mapstructure:"bad_bar_policy"`

	Data       DataConfig       `mapstructure:"data"`
	ATR        ATRConfig        `mapstructure:"atr"`
	Stop       StopConfig       `mapstructure:"stop"`
	Trailing   TrailingConfig   `mapstructure:"trailing"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	KillSwitch KillSwitchConfig `mapstructure:"kill_switch"`
	Sizing     SizingConfig     `mapstructure:"sizing"`
	Exits      ExitsConfig      `mapstructure:"exits"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// Bad bar policies
const (
	BadBarSkip  = "skip"
	BadBarAbort = "abort"
)

// DataConfig describes the bar sources.
type DataConfig struct {
	Timeframe string       `mapstructure:"timeframe"`
	Feeds     []FeedConfig `mapstructure:"feeds"`
}

// FeedConfig describes one CSV source file.
type FeedConfig struct {
	Symbol    string `mapstructure:"symbol"`
	File      string `mapstructure:"file"`
	Timeframe string `mapstructure:"timeframe"`
}

// ATRConfig configures the volatility indicator.
type ATRConfig struct {
	Period int `mapstructure:"period"`
}

// StopConfig configures the initial protective stop.
type StopConfig struct {
	ATRMultiplier float64 `mapstructure:"atr_multiplier"`
}

// TrailingConfig configures the trailing stop engine.
type TrailingConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	Type                 string  `mapstructure:"type"`
	Multiplier           float64 `mapstructure:"multiplier"`
	Percent              float64 `mapstructure:"percent"`
	UseDynamicATR        bool    `mapstructure:"use_dynamic_atr"`
	DynamicATRMinSamples int     `mapstructure:"dynamic_atr_min_samples"`
	ActivationRMultiple  float64 `mapstructure:"activation_r_multiple"`
}

// ExecutionConfig configures order fills.
type ExecutionConfig struct {
	SpreadBps  float64          `mapstructure:"spread_bps"`
	DelayMs    int              `mapstructure:"delay_ms"`
	Slippage   SlippageConfig   `mapstructure:"slippage"`
	Commission CommissionConfig `mapstructure:"commission"`
	Impact     ImpactConfig     `mapstructure:"impact"`
}

// SlippageConfig selects a slippage model. Tiers win over bps, bps over
// amount; all empty means no slippage.
type SlippageConfig struct {
	Amount float64                  `mapstructure:"amount"`
	Bps    float64                  `mapstructure:"bps"`
	Tiers  []execution.SlippageTier `mapstructure:"tiers"`
}

// CommissionConfig selects a commission model with the same precedence
// scheme: tiers, then rate, then per_share.
type CommissionConfig struct {
	PerShare      float64                    `mapstructure:"per_share"`
	Rate          float64                    `mapstructure:"rate"`
	MinCommission float64                    `mapstructure:"min_commission"`
	Tiers         []execution.CommissionTier `mapstructure:"tiers"`
}

// Impact model names
const (
	ImpactLinear     = "linear"
	ImpactSquareRoot = "square_root"
)

// ImpactConfig selects a market impact model.
type ImpactConfig struct {
	Model       string  `mapstructure:"model"`
	Rate        float64 `mapstructure:"rate"`
	Coefficient float64 `mapstructure:"coefficient"`
}

// Kill-switch trigger types
const (
	TriggerDrawdown     = "drawdown"
	TriggerAbsoluteLoss = "absolute_loss"
	TriggerVolatility   = "volatility"
	TriggerVaR          = "var"
	TriggerTimeWindow   = "time_window"
)

// KillSwitchConfig registers circuit-breaker triggers. The list is ordered:
// triggers are evaluated in the order they appear here.
type KillSwitchConfig struct {
	Triggers []TriggerConfig `mapstructure:"triggers"`
}

// TriggerConfig is one kill-switch trigger entry. Only the fields belonging
// to its Type are read; the rest are ignored.
type TriggerConfig struct {
	Type string `mapstructure:"type"`

	MaxDrawdown float64 `mapstructure:"max_drawdown"` // drawdown
	MaxLoss     float64 `mapstructure:"max_loss"`     // absolute_loss

	MaxVolatility float64 `mapstructure:"max_volatility"` // volatility
	Lookback      int     `mapstructure:"lookback"`       // volatility, var

	Confidence float64 `mapstructure:"confidence"` // var
	Limit      float64 `mapstructure:"limit"`      // var
	Method     string  `mapstructure:"method"`     // var

	Start           string `mapstructure:"start"`             // time_window
	End             string `mapstructure:"end"`               // time_window
	TradingDaysOnly bool   `mapstructure:"trading_days_only"` // time_window
}

// SizingConfig controls position sizing. PerSymbolEquityCapPct clamps the
// entry quantity so position notional never exceeds that fraction of
// current equity.
type SizingConfig struct {
	AccountRiskFraction   float64 `mapstructure:"account_risk_fraction"`
	PerSymbolEquityCapPct float64 `mapstructure:"per_symbol_equity_cap_pct"`
}

// ExitsConfig configures partial profit taking.
type ExitsConfig struct {
	Partials PartialsConfig `mapstructure:"partials"`
}

type PartialsConfig struct {
	Enabled bool                 `mapstructure:"enabled"`
	Levels  []PartialLevelConfig `mapstructure:"levels"`
}

// PartialLevelConfig scales out a fraction of the position once open profit
// reaches the given R-multiple.
type PartialLevelConfig struct {
	RMultiple float64 `mapstructure:"r_multiple"`
	ExitPct   float64 `mapstructure:"exit_pct"`
}

// StrategyConfig selects the entry signal source.
type StrategyConfig struct {
	Name     string                 `mapstructure:"name"`
	EMACross EMACrossStrategyConfig `mapstructure:"ema_cross"`
	Breakout BreakoutStrategyConfig `mapstructure:"breakout"`
}

type EMACrossStrategyConfig struct {
	FastLength int `mapstructure:"fast_length"`
	SlowLength int `mapstructure:"slow_length"`
}

type BreakoutStrategyConfig struct {
	LookbackPeriod  int     `mapstructure:"lookback_period"`
	Multiplier      float64 `mapstructure:"multiplier"`
	ATRPeriod       int     `mapstructure:"atr_period"`
	MinATRThreshold float64 `mapstructure:"min_atr_threshold"`
	Direction       string  `mapstructure:"direction"`
}

// Storage drivers
const (
	StorageBuntDB = "buntdb"
	StorageSQLite = "sqlite"
	StorageNone   = "none"
)

// StorageConfig selects the trade log backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// LoggingConfig controls the zerolog sink.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	TimeLayout string `mapstructure:"time_layout"`
	Colored    bool   `mapstructure:"colored"`
	JSON       bool   `mapstructure:"json"`
}

// Load reads the configuration file, layers environment variables on top and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file %q not found: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("initial_equity", 100_000.0)
	v.SetDefault("bad_bar_policy", BadBarSkip)

	v.SetDefault("data.timeframe", "1d")

	v.SetDefault("atr.period", 14)
	v.SetDefault("stop.atr_multiplier", 2.0)

	v.SetDefault("trailing.enabled", true)
	v.SetDefault("trailing.type", "atr")
	v.SetDefault("trailing.multiplier", 2.0)
	v.SetDefault("trailing.use_dynamic_atr", false)
	v.SetDefault("trailing.dynamic_atr_min_samples", 1)
	v.SetDefault("trailing.activation_r_multiple", 0.0)

	v.SetDefault("execution.spread_bps", 0.0)
	v.SetDefault("execution.delay_ms", 0)

	v.SetDefault("sizing.account_risk_fraction", 0.01)
	v.SetDefault("sizing.per_symbol_equity_cap_pct", 1.0)

	v.SetDefault("strategy.name", "breakout")
	v.SetDefault("strategy.ema_cross.fast_length", 9)
	v.SetDefault("strategy.ema_cross.slow_length", 21)
	v.SetDefault("strategy.breakout.lookback_period", 20)
	v.SetDefault("strategy.breakout.multiplier", 0.5)
	v.SetDefault("strategy.breakout.atr_period", 14)
	v.SetDefault("strategy.breakout.direction", "both")

	v.SetDefault("storage.driver", StorageBuntDB)
	v.SetDefault("storage.path", ":memory:")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.time_layout", "2006-01-02 15:04:05")
	v.SetDefault("logging.colored", true)
	v.SetDefault("logging.json", false)
}

// Validate checks cross-field consistency. Component constructors re-check
// their own parameters; this catches what they cannot see.
func (c *Config) Validate() error {
	if c.InitialEquity <= 0 {
		return core.NewConfigError("initial_equity", "must be positive")
	}

	switch c.BadBarPolicy {
	case BadBarSkip, BadBarAbort:
	default:
		return core.NewConfigError("bad_bar_policy", "must be skip or abort")
	}

	if len(c.Data.Feeds) == 0 {
		return core.NewConfigError("data.feeds", "at least one feed is required")
	}
	for _, feed := range c.Data.Feeds {
		if feed.Symbol == "" || feed.File == "" {
			return core.NewConfigError("data.feeds", "symbol and file are required")
		}
	}

	if c.ATR.Period <= 0 {
		return core.NewConfigError("atr.period", "must be positive")
	}
	if c.Stop.ATRMultiplier < 0 {
		return core.NewConfigError("stop.atr_multiplier", "must not be negative")
	}

	if c.Sizing.AccountRiskFraction <= 0 || c.Sizing.AccountRiskFraction > 1 {
		return core.NewConfigError("sizing.account_risk_fraction", "must be in (0, 1]")
	}
	if c.Sizing.PerSymbolEquityCapPct <= 0 || c.Sizing.PerSymbolEquityCapPct > 1 {
		return core.NewConfigError("sizing.per_symbol_equity_cap_pct", "must be in (0, 1]")
	}

	if c.Execution.Impact.Model != "" {
		switch c.Execution.Impact.Model {
		case ImpactLinear, ImpactSquareRoot:
		default:
			return core.NewConfigError("execution.impact.model", "unsupported model "+c.Execution.Impact.Model)
		}
	}

	if c.Execution.DelayMs < 0 {
		return core.NewConfigError("execution.delay_ms", "must not be negative")
	}

	for _, trigger := range c.KillSwitch.Triggers {
		switch trigger.Type {
		case TriggerDrawdown, TriggerAbsoluteLoss, TriggerVolatility, TriggerVaR, TriggerTimeWindow:
		default:
			return core.NewConfigError("kill_switch.triggers", "unsupported trigger type "+trigger.Type)
		}
	}

	if c.Exits.Partials.Enabled {
		if len(c.Exits.Partials.Levels) == 0 {
			return core.NewConfigError("exits.partials.levels", "at least one level is required")
		}
		for _, level := range c.Exits.Partials.Levels {
			if level.RMultiple <= 0 {
				return core.NewConfigError("exits.partials.levels", "r_multiple must be positive")
			}
			if level.ExitPct <= 0 || level.ExitPct > 1 {
				return core.NewConfigError("exits.partials.levels", "exit_pct must be in (0, 1]")
			}
		}
	}

	switch c.Strategy.Name {
	case "ema_cross", "breakout", "":
	default:
		return core.NewConfigError("strategy.name", "unsupported strategy "+c.Strategy.Name)
	}

	switch c.Storage.Driver {
	case StorageBuntDB, StorageSQLite, StorageNone:
	default:
		return core.NewConfigError("storage.driver", "unsupported driver "+c.Storage.Driver)
	}

	return nil
}
