package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/riskcore/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "riskcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
data:
  feeds:
    - symbol: SPY
      file: testdata/spy.csv
      timeframe: 1d
`

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 100_000.0, cfg.InitialEquity)
	assert.Equal(t, BadBarSkip, cfg.BadBarPolicy)
	assert.Equal(t, 14, cfg.ATR.Period)
	assert.Equal(t, 2.0, cfg.Stop.ATRMultiplier)
	assert.True(t, cfg.Trailing.Enabled)
	assert.Equal(t, "atr", cfg.Trailing.Type)
	assert.Equal(t, 0.01, cfg.Sizing.AccountRiskFraction)
	assert.Equal(t, 1.0, cfg.Sizing.PerSymbolEquityCapPct)
	assert.Equal(t, StorageBuntDB, cfg.Storage.Driver)
	assert.Equal(t, "breakout", cfg.Strategy.Name)
	assert.Empty(t, cfg.KillSwitch.Triggers)
}

func TestLoad_OverridesAndNesting(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
initial_equity: 50000
bad_bar_policy: abort

data:
  timeframe: 1h
  feeds:
    - symbol: SPY
      file: testdata/spy.csv
      timeframe: 1m

atr:
  period: 20

trailing:
  enabled: true
  type: atr
  multiplier: 3.0
  use_dynamic_atr: true
  dynamic_atr_min_samples: 10
  activation_r_multiple: 1.5

execution:
  spread_bps: 10
  delay_ms: 250
  slippage:
    tiers:
      - adv_threshold: 0
        bps: 5
      - adv_threshold: 1000000
        bps: 10
  commission:
    rate: 0.001
    min_commission: 1.0
  impact:
    model: linear
    rate: 0.0001

kill_switch:
  triggers:
    - type: absolute_loss
      max_loss: 5000
    - type: drawdown
      max_drawdown: 0.15

exits:
  partials:
    enabled: true
    levels:
      - r_multiple: 1.0
        exit_pct: 0.5

strategy:
  name: ema_cross
  ema_cross:
    fast_length: 5
    slow_length: 13
`))
	require.NoError(t, err)

	assert.Equal(t, 50_000.0, cfg.InitialEquity)
	assert.Equal(t, BadBarAbort, cfg.BadBarPolicy)
	assert.Equal(t, 20, cfg.ATR.Period)
	assert.Equal(t, 3.0, cfg.Trailing.Multiplier)
	assert.True(t, cfg.Trailing.UseDynamicATR)
	assert.Equal(t, 1.5, cfg.Trailing.ActivationRMultiple)
	assert.Equal(t, 10.0, cfg.Execution.SpreadBps)
	assert.Equal(t, 250, cfg.Execution.DelayMs)
	require.Len(t, cfg.Execution.Slippage.Tiers, 2)
	assert.Equal(t, 1_000_000.0, cfg.Execution.Slippage.Tiers[1].ADVThreshold)
	assert.Equal(t, ImpactLinear, cfg.Execution.Impact.Model)
	// trigger list order is preserved
	require.Len(t, cfg.KillSwitch.Triggers, 2)
	assert.Equal(t, TriggerAbsoluteLoss, cfg.KillSwitch.Triggers[0].Type)
	assert.Equal(t, 5000.0, cfg.KillSwitch.Triggers[0].MaxLoss)
	assert.Equal(t, TriggerDrawdown, cfg.KillSwitch.Triggers[1].Type)
	assert.Equal(t, 0.15, cfg.KillSwitch.Triggers[1].MaxDrawdown)
	require.Len(t, cfg.Exits.Partials.Levels, 1)
	assert.Equal(t, 0.5, cfg.Exits.Partials.Levels[0].ExitPct)
	assert.Equal(t, 5, cfg.Strategy.EMACross.FastLength)
}

func TestLoad_ValidationFailures(t *testing.T) {
	var cfgErr *core.ConfigError

	_, err := Load(writeConfig(t, "initial_equity: -5\n"+minimalConfig))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "initial_equity", cfgErr.Field)

	_, err = Load(writeConfig(t, "bad_bar_policy: explode\n"+minimalConfig))
	require.ErrorAs(t, err, &cfgErr)

	_, err = Load(writeConfig(t, "data:\n  feeds: []\n"))
	require.ErrorAs(t, err, &cfgErr)

	_, err = Load(writeConfig(t, minimalConfig+`
exits:
  partials:
    enabled: true
    levels:
      - r_multiple: 1.0
        exit_pct: 1.5
`))
	require.ErrorAs(t, err, &cfgErr)

	_, err = Load(writeConfig(t, minimalConfig+"storage:\n  driver: redis\n"))
	require.ErrorAs(t, err, &cfgErr)

	_, err = Load(writeConfig(t, minimalConfig+"sizing:\n  per_symbol_equity_cap_pct: 1.5\n"))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sizing.per_symbol_equity_cap_pct", cfgErr.Field)

	_, err = Load(writeConfig(t, minimalConfig+"kill_switch:\n  triggers:\n    - type: sentiment\n"))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "kill_switch.triggers", cfgErr.Field)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
