package risk

import (
	"testing"
	"time"

	"github.com/quantfall/riskcore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTrigger struct {
	name   string
	fire   bool
	checks int
}

func (s *stubTrigger) Name() string { return s.name }

func (s *stubTrigger) Check(core.Snapshot) (bool, string) {
	s.checks++
	if s.fire {
		return true, s.name + " breached"
	}
	return false, ""
}

func snapshotAt(equity float64, at time.Time) core.Snapshot {
	return core.Snapshot{Equity: equity, Time: at}
}

func TestKillSwitch_LatchesOnFirstFire(t *testing.T) {
	first := &stubTrigger{name: "first", fire: true}
	second := &stubTrigger{name: "second", fire: true}
	ks := NewKillSwitch(core.NewNopLogger(), first, second)

	at := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	require.True(t, ks.Evaluate(snapshotAt(1000, at)))

	assert.True(t, ks.Active())
	assert.Equal(t, "first breached", ks.Reason())
	assert.Equal(t, at, ks.ActivatedAt())
	assert.Equal(t, []string{"first"}, ks.FiredTriggers())
	// Short-circuit: the second trigger never ran.
	assert.Zero(t, second.checks)

	// Further evaluations return active without re-checking anything.
	require.True(t, ks.Evaluate(snapshotAt(5000, at.Add(time.Hour))))
	assert.Equal(t, 1, first.checks)
}

func TestKillSwitch_RegistrationOrder(t *testing.T) {
	calm := &stubTrigger{name: "calm"}
	ks := NewKillSwitch(core.NewNopLogger(), calm)
	ks.AddTrigger(&stubTrigger{name: "angry", fire: true})

	require.True(t, ks.Evaluate(snapshotAt(1000, time.Now())))
	assert.Equal(t, 1, calm.checks)
	assert.Equal(t, []string{"angry"}, ks.FiredTriggers())
}

func TestKillSwitch_Reset(t *testing.T) {
	ks := NewKillSwitch(core.NewNopLogger(), &stubTrigger{name: "boom", fire: true})
	require.True(t, ks.Evaluate(snapshotAt(1000, time.Now())))

	ks.Reset()
	assert.False(t, ks.Active())
	assert.Empty(t, ks.Reason())
	assert.Empty(t, ks.FiredTriggers())
	assert.True(t, ks.ActivatedAt().IsZero())
}

func TestDrawdownTrigger(t *testing.T) {
	_, err := NewDrawdownTrigger(0)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	trigger, err := NewDrawdownTrigger(0.10)
	require.NoError(t, err)

	fired, _ := trigger.Check(core.Snapshot{Equity: 1000})
	assert.False(t, fired)

	// New peak, then a 5% dip: below the limit.
	trigger.Check(core.Snapshot{Equity: 1200})
	fired, _ = trigger.Check(core.Snapshot{Equity: 1140})
	assert.False(t, fired)

	// 10% off the 1200 peak fires.
	fired, reason := trigger.Check(core.Snapshot{Equity: 1080})
	assert.True(t, fired)
	assert.Contains(t, reason, "drawdown")
}

func TestDrawdownTrigger_FiresAfterRecoveryDip(t *testing.T) {
	ks := NewKillSwitch(core.NewNopLogger())
	trigger, err := NewDrawdownTrigger(0.10)
	require.NoError(t, err)
	ks.AddTrigger(trigger)

	at := time.Now()
	require.False(t, ks.Evaluate(snapshotAt(1000, at)))
	require.True(t, ks.Evaluate(snapshotAt(899, at.Add(time.Minute))))

	// Equity recovering does not release the latch.
	assert.True(t, ks.Evaluate(snapshotAt(1500, at.Add(2*time.Minute))))
	assert.True(t, ks.Active())
}

func TestAbsoluteLossTrigger(t *testing.T) {
	trigger, err := NewAbsoluteLossTrigger(500)
	require.NoError(t, err)

	// First snapshot pins the starting equity.
	fired, _ := trigger.Check(core.Snapshot{Equity: 10000})
	assert.False(t, fired)

	fired, _ = trigger.Check(core.Snapshot{Equity: 9501})
	assert.False(t, fired)

	fired, reason := trigger.Check(core.Snapshot{Equity: 9500})
	assert.True(t, fired)
	assert.Contains(t, reason, "loss")
}

func TestVolatilityTrigger_NeedsMinimumHistory(t *testing.T) {
	trigger, err := NewVolatilityTrigger(0.01, 20)
	require.NoError(t, err)

	// Violent swings, but fewer than the minimum observations: silent.
	equity := 1000.0
	for i := 0; i < minVolatilityObservations; i++ {
		if i%2 == 0 {
			equity *= 1.10
		} else {
			equity *= 0.90
		}
		fired, _ := trigger.Check(core.Snapshot{Equity: equity})
		assert.False(t, fired, "fired with only %d observations", i)
	}

	// One more swing completes the window and the estimate fires.
	fired, reason := trigger.Check(core.Snapshot{Equity: equity * 1.10})
	assert.True(t, fired)
	assert.Contains(t, reason, "volatility")
}

func TestVolatilityTrigger_QuietSeriesStaysSilent(t *testing.T) {
	trigger, err := NewVolatilityTrigger(0.50, 30)
	require.NoError(t, err)

	equity := 1000.0
	for i := 0; i < 30; i++ {
		equity *= 1.0001
		fired, _ := trigger.Check(core.Snapshot{Equity: equity})
		assert.False(t, fired)
	}
}

func TestVaRTrigger_Historical(t *testing.T) {
	trigger, err := NewVaRTrigger(0.95, 0.02, 50, VaRMethodHistorical)
	require.NoError(t, err)

	// Flat history, then a crash well beyond the 2% limit.
	equity := 1000.0
	for i := 0; i < minVaRObservations+5; i++ {
		equity *= 1.0005
		fired, _ := trigger.Check(core.Snapshot{Equity: equity})
		require.False(t, fired)
	}

	fired, reason := trigger.Check(core.Snapshot{Equity: equity * 0.90})
	assert.True(t, fired)
	assert.Contains(t, reason, "VaR")
}

func TestVaRTrigger_SmallLossBelowLimitIgnored(t *testing.T) {
	trigger, err := NewVaRTrigger(0.95, 0.05, 50, VaRMethodParametric)
	require.NoError(t, err)

	equity := 1000.0
	for i := 0; i < minVaRObservations+5; i++ {
		equity *= 1.0005
		trigger.Check(core.Snapshot{Equity: equity})
	}

	// A 1% drop breaches the estimate but sits under the 5% loss limit.
	fired, _ := trigger.Check(core.Snapshot{Equity: equity * 0.99})
	assert.False(t, fired)
}

func TestVaRTrigger_ConfigValidation(t *testing.T) {
	var cfgErr *core.ConfigError

	_, err := NewVaRTrigger(1.5, 0.02, 50, VaRMethodHistorical)
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewVaRTrigger(0.95, 0.02, 5, VaRMethodHistorical)
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewVaRTrigger(0.95, 0.02, 50, "montecarlo")
	require.ErrorAs(t, err, &cfgErr)
}

func TestTimeWindowTrigger(t *testing.T) {
	trigger, err := NewTimeWindowTrigger("09:30", "16:00", true)
	require.NoError(t, err)

	inside := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) // Monday
	fired, _ := trigger.Check(core.Snapshot{Time: inside})
	assert.False(t, fired)

	// Window edges are inclusive.
	open := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	fired, _ = trigger.Check(core.Snapshot{Time: open})
	assert.False(t, fired)

	early := time.Date(2024, 3, 4, 9, 29, 0, 0, time.UTC)
	fired, reason := trigger.Check(core.Snapshot{Time: early})
	assert.True(t, fired)
	assert.Contains(t, reason, "outside trading window")

	weekend := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC) // Saturday
	fired, reason = trigger.Check(core.Snapshot{Time: weekend})
	assert.True(t, fired)
	assert.Equal(t, "non-trading day", reason)

	_, err = NewTimeWindowTrigger("16:00", "09:30", false)
	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewTimeWindowTrigger("25:99", "16:00", false)
	require.ErrorAs(t, err, &cfgErr)
}
