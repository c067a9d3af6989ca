package risk

import (
	"time"

	"github.com/StudioSol/set"

	"github.com/quantfall/riskcore/core"
)

// KillSwitch holds an ordered registry of triggers evaluated once per bar
// against a portfolio snapshot. The first trigger that fires latches the
// switch: new entries are halted, open positions keep exiting through the
// normal flow, and the switch never resets on its own.
type KillSwitch struct {
	triggers  []Trigger
	fired     *set.LinkedHashSetString
	active    bool
	reason    string
	activated time.Time
	log       core.Logger
}

// NewKillSwitch creates a kill-switch over the given triggers. Evaluation
// order is registration order.
func NewKillSwitch(log core.Logger, triggers ...Trigger) *KillSwitch {
	if log == nil {
		log = core.NewNopLogger()
	}
	return &KillSwitch{
		triggers: triggers,
		fired:    set.NewLinkedHashSetString(),
		log:      log,
	}
}

// AddTrigger appends a trigger to the evaluation order.
func (k *KillSwitch) AddTrigger(trigger Trigger) {
	k.triggers = append(k.triggers, trigger)
}

// Evaluate runs the triggers in registration order and returns the active
// state. Once active, triggers are no longer evaluated.
func (k *KillSwitch) Evaluate(snapshot core.Snapshot) bool {
	if k.active {
		return true
	}

	for _, trigger := range k.triggers {
		fired, reason := trigger.Check(snapshot)
		if !fired {
			continue
		}

		k.active = true
		k.reason = reason
		k.activated = snapshot.Time
		k.fired.Add(trigger.Name())

		k.log.WithFields(map[string]any{
			"trigger": trigger.Name(),
			"reason":  reason,
			"equity":  snapshot.Equity,
		}).Warn("kill switch activated")
		break
	}

	return k.active
}

// Active reports whether the switch has latched.
func (k *KillSwitch) Active() bool {
	return k.active
}

// Reason returns the message of the trigger that activated the switch.
func (k *KillSwitch) Reason() string {
	return k.reason
}

// ActivatedAt returns the snapshot timestamp at activation.
func (k *KillSwitch) ActivatedAt() time.Time {
	return k.activated
}

// FiredTriggers returns the names of triggers that have fired, in order.
func (k *KillSwitch) FiredTriggers() []string {
	names := make([]string, 0, k.fired.Length())
	for name := range k.fired.Iter() {
		names = append(names, name)
	}
	return names
}

// Reset clears the latch so the manager can be reused between runs. It is
// never called by the runtime itself.
func (k *KillSwitch) Reset() {
	k.active = false
	k.reason = ""
	k.activated = time.Time{}
	k.fired = set.NewLinkedHashSetString()
}
