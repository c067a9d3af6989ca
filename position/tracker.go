package position

import (
	"time"

	"github.com/quantfall/riskcore/core"
)

// Tracker enforces the one-position-per-symbol lifecycle: Enter fails while a
// position is open, Exit fails without one. It also accumulates realized P&L
// across trades, entry commissions included.
type Tracker struct {
	stopMultiplier float64
	log            core.Logger

	position *Position
	realized float64
}

// NewTracker creates a position tracker. The stop multiplier scales the entry
// ATR into the initial protective stop distance.
func NewTracker(stopMultiplier float64, log core.Logger) (*Tracker, error) {
	if stopMultiplier < 0 {
		return nil, core.NewConfigError("stop_multiplier", "must not be negative")
	}
	if log == nil {
		log = core.NewNopLogger()
	}
	return &Tracker{stopMultiplier: stopMultiplier, log: log}, nil
}

// Position returns the open position, or nil.
func (t *Tracker) Position() *Position {
	return t.position
}

// RealizedPNL returns the running total across all closed trades, net of
// all commissions charged so far.
func (t *Tracker) RealizedPNL() float64 {
	return t.realized
}

// Enter opens a position from an entry fill. The fill price already includes
// spread, slippage and impact; the fill commission is charged against the
// realized total. The initial stop is entry -/+ entryATR * stopMultiplier.
func (t *Tracker) Enter(fill core.Fill, entryATR float64, isLong bool, at time.Time) (*Position, error) {
	if t.position != nil {
		return nil, &core.StateError{Op: "enter", Err: core.ErrPositionExists}
	}
	if fill.Quantity <= 0 {
		return nil, &core.StateError{Op: "enter", Err: core.ErrInvalidQuantity}
	}

	stopDistance := entryATR * t.stopMultiplier
	initialStop := fill.Price - stopDistance
	if !isLong {
		initialStop = fill.Price + stopDistance
	}

	pos := &Position{
		EntryPrice:  fill.Price,
		Size:        fill.Quantity,
		EntryATR:    entryATR,
		IsLong:      isLong,
		InitialStop: initialStop,
		EntryTime:   at,
		initialSize: fill.Quantity,
	}
	if stopDistance > 0 {
		pos.SetStop(initialStop)
	}

	t.position = pos
	t.realized -= fill.Commission

	t.log.WithFields(map[string]any{
		"entry_price": fill.Price,
		"size":        fill.Quantity,
		"is_long":     isLong,
		"entry_atr":   entryATR,
		"stop":        initialStop,
		"commission":  fill.Commission,
	}).Debug("entered position")

	return pos, nil
}

// Exit closes the full position against an exit fill and returns the terminal
// ExitResult. The position is destroyed.
func (t *Tracker) Exit(fill core.Fill, reason string) (core.ExitResult, error) {
	if t.position == nil {
		return core.ExitResult{}, &core.StateError{Op: "exit", Err: core.ErrNoPosition}
	}
	result := t.close(fill.Price, t.position.Size, fill.Commission, reason)
	t.position = nil

	t.log.WithFields(map[string]any{
		"pnl":        result.PNL,
		"r_multiple": result.RMultiple,
		"reason":     reason,
	}).Debug("exited position")

	return result, nil
}

// ExitPartial closes a fraction of the position. The remaining size keeps the
// original entry price, ATR and stop basis.
func (t *Tracker) ExitPartial(fill core.Fill, quantity float64, reason string) (core.ExitResult, error) {
	if t.position == nil {
		return core.ExitResult{}, &core.StateError{Op: "exit_partial", Err: core.ErrNoPosition}
	}
	if quantity <= 0 || quantity >= t.position.Size {
		return core.ExitResult{}, &core.StateError{Op: "exit_partial", Err: core.ErrInvalidQuantity}
	}

	result := t.close(fill.Price, quantity, fill.Commission, reason)
	t.position.Size -= quantity
	return result, nil
}

// close realizes P&L for `quantity` shares at `price`.
// pnl = (exit - entry) * quantity * direction - commission; the r-multiple is
// pnl over the initial risk carried by the exited quantity, and 0 when the
// entry risk was zero.
func (t *Tracker) close(price, quantity, commission float64, reason string) core.ExitResult {
	pos := t.position

	direction := 1.0
	if !pos.IsLong {
		direction = -1.0
	}
	pnl := (price-pos.EntryPrice)*quantity*direction - commission

	rMultiple := 0.0
	if risk := pos.RiskPerShare() * quantity; risk > 0 {
		rMultiple = pnl / risk
	}

	t.realized += pnl

	return core.ExitResult{
		PNL:        pnl,
		RMultiple:  rMultiple,
		TotalPNL:   t.realized,
		Commission: commission,
		Reason:     reason,
	}
}
