package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodLength is the width of the bucket a round id is derived from.
const PeriodLength = 3 * time.Minute

// Color is one of the drawable colors
type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorViolet Color = "violet"
)

// ParseColor validates a color name
func ParseColor(s string) (Color, error) {
	switch c := Color(s); c {
	case ColorRed, ColorGreen, ColorViolet:
		return c, nil
	}
	return "", fmt.Errorf("unknown color %q", s)
}

// ColorSet is the one or two colors a drawn number maps to.
// It is encoded as the colors joined by "+", e.g. "violet+red".
type ColorSet []Color

// Contains reports whether c is part of the set
func (s ColorSet) Contains(c Color) bool {
	for _, v := range s {
		if v == c {
			return true
		}
	}
	return false
}

func (s ColorSet) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = string(c)
	}
	return strings.Join(parts, "+")
}

func (s ColorSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ColorSet) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = nil
		return nil
	}
	var out ColorSet
	for _, part := range strings.Split(string(text), "+") {
		c, err := ParseColor(part)
		if err != nil {
			return err
		}
		out = append(out, c)
	}
	*s = out
	return nil
}

// Outcome is the result drawn when a round closes
type Outcome struct {
	Number int             `json:"number"`
	Colors ColorSet        `json:"color"`
	Price  decimal.Decimal `json:"price"`
}

// RoundPhase is the lifecycle phase of the current round as seen by clients
type RoundPhase string

const (
	PhaseOpen     RoundPhase = "OPEN"
	PhaseLocked   RoundPhase = "LOCKED"
	PhaseSettling RoundPhase = "SETTLING"
	PhaseCooldown RoundPhase = "COOLDOWN"
)

// LifecycleMessage names a notification sent to round observers
type LifecycleMessage string

const (
	MessageGameState   LifecycleMessage = "gameState"
	MessagePeriodStart LifecycleMessage = "periodStart"
	MessagePeriodEnd   LifecycleMessage = "periodEnd"
)

// Round is a single betting period. Outcome fields stay nil until the round
// is settled and are written together exactly once.
type Round struct {
	ID        string           `db:"id" json:"id"`
	StartTime time.Time        `db:"start_time" json:"startTime"`
	EndTime   time.Time        `db:"end_time" json:"endTime"`
	Number    *int             `db:"number" json:"number,omitempty"`
	Color     ColorSet         `db:"color" json:"color,omitempty"`
	Price     *decimal.Decimal `db:"price" json:"price,omitempty"`
	IsActive  bool             `db:"is_active" json:"isActive"`
	SettledAt *time.Time       `db:"settled_at" json:"settledAt,omitempty"`
}

// IsSettled reports whether the outcome has been recorded
func (r *Round) IsSettled() bool {
	return r.Number != nil
}

// Outcome returns the recorded outcome, or nil while the round is open
func (r *Round) Outcome() *Outcome {
	if !r.IsSettled() {
		return nil
	}
	out := &Outcome{Number: *r.Number, Colors: r.Color}
	if r.Price != nil {
		out.Price = *r.Price
	}
	return out
}

// ApplyOutcome marks the round settled with the given outcome
func (r *Round) ApplyOutcome(outcome Outcome, at time.Time) {
	number := outcome.Number
	price := outcome.Price
	colors := append(ColorSet(nil), outcome.Colors...)
	settledAt := at
	r.Number = &number
	r.Color = colors
	r.Price = &price
	r.IsActive = false
	r.SettledAt = &settledAt
}

// Remaining returns the time left until the round closes, never negative
func (r *Round) Remaining(now time.Time) time.Duration {
	if d := r.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// BettingClosed reports whether a bet placed at now must be rejected.
func (r *Round) BettingClosed(now time.Time, lockWindow time.Duration) bool {
	return !r.IsActive || r.EndTime.Sub(now) < lockWindow
}

// Phase derives the client-facing phase at now
func (r *Round) Phase(now time.Time, lockWindow time.Duration) RoundPhase {
	switch {
	case r.IsSettled():
		return PhaseCooldown
	case !now.Before(r.EndTime):
		return PhaseSettling
	case r.BettingClosed(now, lockWindow):
		return PhaseLocked
	default:
		return PhaseOpen
	}
}

// PeriodID derives the round id from its start time: the UTC date as
// YYYYMMDD followed by hour*60 + minute/3. The index is unique per bucket
// but not contiguous.
func PeriodID(start time.Time) string {
	t := start.UTC()
	index := t.Hour()*60 + t.Minute()/3
	return fmt.Sprintf("%s%d", t.Format("20060102"), index)
}

// NextPeriodStart returns the earliest start time at or after now whose
// period id cannot collide with a round that started at prevStart.
// A zero prevStart means there is no previous round.
func NextPeriodStart(prevStart, now time.Time) time.Time {
	start := now.UTC().Truncate(time.Second)
	if prevStart.IsZero() {
		return start
	}
	if earliest := prevStart.UTC().Truncate(time.Second).Add(PeriodLength); start.Before(earliest) {
		return earliest
	}
	return start
}
