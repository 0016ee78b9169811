package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SignalStatus represents the lifecycle of a tracked trade idea.
// Transitions are monotonic: PENDING → ACTIVE → COMPLETED.
type SignalStatus string

const (
	SignalPending   SignalStatus = "PENDING"
	SignalActive    SignalStatus = "ACTIVE"
	SignalCompleted SignalStatus = "COMPLETED"
)

// Rank returns the position of the status in the lifecycle (0, 1, 2).
func (s SignalStatus) Rank() int {
	switch s {
	case SignalActive:
		return 1
	case SignalCompleted:
		return 2
	default:
		return 0
	}
}

// Outcome is how a completed signal was closed.
type Outcome string

const (
	OutcomeStopLoss   Outcome = "STOP_LOSS"
	OutcomeTakeProfit Outcome = "TAKE_PROFIT"
)

// SignalEvent labels an entry of the signal's append-only update log.
type SignalEvent string

const (
	EventTracked   SignalEvent = "TRACKED"
	EventActivated SignalEvent = "ACTIVATED"
	EventTargetHit SignalEvent = "TARGET_HIT"
	EventStopped   SignalEvent = "STOPPED"
	EventCompleted SignalEvent = "COMPLETED"
)

// Target is a take-profit level. Reached is never unset once true.
type Target struct {
	Price   float64 `json:"price"`
	Reached bool    `json:"reached"`
}

// SignalUpdate is a timestamped entry in the signal's event log.
type SignalUpdate struct {
	At      time.Time   `json:"at"`
	Event   SignalEvent `json:"event"`
	Price   float64     `json:"price"`
	Message string      `json:"message,omitempty"`
}

// Setup is an accepted trade idea handed to the signal manager for tracking.
type Setup struct {
	Strategy    string
	Direction   Direction
	Entry       float64 // 0 = missing
	StopLoss    float64
	Targets     []float64
	Suitability float64
}

// HasEntry returns true if the setup carries a usable entry price.
func (s Setup) HasEntry() bool {
	return s.Entry > 0
}

// Validate checks the setup is coherent for its direction.
func (s Setup) Validate() error {
	if !s.HasEntry() {
		return ErrMissingEntry
	}
	if s.Strategy == "" {
		return fmt.Errorf("%w: missing strategy", ErrInvalidSetup)
	}
	if s.Direction != Long && s.Direction != Short {
		return fmt.Errorf("%w: direction %q", ErrInvalidSetup, s.Direction)
	}
	if len(s.Targets) == 0 {
		return fmt.Errorf("%w: no targets", ErrInvalidSetup)
	}
	if s.StopLoss > 0 && (s.StopLoss-s.Entry)*s.Direction.Sign() >= 0 {
		return fmt.Errorf("%w: stop %.4f on the wrong side of entry %.4f", ErrInvalidSetup, s.StopLoss, s.Entry)
	}
	return nil
}

// Signal is a tracked, stateful trade idea. Owned and mutated exclusively by
// the signal manager; everyone else gets copies from Clone.
type Signal struct {
	ID           string
	Symbol       string
	Strategy     string
	Direction    Direction
	Entry        float64
	StopLoss     float64
	Targets      []Target
	Status       SignalStatus
	CurrentPrice float64
	PnL          float64
	Outcome      Outcome // empty until completed
	CreatedAt    time.Time
	ActivatedAt  *time.Time
	ClosedAt     *time.Time
	Updates      []SignalUpdate
}

// Clone returns a deep copy safe to hand to external readers.
func (s Signal) Clone() Signal {
	c := s
	c.Targets = append([]Target(nil), s.Targets...)
	c.Updates = append([]SignalUpdate(nil), s.Updates...)
	if s.ActivatedAt != nil {
		t := *s.ActivatedAt
		c.ActivatedAt = &t
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return c
}

// TargetsReached returns how many targets have been touched.
func (s Signal) TargetsReached() int {
	n := 0
	for _, t := range s.Targets {
		if t.Reached {
			n++
		}
	}
	return n
}

// AllTargetsReached returns true if every target has been touched.
func (s Signal) AllTargetsReached() bool {
	return len(s.Targets) > 0 && s.TargetsReached() == len(s.Targets)
}

// Touches reports whether price touches level in the signal's favour:
// price >= level for LONG, price <= level for SHORT.
func Touches(d Direction, price, level float64) bool {
	if d == Short {
		return price <= level
	}
	return price >= level
}

// Breaches reports whether price breaches a stop level against the signal:
// price <= stop for LONG, price >= stop for SHORT.
func Breaches(d Direction, price, stop float64) bool {
	if d == Short {
		return price >= stop
	}
	return price <= stop
}

// DirectionalPnL devuelve el delta de precio desde la entrada en el sentido del
// trade. Se recalcula en cada tick (nunca se acumula) con aritmética decimal
// para no arrastrar errores de coma flotante.
func DirectionalPnL(d Direction, entry, price float64) float64 {
	delta := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(entry))
	if d == Short {
		delta = delta.Neg()
	}
	f, _ := delta.Float64()
	return f
}

// SignalPatch is a partial update for the persistence collaborator.
// Nil fields are left untouched.
type SignalPatch struct {
	Status       *SignalStatus
	Targets      []Target
	CurrentPrice *float64
	PnL          *float64
	Outcome      *Outcome
	ActivatedAt  *time.Time
	ClosedAt     *time.Time
	Updates      []SignalUpdate
}

// SignalStats aggregates closed signals.
type SignalStats struct {
	Active    int
	Completed int
	Wins      int // outcome TAKE_PROFIT
	Losses    int // outcome STOP_LOSS
	WinRate   float64
	AvgPnL    float64
	TotalPnL  float64
}

// ComputeStats calcula las estadísticas a partir del log de señales completadas.
func ComputeStats(completed []Signal, active int) SignalStats {
	st := SignalStats{Active: active, Completed: len(completed)}
	if len(completed) == 0 {
		return st
	}
	total := decimal.Zero
	for _, s := range completed {
		switch s.Outcome {
		case OutcomeTakeProfit:
			st.Wins++
		case OutcomeStopLoss:
			st.Losses++
		}
		total = total.Add(decimal.NewFromFloat(s.PnL))
	}
	st.WinRate = float64(st.Wins) / float64(len(completed))
	st.TotalPnL, _ = total.Float64()
	st.AvgPnL, _ = total.Div(decimal.NewFromInt(int64(len(completed)))).Float64()
	return st
}
