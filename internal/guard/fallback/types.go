package fallback

import (
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
)

// Phase is the conceptual escalation state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSoftRecovering
	PhaseHardRecovering
)

// String returns the string representation of the phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSoftRecovering:
		return "soft_recovering"
	case PhaseHardRecovering:
		return "hard_recovering"
	default:
		return "unknown"
	}
}

// Kind is the outcome of one stall signal.
type Kind string

const (
	KindSoft      Kind = "soft"
	KindHard      Kind = "hard"
	KindCollapsed Kind = "collapsed"
	KindIgnored   Kind = "ignored"
	// KindCancelled reports a pending reload cancelled by user activity.
	KindCancelled Kind = "cancelled"
)

// Recovery describes what the orchestrator did with one signal.
type Recovery struct {
	ID      id.RecoveryID  `json:"id,omitempty"`
	Kind    Kind           `json:"kind"`
	Reason  string         `json:"reason"`
	Manual  bool           `json:"manual"`
	Attempt int            `json:"attempt"`
	Swept   sweeper.Result `json:"swept"`
	Aborted int            `json:"aborted"`
	// ReloadAt is set on hard recoveries that will reload.
	ReloadAt time.Time `json:"reload_at,omitempty"`
	At       time.Time `json:"at"`
}
