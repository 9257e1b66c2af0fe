package modal

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid modal transition")
	ErrDestroyed         = errors.New("modal controller destroyed")
)

// State is the lifecycle state of one modal.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// marker is the data-state attribute value written on a modal's nodes.
func (s State) marker() string {
	if s == StateOpening || s == StateOpen {
		return "open"
	}
	return "closed"
}
