package httpwatch

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// String returns the string representation of the state
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerSettings configure when a backend that keeps hanging is cut off.
type BreakerSettings struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// Probes is the number of requests allowed while half-open; that many
	// successes close the breaker again.
	Probes int
	// OnStateChange is called whenever the state changes
	OnStateChange func(from, to BreakerState)
}

// Breaker stops new requests from piling up behind a backend whose
// requests keep getting reaped.
type Breaker struct {
	mu        sync.Mutex
	settings  BreakerSettings
	now       func() time.Time
	state     BreakerState
	failures  int
	inflight  int
	successes int
	openedAt  time.Time
}

// NewBreaker creates a closed breaker. A nil now selects time.Now.
func NewBreaker(settings BreakerSettings, now func() time.Time) *Breaker {
	if settings.Threshold <= 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.Probes <= 0 {
		settings.Probes = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{settings: settings, now: now}
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

// Allow reports whether a request may start. Every allowed request must
// be followed by exactly one Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked()
	switch b.state {
	case BreakerOpen:
		return ErrCircuitOpen
	case BreakerHalfOpen:
		if b.inflight >= b.settings.Probes {
			return ErrTooManyRequests
		}
		b.inflight++
	}
	return nil
}

// Record reports the outcome of an allowed request.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.settings.Threshold {
			b.setStateLocked(BreakerOpen)
		}
	case BreakerHalfOpen:
		if b.inflight > 0 {
			b.inflight--
		}
		if !success {
			b.setStateLocked(BreakerOpen)
			return
		}
		b.successes++
		if b.successes >= b.settings.Probes {
			b.setStateLocked(BreakerClosed)
		}
	}
}

// advanceLocked moves an open breaker to half-open once the cooldown passed.
func (b *Breaker) advanceLocked() {
	if b.state == BreakerOpen && !b.now().Before(b.openedAt.Add(b.settings.Cooldown)) {
		b.setStateLocked(BreakerHalfOpen)
	}
}

func (b *Breaker) setStateLocked(state BreakerState) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.failures, b.inflight, b.successes = 0, 0, 0
	if state == BreakerOpen {
		b.openedAt = b.now()
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(prev, state)
	}
}

func errorsIsBreaker(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
