// Package events carries guard signals between subsystems as an ordered
// list of subscriber callbacks.
//
// Handlers run synchronously, in subscription order, on the goroutine that
// publishes. A panicking handler is logged and skipped; the remaining
// handlers still run. Channel subscribers never block a publisher: when a
// channel is full the event is dropped for that subscriber and counted.
package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned when subscribing to a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// Kind identifies an event type.
type Kind string

const (
	KindActivity          Kind = "activity"
	KindStall             Kind = "stall"
	KindSoftRecovery      Kind = "soft_recovery"
	KindHardRecovery      Kind = "hard_recovery"
	KindRecoveryCollapsed Kind = "recovery_collapsed"
	KindReloadCancelled   Kind = "reload_cancelled"
	KindSweep             Kind = "sweep"
	KindInconsistentState Kind = "inconsistent_state"
	KindExcessiveRenders  Kind = "excessive_renders"
	KindOperationAborted  Kind = "operation_aborted"
	KindModalTransition   Kind = "modal_transition"
	KindCallbackFailed    Kind = "callback_failed"
)

// Event is one guard signal.
type Event struct {
	Kind   Kind                   `json:"kind"`
	At     time.Time              `json:"at"`
	Source string                 `json:"source"`
	Reason string                 `json:"reason,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	id      string
	kinds   map[Kind]bool
	handler Handler
	ch      chan<- Event
}

func (s *subscriber) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

// Stats summarizes bus traffic.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64

	logger *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler for the given kinds (all kinds when none are
// given) and returns a function that removes it.
func (b *Bus) Subscribe(handler Handler, kinds ...Kind) func() {
	id, _ := b.add(&subscriber{handler: handler, kinds: kindSet(kinds)})
	return func() { b.remove(id) }
}

// SubscribeChan registers a channel subscriber. Events are dropped rather
// than queued when ch is full.
func (b *Bus) SubscribeChan(ch chan<- Event, kinds ...Kind) (string, error) {
	return b.add(&subscriber{ch: ch, kinds: kindSet(kinds)})
}

// Unsubscribe removes a subscriber by id.
func (b *Bus) Unsubscribe(id string) {
	b.remove(id)
}

func (b *Bus) add(s *subscriber) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrBusClosed
	}
	s.id = uuid.NewString()
	b.subs = append(b.subs, s)
	return s.id, nil
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every interested subscriber. A zero At is set to now.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := append([]*subscriber(nil), b.subs...)
	b.mu.RUnlock()

	b.published.Add(1)
	for _, s := range subs {
		if !s.wants(ev.Kind) {
			continue
		}
		if s.ch != nil {
			select {
			case s.ch <- ev:
			default:
				b.dropped.Add(1)
			}
			continue
		}
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("kind", string(ev.Kind)),
				zap.String("subscriber", s.id),
				zap.Any("panic", r))
		}
	}()
	s.handler(ev)
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Subscribers: len(b.subs),
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}

// Close drops every subscriber. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.subs = nil
}

func kindSet(kinds []Kind) map[Kind]bool {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
