// Package activity tracks when the user last interacted with the page.
package activity

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
)

// Events are the DOM events that count as genuine user activity.
var Events = []string{"click", "keydown", "touchstart", "scroll", "mousemove"}

// Clock holds the ActivityRecord for one application root.
type Clock struct {
	mu                sync.Mutex
	lastInteractionAt time.Time
	listeners         []*listener
	now               func() time.Time
}

type listener struct {
	fn func(time.Time)
}

// NewClock creates a clock whose last interaction is now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{
		lastInteractionAt: now(),
		now:               now,
	}
}

// RecordActivity marks the current time as the last interaction and
// notifies subscribers in subscription order.
func (c *Clock) RecordActivity() {
	c.mu.Lock()
	at := c.now()
	c.lastInteractionAt = at
	subs := append([]*listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range subs {
		l.fn(at)
	}
}

// LastInteraction returns the time of the last recorded interaction.
func (c *Clock) LastInteraction() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInteractionAt
}

// TimeSinceLastActivity returns how long ago the last interaction happened.
func (c *Clock) TimeSinceLastActivity() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastInteractionAt)
}

// OnActivity registers fn to run after every recorded interaction.
func (c *Clock) OnActivity(fn func(at time.Time)) (unsubscribe func()) {
	l := &listener{fn: fn}

	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, cur := range c.listeners {
				if cur == l {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Bind attaches passive listeners for every activity event. The returned
// unbind is idempotent.
func (c *Clock) Bind(adapter dom.Adapter) (unbind func()) {
	if adapter == nil || !adapter.Available() {
		return func() {}
	}

	offs := make([]func(), 0, len(Events))
	for _, ev := range Events {
		offs = append(offs, adapter.Listen(ev, func(dom.Event) {
			c.RecordActivity()
		}, dom.ListenerOptions{Passive: true}))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, off := range offs {
				off()
			}
		})
	}
}
