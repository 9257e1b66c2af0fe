package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a virtual-clock scheduler. Time only moves when Advance is
// called, and due callbacks run on the caller's goroutine in due order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers timerHeap
	seq    uint64
}

// NewManual creates a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After schedules fn to run once after d of virtual time.
func (m *Manual) After(d time.Duration, fn func()) Task {
	return m.schedule(d, 0, fn)
}

// Every schedules fn to run each interval of virtual time.
func (m *Manual) Every(interval time.Duration, fn func()) Task {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return m.schedule(interval, interval, fn)
}

// Defer schedules fn to run on the next Flush or Advance.
func (m *Manual) Defer(fn func()) Task {
	return m.schedule(0, 0, fn)
}

func (m *Manual) schedule(d, interval time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	e := &entry{at: m.now.Add(d), seq: m.seq, interval: interval, fn: fn, remove: m.remove}
	heap.Push(&m.timers, e)
	return e
}

func (m *Manual) remove(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers.drop(e)
}

// Flush runs everything due at the current virtual time, including
// callbacks scheduled by those callbacks.
func (m *Manual) Flush() int {
	return m.runUntil(m.Now())
}

// Advance moves the clock forward by d, running callbacks as their due
// time is reached. It returns the number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	return m.runUntil(m.Now().Add(d))
}

func (m *Manual) runUntil(target time.Time) int {
	ran := 0
	for {
		m.mu.Lock()
		e := m.timers.peek()
		if e == nil || e.at.After(target) {
			if target.After(m.now) {
				m.now = target
			}
			m.mu.Unlock()
			return ran
		}
		heap.Pop(&m.timers)
		if e.at.After(m.now) {
			m.now = e.at
		}
		if e.interval > 0 {
			m.seq++
			e.seq = m.seq
			e.at = e.at.Add(e.interval)
			heap.Push(&m.timers, e)
		}
		m.mu.Unlock()

		if e.interval == 0 {
			if !e.canceled.CompareAndSwap(false, true) {
				continue
			}
		} else if e.canceled.Load() {
			continue
		}
		e.fn()
		ran++
	}
}

// Pending returns the number of live scheduled tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.timers {
		if !e.canceled.Load() {
			n++
		}
	}
	return n
}
