package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Loop is a single-goroutine event loop. Timers, deferred callbacks and
// submitted work all run on the loop goroutine, one at a time, mirroring
// the cooperative scheduling of a browser main thread.
type Loop struct {
	mu      sync.Mutex
	timers  timerHeap
	seq     uint64
	wake    chan struct{}
	done    chan struct{}
	running bool
	closed  bool

	logger *zap.Logger
}

// NewLoop creates a stopped loop. Call Run to start it.
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// After schedules fn to run once after d.
func (l *Loop) After(d time.Duration, fn func()) Task {
	return l.schedule(time.Now().Add(d), 0, fn)
}

// Every schedules fn to run each interval.
func (l *Loop) Every(interval time.Duration, fn func()) Task {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return l.schedule(time.Now().Add(interval), interval, fn)
}

// Defer schedules fn for the next loop iteration.
func (l *Loop) Defer(fn func()) Task {
	return l.schedule(time.Now(), 0, fn)
}

// Submit runs fn on the loop goroutine. Host code running on other
// goroutines uses it to keep DOM access serialized.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrLoopClosed
	}
	l.Defer(fn)
	return nil
}

func (l *Loop) schedule(at time.Time, interval time.Duration, fn func()) Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e := &entry{at: at, seq: l.seq, interval: interval, fn: fn, remove: l.remove}
	if l.closed {
		e.canceled.Store(true)
		return e
	}
	heap.Push(&l.timers, e)

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return e
}

func (l *Loop) remove(e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timers.drop(e)
}

// Run drives the loop until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.running = true
	l.mu.Unlock()

	defer l.shutdown()

	for {
		l.runDue()

		wait := l.nextWait()
		var timer *time.Timer
		var timerC <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case <-l.done:
			stopTimer(timer)
			return nil
		case <-l.wake:
		case <-timerC:
		}
		stopTimer(timer)
	}
}

// nextWait returns the delay until the earliest timer, or -1 when idle.
func (l *Loop) nextWait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.timers.peek()
	if e == nil {
		return -1
	}
	if d := time.Until(e.at); d > 0 {
		return d
	}
	return 0
}

// runDue runs every entry that is due now.
func (l *Loop) runDue() {
	for {
		l.mu.Lock()
		e := l.timers.peek()
		if e == nil || e.at.After(time.Now()) {
			l.mu.Unlock()
			return
		}
		heap.Pop(&l.timers)
		if e.interval > 0 {
			l.seq++
			e.seq = l.seq
			e.at = e.at.Add(e.interval)
			if now := time.Now(); e.at.Before(now) {
				e.at = now.Add(e.interval)
			}
			heap.Push(&l.timers, e)
		}
		l.mu.Unlock()

		l.invoke(e)
	}
}

func (l *Loop) invoke(e *entry) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled callback panicked", zap.Any("panic", r))
		}
	}()
	if e.interval == 0 {
		if !e.canceled.CompareAndSwap(false, true) {
			return
		}
	} else if e.canceled.Load() {
		return
	}
	e.fn()
}

// Close stops the loop and cancels every pending task. Safe to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
	if !l.running {
		l.cancelAllLocked()
	}
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.running = false
	l.closed = true
	l.cancelAllLocked()
}

func (l *Loop) cancelAllLocked() {
	for _, e := range l.timers {
		e.canceled.Store(true)
	}
	l.timers = nil
}

// Pending returns the number of scheduled tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.timers.Len()
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
