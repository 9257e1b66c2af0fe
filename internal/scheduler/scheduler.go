package scheduler

import (
	"container/heap"
	"errors"
	"sync/atomic"
	"time"
)

// ErrLoopClosed is returned when work is submitted to a stopped loop.
var ErrLoopClosed = errors.New("scheduler: loop is closed")

// Task is a handle to a scheduled callback.
type Task interface {
	// Cancel prevents any future run of the callback. It reports whether
	// the task was still pending.
	Cancel() bool
}

// Scheduler runs callbacks at points in time. All callbacks of one
// scheduler run serially, never concurrently with each other.
type Scheduler interface {
	Now() time.Time
	// After runs fn once, d from now.
	After(d time.Duration, fn func()) Task
	// Every runs fn each interval until cancelled.
	Every(interval time.Duration, fn func()) Task
	// Defer runs fn on the next tick, before any timer that is due later.
	Defer(fn func()) Task
}

// entry is one scheduled callback in a timer heap.
type entry struct {
	at       time.Time
	seq      uint64
	interval time.Duration
	fn       func()
	index    int
	canceled atomic.Bool
	// remove drops the entry from its owner's heap on cancel.
	remove func(*entry)
}

func (e *entry) Cancel() bool {
	if !e.canceled.CompareAndSwap(false, true) {
		return false
	}
	if e.remove != nil {
		e.remove(e)
	}
	return true
}

// timerHeap orders entries by due time, then by scheduling order.
type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// drop removes e if it is still queued in h.
func (h *timerHeap) drop(e *entry) {
	if e.index >= 0 && e.index < h.Len() && (*h)[e.index] == e {
		heap.Remove(h, e.index)
	}
}

// peek returns the earliest live entry, discarding cancelled ones.
func (h *timerHeap) peek() *entry {
	for h.Len() > 0 {
		e := (*h)[0]
		if !e.canceled.Load() {
			return e
		}
		heap.Pop(h)
	}
	return nil
}

// CancelAll cancels every task and returns how many were still pending.
func CancelAll(tasks ...Task) int {
	n := 0
	for _, t := range tasks {
		if t != nil && t.Cancel() {
			n++
		}
	}
	return n
}
