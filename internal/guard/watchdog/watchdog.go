package watchdog

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
	"go.uber.org/zap"
)

var (
	ErrOperationTimeout = errors.New("operation exceeded max pending time")
	ErrAborted          = errors.New("operation aborted")
	ErrOverflow         = errors.New("too many concurrent operations")
)

// Defaults
const (
	DefaultMaxPendingTime        = 30 * time.Second
	DefaultReaperInterval        = 5 * time.Second
	DefaultMaxConcurrentRequests = 50
)

// durationSamples bounds the completed-duration history used for stats.
const durationSamples = 512

// Config holds watchdog tunables.
type Config struct {
	MaxPendingTime        time.Duration
	ReaperInterval        time.Duration
	MaxConcurrentRequests int
}

func (c Config) withDefaults() Config {
	if c.MaxPendingTime <= 0 {
		c.MaxPendingTime = DefaultMaxPendingTime
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = DefaultReaperInterval
	}
	if c.MaxConcurrentRequests <= 0 {
		c.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	return c
}

// Abort describes an operation the watchdog cancelled.
type Abort struct {
	ID    id.OperationID
	Label string
	Age   time.Duration
	Cause error
}

// Watchdog is the pending-operation registry.
type Watchdog struct {
	mu     sync.Mutex
	cfg    Config
	sched  scheduler.Scheduler
	logger *zap.Logger
	ops    map[id.OperationID]*Operation
	reaper scheduler.Task

	tracked   uint64
	completed uint64
	reaped    uint64
	aborted   uint64
	durations []float64
	next      int

	handlers []func(Abort)
}

// New creates a watchdog. The reaper does not run until Start.
func New(cfg Config, sched scheduler.Scheduler, logger *zap.Logger) *Watchdog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{
		cfg:    cfg.withDefaults(),
		sched:  sched,
		logger: logger,
		ops:    make(map[id.OperationID]*Operation),
	}
}

// OnAbort registers fn to observe every cancellation the watchdog makes.
func (w *Watchdog) OnAbort(fn func(Abort)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, fn)
}

// Start schedules the periodic reaper.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reaper != nil {
		return
	}
	w.reaper = w.sched.Every(w.cfg.ReaperInterval, func() { w.Reap() })
}

// Stop cancels the reaper. Pending operations stay registered.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reaper != nil {
		w.reaper.Cancel()
		w.reaper = nil
	}
}

// Track registers a new pending operation derived from ctx. When the
// concurrency limit is reached the oldest pending operation is aborted
// with ErrOverflow to make room.
func (w *Watchdog) Track(ctx context.Context, label string, opts ...TrackOption) *Operation {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithCancelCause(ctx)
	op := &Operation{
		ID:        id.NewOperationID(),
		Label:     label,
		StartedAt: w.sched.Now(),
		ctx:       opCtx,
		cancel:    cancel,
		w:         w,
	}
	for _, opt := range opts {
		opt(op)
	}

	w.mu.Lock()
	var evicted *Operation
	if len(w.ops) >= w.cfg.MaxConcurrentRequests {
		evicted = w.oldestLocked()
		delete(w.ops, evicted.ID)
		w.aborted++
	}
	w.ops[op.ID] = op
	w.tracked++
	w.mu.Unlock()

	if evicted != nil {
		w.logger.Warn("concurrent operation limit reached, aborting oldest",
			zap.Int("limit", w.cfg.MaxConcurrentRequests),
			zap.String("evicted", evicted.Label))
		w.fire(evicted, ErrOverflow)
	}
	return op
}

// Reap cancels every operation older than MaxPendingTime and returns how
// many it cancelled.
func (w *Watchdog) Reap() int {
	now := w.sched.Now()

	w.mu.Lock()
	var stale []*Operation
	for opID, op := range w.ops {
		if now.Sub(op.StartedAt) > w.cfg.MaxPendingTime {
			stale = append(stale, op)
			delete(w.ops, opID)
		}
	}
	w.reaped += uint64(len(stale))
	w.mu.Unlock()

	sortByStart(stale)
	for _, op := range stale {
		w.logger.Warn("reaping stalled operation",
			zap.String("id", op.ID.String()),
			zap.String("label", op.Label),
			zap.Duration("age", now.Sub(op.StartedAt)))
		w.fire(op, ErrOperationTimeout)
	}
	return len(stale)
}

// AbortAll cancels and clears every pending operation.
func (w *Watchdog) AbortAll() int {
	w.mu.Lock()
	all := make([]*Operation, 0, len(w.ops))
	for _, op := range w.ops {
		all = append(all, op)
	}
	w.ops = make(map[id.OperationID]*Operation)
	w.aborted += uint64(len(all))
	w.mu.Unlock()

	sortByStart(all)
	for _, op := range all {
		w.fire(op, ErrAborted)
	}
	if len(all) > 0 {
		w.logger.Info("aborted all pending operations", zap.Int("count", len(all)))
	}
	return len(all)
}

// Cancel aborts one pending operation by id.
func (w *Watchdog) Cancel(opID id.OperationID) bool {
	w.mu.Lock()
	op, ok := w.ops[opID]
	if ok {
		delete(w.ops, opID)
		w.aborted++
	}
	w.mu.Unlock()

	if ok {
		w.fire(op, ErrAborted)
	}
	return ok
}

// Pending returns the registry size.
func (w *Watchdog) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ops)
}

// Operations returns a snapshot of pending operations, oldest first.
func (w *Watchdog) Operations() []*Operation {
	w.mu.Lock()
	list := make([]*Operation, 0, len(w.ops))
	for _, op := range w.ops {
		list = append(list, op)
	}
	w.mu.Unlock()

	sortByStart(list)
	return list
}

// complete removes op and records its duration. It reports whether op
// was still pending.
func (w *Watchdog) complete(op *Operation) bool {
	now := w.sched.Now()

	w.mu.Lock()
	if _, ok := w.ops[op.ID]; !ok {
		w.mu.Unlock()
		return false
	}
	delete(w.ops, op.ID)
	w.completed++
	w.recordDurationLocked(now.Sub(op.StartedAt))
	w.mu.Unlock()

	op.cancel(nil)
	return true
}

func (w *Watchdog) recordDurationLocked(d time.Duration) {
	if len(w.durations) < durationSamples {
		w.durations = append(w.durations, d.Seconds())
		return
	}
	w.durations[w.next] = d.Seconds()
	w.next = (w.next + 1) % durationSamples
}

// fire cancels an operation that has already been removed from the
// registry and notifies observers.
func (w *Watchdog) fire(op *Operation, cause error) {
	op.cancel(cause)
	if op.onCancel != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("cancel hook panicked", zap.String("label", op.Label), zap.Any("panic", r))
				}
			}()
			op.onCancel(cause)
		}()
	}

	w.mu.Lock()
	handlers := slices.Clone(w.handlers)
	w.mu.Unlock()

	ab := Abort{ID: op.ID, Label: op.Label, Age: w.sched.Now().Sub(op.StartedAt), Cause: cause}
	for _, fn := range handlers {
		fn(ab)
	}
}

func (w *Watchdog) oldestLocked() *Operation {
	var oldest *Operation
	for _, op := range w.ops {
		if oldest == nil || op.StartedAt.Before(oldest.StartedAt) ||
			(op.StartedAt.Equal(oldest.StartedAt) && op.ID < oldest.ID) {
			oldest = op
		}
	}
	return oldest
}

func sortByStart(ops []*Operation) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].StartedAt.Equal(ops[j].StartedAt) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].StartedAt.Before(ops[j].StartedAt)
	})
}
