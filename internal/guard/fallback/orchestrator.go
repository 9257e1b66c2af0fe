// Package fallback implements the escalation policy that turns stall
// signals into silent soft recoveries and, once the retry budget is spent,
// a warned full reload.
package fallback

import (
	"slices"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
	"go.uber.org/zap"
)

// Stall reasons raised by the guard itself.
const (
	ReasonTimeout  = "timeout"
	ReasonManual   = "manual"
	ReasonOrphaned = "orphaned-state"
)

// Defaults
const (
	DefaultTimeoutDelay        = 45 * time.Second
	DefaultMaxRecoveryAttempts = 3
	DefaultReentrancyWindow    = 5 * time.Second
	DefaultReloadDelay         = 3 * time.Second
	DefaultWarningMessage      = "The page stopped responding and will reload in a moment."
)

const (
	Immediate          = time.Nanosecond
	NoReentrancyWindow = time.Duration(-1)
)

// Cleaner performs the DOM half of a soft recovery.
type Cleaner interface {
	Cleanup() sweeper.Result
}

// Aborter cancels every pending request.
type Aborter interface {
	AbortAll() int
}

// Notifier shows the user-visible warning before a reload.
type Notifier interface {
	ShowWarning(message string)
}

// Reloader performs the hard recovery.
type Reloader interface {
	Reload()
}

// Config holds orchestrator tunables. Zero durations select the defaults.
// Use Immediate for a reload on the next tick and NoReentrancyWindow to
// never collapse automatic signals.
type Config struct {
	TimeoutDelay        time.Duration
	MaxRecoveryAttempts int
	ReentrancyWindow    time.Duration
	ReloadDelay         time.Duration
	EnableForceReload   bool
	EnableStateReset    bool
	WarningMessage      string
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		TimeoutDelay:        DefaultTimeoutDelay,
		MaxRecoveryAttempts: DefaultMaxRecoveryAttempts,
		ReentrancyWindow:    DefaultReentrancyWindow,
		ReloadDelay:         DefaultReloadDelay,
		EnableForceReload:   true,
		EnableStateReset:    true,
		WarningMessage:      DefaultWarningMessage,
	}
}

// Orchestrator owns the RecoveryAttemptCounter and the idle timer.
type Orchestrator struct {
	mu       sync.Mutex
	cfg      Config
	sched    scheduler.Scheduler
	cleaner  Cleaner
	aborter  Aborter
	notifier Notifier
	reloader Reloader
	logger   *zap.Logger

	phase    Phase
	count    int
	lastPass time.Time
	idle     scheduler.Task
	reload   scheduler.Task
	started  bool

	handlers []func(Recovery)
}

// New creates an orchestrator. Nil collaborators are skipped.
func New(cfg Config, sched scheduler.Scheduler, cleaner Cleaner, aborter Aborter, notifier Notifier, reloader Reloader, logger *zap.Logger) *Orchestrator {
	if cfg.TimeoutDelay <= 0 {
		cfg.TimeoutDelay = DefaultTimeoutDelay
	}
	if cfg.MaxRecoveryAttempts < 0 {
		cfg.MaxRecoveryAttempts = DefaultMaxRecoveryAttempts
	}
	if cfg.ReentrancyWindow == 0 {
		cfg.ReentrancyWindow = DefaultReentrancyWindow
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = DefaultReloadDelay
	}
	if cfg.WarningMessage == "" {
		cfg.WarningMessage = DefaultWarningMessage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		sched:    sched,
		cleaner:  cleaner,
		aborter:  aborter,
		notifier: notifier,
		reloader: reloader,
		logger:   logger,
	}
}

// OnRecovery registers fn to observe every escalation decision.
func (o *Orchestrator) OnRecovery(fn func(Recovery)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers = append(o.handlers, fn)
}

// Start arms the idle timer.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true
	o.armIdleLocked()
}

// Stop cancels the idle timer and any pending reload.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = false
	scheduler.CancelAll(o.idle, o.reload)
	o.idle, o.reload = nil, nil
	if o.phase == PhaseHardRecovering {
		o.phase = PhaseIdle
	}
}

// Attempts returns the current RecoveryAttemptCounter value.
func (o *Orchestrator) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Phase returns the current escalation phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Budget returns MaxRecoveryAttempts.
func (o *Orchestrator) Budget() int {
	return o.cfg.MaxRecoveryAttempts
}

// RecordActivity reacts to genuine user interaction: the attempt counter
// goes back to zero, a pending reload is cancelled and the idle timer is
// re-created.
func (o *Orchestrator) RecordActivity(at time.Time) {
	o.mu.Lock()
	prev := o.count
	o.count = 0
	cancelled := o.reload != nil && o.reload.Cancel()
	o.reload = nil
	if o.phase == PhaseHardRecovering {
		o.phase = PhaseIdle
	}
	if o.started {
		o.armIdleLocked()
	}
	o.mu.Unlock()

	if cancelled {
		o.logger.Info("user activity cancelled pending reload", zap.Int("attempts", prev))
		o.emit(Recovery{Kind: KindCancelled, Reason: "activity", Attempt: prev, At: at})
	}
}

// Signal raises a stall signal. Signals arriving within the re-entrancy
// window of the previous pass collapse into it.
func (o *Orchestrator) Signal(reason string) Recovery {
	return o.escalate(reason, false)
}

// ForceFallback is the manual trigger. It bypasses the re-entrancy
// window so each call advances the escalation.
func (o *Orchestrator) ForceFallback(reason string) Recovery {
	if reason == "" {
		reason = ReasonManual
	}
	return o.escalate(reason, true)
}

func (o *Orchestrator) escalate(reason string, manual bool) Recovery {
	now := o.sched.Now()
	rec := Recovery{ID: id.NewRecoveryID(), Reason: reason, Manual: manual, At: now}

	o.mu.Lock()
	switch {
	case o.phase == PhaseHardRecovering:
		o.mu.Unlock()
		rec.Kind = KindIgnored
		o.logger.Debug("stall signal ignored, reload pending", zap.String("reason", reason))
		return rec
	case !manual && !o.lastPass.IsZero() && now.Sub(o.lastPass) < o.cfg.ReentrancyWindow:
		rec.Attempt = o.count
		o.mu.Unlock()
		rec.Kind = KindCollapsed
		o.logger.Debug("stall signal collapsed into recent recovery", zap.String("reason", reason))
		o.emit(rec)
		return rec
	case o.count < o.cfg.MaxRecoveryAttempts:
		o.count++
		o.phase = PhaseSoftRecovering
		o.lastPass = now
		rec.Attempt = o.count
		o.mu.Unlock()

		o.softRecover(&rec)

		o.mu.Lock()
		if o.phase == PhaseSoftRecovering {
			o.phase = PhaseIdle
		}
		o.mu.Unlock()
	default:
		o.phase = PhaseHardRecovering
		o.lastPass = now
		rec.Attempt = o.count
		rec.Kind = KindHard
		reload := o.cfg.EnableForceReload
		if reload {
			o.reload = o.sched.After(o.cfg.ReloadDelay, o.doReload)
		} else {
			o.count = 0
			o.phase = PhaseIdle
		}
		o.mu.Unlock()

		o.hardRecover(&rec, reload)
	}

	o.emit(rec)
	return rec
}

// softRecover is silent towards the user; it only logs.
func (o *Orchestrator) softRecover(rec *Recovery) {
	rec.Kind = KindSoft
	if o.cfg.EnableStateReset && o.cleaner != nil {
		rec.Swept = o.cleaner.Cleanup()
	}
	if o.aborter != nil {
		rec.Aborted = o.aborter.AbortAll()
	}
	o.logger.Info("soft recovery",
		zap.String("id", rec.ID.String()),
		zap.String("reason", rec.Reason),
		zap.Int("attempt", rec.Attempt),
		zap.Int("budget", o.cfg.MaxRecoveryAttempts),
		zap.Int("removed", rec.Swept.Removed),
		zap.Int("aborted", rec.Aborted))
}

func (o *Orchestrator) hardRecover(rec *Recovery, reload bool) {
	if o.notifier != nil {
		o.notifier.ShowWarning(o.cfg.WarningMessage)
	}
	if !reload {
		o.logger.Warn("recovery budget exhausted, forced reload disabled",
			zap.String("reason", rec.Reason),
			zap.Int("attempts", rec.Attempt))
		return
	}
	rec.ReloadAt = rec.At.Add(o.cfg.ReloadDelay)
	o.logger.Warn("recovery budget exhausted, reloading",
		zap.String("id", rec.ID.String()),
		zap.String("reason", rec.Reason),
		zap.Int("attempts", rec.Attempt),
		zap.Duration("delay", o.cfg.ReloadDelay))
}

func (o *Orchestrator) doReload() {
	o.mu.Lock()
	if o.phase != PhaseHardRecovering {
		o.mu.Unlock()
		return
	}
	o.reload = nil
	o.phase = PhaseIdle
	o.count = 0
	o.lastPass = time.Time{}
	o.mu.Unlock()

	o.logger.Warn("reloading page")
	if o.reloader != nil {
		o.reloader.Reload()
	}
}

// armIdleLocked re-creates the idle timer rather than extending it.
func (o *Orchestrator) armIdleLocked() {
	if o.idle != nil {
		o.idle.Cancel()
	}
	o.idle = o.sched.After(o.cfg.TimeoutDelay, func() {
		o.mu.Lock()
		o.idle = nil
		o.mu.Unlock()
		o.Signal(ReasonTimeout)
	})
}

func (o *Orchestrator) emit(rec Recovery) {
	o.mu.Lock()
	handlers := slices.Clone(o.handlers)
	o.mu.Unlock()

	for _, fn := range handlers {
		fn(rec)
	}
}
