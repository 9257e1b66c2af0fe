package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/activity"
	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/GriffinCanCode/freezeguard/internal/guard/fallback"
	"github.com/GriffinCanCode/freezeguard/internal/guard/modal"
	"github.com/GriffinCanCode/freezeguard/internal/guard/orphan"
	"github.com/GriffinCanCode/freezeguard/internal/guard/renders"
	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/guard/watchdog"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"go.uber.org/zap"
)

// ErrClosed is returned when starting a guard that was closed.
var ErrClosed = errors.New("guard is closed")

// Options configure a Guard.
type Options struct {
	Config  config.GuardConfig
	Adapter dom.Adapter
	// Scheduler drives every timer. When nil the guard runs its own Loop.
	Scheduler scheduler.Scheduler
	Logger    *zap.Logger
	Markers   *sweeper.Markers
	// Notifier and Reloader default to the adapter when it implements
	// them, otherwise to log-only implementations.
	Notifier fallback.Notifier
	Reloader fallback.Reloader
}

// Guard is the per-application-root context object.
type Guard struct {
	cfg     config.GuardConfig
	adapter dom.Adapter
	sched   scheduler.Scheduler
	loop    *scheduler.Loop
	logger  *zap.Logger

	bus      *events.Bus
	clock    *activity.Clock
	sweeper  *sweeper.Sweeper
	modals   *modal.Registry
	detector *orphan.Detector
	watchdog *watchdog.Watchdog
	renders  *renders.Monitor
	fallback *fallback.Orchestrator

	mu        sync.Mutex
	started   bool
	closed    bool
	teardown  []func()
	stopLoop  func()
	closeOnce sync.Once
}

// New validates cfg and builds every subsystem. Nothing runs until Start.
func New(opts Options) (*Guard, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter := opts.Adapter
	if adapter == nil {
		adapter = dom.Unavailable{}
	}
	markers := sweeper.DefaultMarkers()
	if opts.Markers != nil {
		markers = *opts.Markers
	}

	g := &Guard{
		cfg:     opts.Config,
		adapter: adapter,
		sched:   opts.Scheduler,
		logger:  logger,
		bus:     events.NewBus(logger.Named("events")),
	}
	if g.sched == nil {
		g.loop = scheduler.NewLoop(logger.Named("loop"))
		g.sched = g.loop
	}

	cfg := opts.Config
	g.clock = activity.NewClock(g.sched.Now)
	g.sweeper = sweeper.New(adapter, markers, logger.Named("sweeper"))
	g.modals = modal.NewRegistry(adapter, g.sweeper, g.sched, cfg.CloseDelay, logger.Named("modal"))
	g.detector = orphan.NewDetector(adapter, g.modals, g.sweeper, g.sched, cfg.DetectorInterval, logger.Named("orphan"))
	g.watchdog = watchdog.New(watchdog.Config{
		MaxPendingTime:        cfg.MaxPendingTime,
		ReaperInterval:        cfg.ReaperInterval,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
	}, g.sched, logger.Named("watchdog"))
	g.renders = renders.New(renders.Config{
		TimeWindow: cfg.RenderWindow,
		MaxRenders: cfg.MaxRenders,
	}, g.sched.Now, logger.Named("renders"))
	g.fallback = fallback.New(fallback.Config{
		TimeoutDelay:        cfg.TimeoutDelay,
		MaxRecoveryAttempts: cfg.MaxRecoveryAttempts,
		ReentrancyWindow:    orDuration(cfg.ReentrancyWindow, fallback.NoReentrancyWindow),
		ReloadDelay:         orDuration(cfg.ReloadDelay, fallback.Immediate),
		EnableForceReload:   cfg.EnableForceReload,
		EnableStateReset:    cfg.EnableStateReset,
		WarningMessage:      cfg.WarningMessage,
	}, g.sched, g, g.watchdog, notifierFor(opts, logger), reloaderFor(opts, logger), logger.Named("fallback"))

	g.wire()
	return g, nil
}

// Start binds activity listeners and starts every timer. It is safe to
// call more than once.
func (g *Guard) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	if g.started {
		return nil
	}
	g.started = true

	if g.loop != nil {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = g.loop.Run(ctx)
		}()
		g.stopLoop = func() {
			cancel()
			g.loop.Close()
			<-done
		}
	}

	unbind := g.clock.Bind(g.adapter)
	g.teardown = append(g.teardown, unbind)

	g.detector.Start()
	g.teardown = append(g.teardown, g.detector.Stop)

	g.watchdog.Start()
	g.teardown = append(g.teardown, g.watchdog.Stop)

	g.fallback.Start()
	g.teardown = append(g.teardown, g.fallback.Stop)

	g.logger.Info("guard started",
		zap.Bool("dom", g.adapter.Available()),
		zap.Duration("timeout_delay", g.cfg.TimeoutDelay),
		zap.Int("max_recovery_attempts", g.cfg.MaxRecoveryAttempts))
	return nil
}

// Close tears the guard down exactly once.
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		teardown, stopLoop := g.teardown, g.stopLoop
		g.teardown, g.stopLoop = nil, nil
		g.mu.Unlock()

		for i := len(teardown) - 1; i >= 0; i-- {
			teardown[i]()
		}
		aborted := g.watchdog.AbortAll()
		g.modals.DestroyAll()
		if stopLoop != nil {
			stopLoop()
		}
		g.bus.Close()

		g.logger.Info("guard closed", zap.Int("aborted", aborted))
	})
}

// Bus returns the event bus.
func (g *Guard) Bus() *events.Bus { return g.bus }

// Clock returns the activity clock.
func (g *Guard) Clock() *activity.Clock { return g.clock }

// Sweeper returns the DOM sweeper.
func (g *Guard) Sweeper() *sweeper.Sweeper { return g.sweeper }

// Modals returns the modal controller registry.
func (g *Guard) Modals() *modal.Registry { return g.modals }

// Detector returns the orphan state detector.
func (g *Guard) Detector() *orphan.Detector { return g.detector }

// Watchdog returns the request watchdog.
func (g *Guard) Watchdog() *watchdog.Watchdog { return g.watchdog }

// Renders returns the render loop monitor.
func (g *Guard) Renders() *renders.Monitor { return g.renders }

// Fallback returns the fallback orchestrator.
func (g *Guard) Fallback() *fallback.Orchestrator { return g.fallback }

// Scheduler returns the scheduler driving the guard.
func (g *Guard) Scheduler() scheduler.Scheduler { return g.sched }

// Config returns the guard configuration.
func (g *Guard) Config() config.GuardConfig { return g.cfg }

// NewModal creates a modal controller.
func (g *Guard) NewModal(opts modal.Options) *modal.Controller {
	return g.modals.New(opts)
}

// Track registers a network operation with the watchdog.
func (g *Guard) Track(ctx context.Context, label string, opts ...watchdog.TrackOption) *watchdog.Operation {
	return g.watchdog.Track(ctx, label, opts...)
}

// RecordRender records one render of component.
func (g *Guard) RecordRender(component string) (renders.Excessive, bool) {
	return g.renders.RecordRender(component)
}

// RecordActivity records a user interaction that did not arrive through
// the document listeners.
func (g *Guard) RecordActivity() {
	g.clock.RecordActivity()
}

// FreezeDetected raises an automatic stall signal.
func (g *Guard) FreezeDetected(reason string) fallback.Recovery {
	return g.fallback.Signal(reason)
}

// ForceFallback is the manual trigger.
func (g *Guard) ForceFallback(reason string) fallback.Recovery {
	return g.fallback.ForceFallback(reason)
}

// Cleanup sweeps the document. When no modal controller is active every
// open marker is stale, so the pass ignores them.
func (g *Guard) Cleanup() sweeper.Result {
	if g.modals.ActiveCount() == 0 {
		return g.sweeper.SweepAll()
	}
	return g.sweeper.Sweep()
}

type logNotifier struct{ logger *zap.Logger }

func (n logNotifier) ShowWarning(message string) {
	n.logger.Warn("user warning", zap.String("message", message))
}

type logReloader struct{ logger *zap.Logger }

func (r logReloader) Reload() {
	r.logger.Error("reload requested but no document is attached")
}

// orDuration keeps a validated zero from selecting the orchestrator default.
func orDuration(d, zero time.Duration) time.Duration {
	if d == 0 {
		return zero
	}
	return d
}

func notifierFor(opts Options, logger *zap.Logger) fallback.Notifier {
	if opts.Notifier != nil {
		return opts.Notifier
	}
	if n, ok := opts.Adapter.(fallback.Notifier); ok {
		return n
	}
	return logNotifier{logger: logger}
}

func reloaderFor(opts Options, logger *zap.Logger) fallback.Reloader {
	if opts.Reloader != nil {
		return opts.Reloader
	}
	if r, ok := opts.Adapter.(fallback.Reloader); ok {
		return r
	}
	return logReloader{logger: logger}
}
