// Package script runs JavaScript scenarios against a guard. Scenarios
// drive modals, requests, renders and user activity through a small
// `guard` global and inspect the document through `document`, which makes
// freeze and recovery behavior reproducible outside a browser.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard"
	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/GriffinCanCode/freezeguard/internal/httpwatch"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrNoVirtualClock is thrown by guard.advance when the guard runs on a
// wall-clock scheduler.
var ErrNoVirtualClock = errors.New("scenario clock cannot be advanced")

// Runtime wraps a goja VM bound to one guard and document
type Runtime struct {
	vm     *goja.Runtime
	config Config
	guard  *guard.Guard
	doc    *dom.Document
	logger *zap.Logger
	client *httpwatch.Client
	mu     sync.Mutex

	// ctx of the running scenario, for guard.fetch
	ctx context.Context

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	// Bus events observed during a run
	events   []events.Event
	eventsMu sync.Mutex
	unsub    func()
}

// New creates a runtime for g. doc may be nil when the guard has no
// document.
func New(config Config, g *guard.Guard, doc *dom.Document, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := config.HTTP
	if client.Logger == nil {
		client.Logger = logger.Named("fetch")
	}
	r := &Runtime{
		vm:     goja.New(),
		config: config,
		guard:  g,
		doc:    doc,
		logger: logger,
		client: httpwatch.NewClient(g, client),
		ctx:    context.Background(),
	}
	r.unsub = g.Bus().Subscribe(func(ev events.Event) {
		r.eventsMu.Lock()
		r.events = append(r.events, ev)
		r.eventsMu.Unlock()
	})

	if err := r.setupGlobals(); err != nil {
		r.unsub()
		return nil, err
	}
	return r, nil
}

// Run executes a scenario with the configured timeout
func (r *Runtime) Run(ctx context.Context, source string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()
	r.eventsMu.Lock()
	r.events = nil
	r.eventsMu.Unlock()

	var journalStart int
	if r.doc != nil {
		journalStart = len(r.doc.Journal())
	}

	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	r.ctx = ctx
	defer func() { r.ctx = context.Background() }()

	done := make(chan struct{})
	go func() {
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(source)
	close(done)
	r.vm.ClearInterrupt()

	result := &Result{Duration: time.Since(start)}
	r.consoleMu.Lock()
	result.Console = append([]LogEntry(nil), r.console...)
	r.consoleMu.Unlock()
	r.eventsMu.Lock()
	result.Events = append([]events.Event(nil), r.events...)
	r.eventsMu.Unlock()
	if r.doc != nil {
		result.Changes = r.doc.Journal()[journalStart:]
	}

	if err != nil {
		result.Error = err.Error()
		r.logger.Debug("scenario failed", zap.Error(err))
		return result, fmt.Errorf("scenario: %w", err)
	}
	result.Value = exportValue(val)
	return result, nil
}

// Close detaches the runtime from the guard
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	r.vm = nil
	return nil
}

// setupGlobals configures global objects
func (r *Runtime) setupGlobals() error {
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if r.config.MaxCallStack > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStack)
	}

	// Remove host escape hatches
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	if err := r.vm.Set("guard", r.guardObject()); err != nil {
		return err
	}
	return r.vm.Set("document", r.documentObject())
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    r.guard.Scheduler().Now(),
		})
		r.consoleMu.Unlock()
		return goja.Undefined()
	}
}

// throw raises err as a JavaScript exception.
func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
