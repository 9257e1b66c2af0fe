package guard

import (
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/GriffinCanCode/freezeguard/internal/guard/fallback"
	"github.com/GriffinCanCode/freezeguard/internal/guard/modal"
	"github.com/GriffinCanCode/freezeguard/internal/guard/orphan"
	"github.com/GriffinCanCode/freezeguard/internal/guard/renders"
	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/guard/watchdog"
	"go.uber.org/zap"
)

// Event sources
const (
	SourceActivity = "activity"
	SourceSweeper  = "sweeper"
	SourceModal    = "modal"
	SourceOrphan   = "orphan"
	SourceWatchdog = "watchdog"
	SourceRenders  = "renders"
	SourceFallback = "fallback"
)

// wire connects subsystem callbacks to each other and to the bus.
func (g *Guard) wire() {
	g.clock.OnActivity(func(at time.Time) {
		g.fallback.RecordActivity(at)
		g.bus.Publish(events.Event{Kind: events.KindActivity, At: at, Source: SourceActivity})
	})

	g.sweeper.OnSweep(func(r sweeper.Result, all bool) {
		if !r.Mutated() && r.Failures == 0 {
			return
		}
		g.bus.Publish(events.Event{
			Kind:   events.KindSweep,
			At:     g.sched.Now(),
			Source: SourceSweeper,
			Data: map[string]interface{}{
				"all":             all,
				"removed":         r.Removed,
				"styles_reset":    r.StylesReset,
				"classes_removed": r.ClassesRemoved,
				"refocused":       r.Refocused,
				"failures":        r.Failures,
			},
		})
	})

	g.modals.OnTransition(func(t modal.Transition) {
		g.bus.Publish(events.Event{
			Kind:   events.KindModalTransition,
			At:     t.At,
			Source: SourceModal,
			Data: map[string]interface{}{
				"id":   t.ID.String(),
				"name": t.Name,
				"from": t.From.String(),
				"to":   t.To.String(),
			},
		})
	})

	g.modals.OnFailure(func(f modal.Failure) {
		g.bus.Publish(events.Event{
			Kind:   events.KindCallbackFailed,
			At:     g.sched.Now(),
			Source: SourceModal,
			Reason: f.Err.Error(),
			Data:   map[string]interface{}{"name": f.Name, "hook": f.Hook},
		})
	})

	g.detector.OnInconsistentState(g.onInconsistentState)

	g.watchdog.OnAbort(func(a watchdog.Abort) {
		g.bus.Publish(events.Event{
			Kind:   events.KindOperationAborted,
			At:     g.sched.Now(),
			Source: SourceWatchdog,
			Reason: a.Cause.Error(),
			Data: map[string]interface{}{
				"id":     a.ID.String(),
				"label":  a.Label,
				"age_ms": a.Age.Milliseconds(),
			},
		})
	})

	g.renders.OnExcessive(func(e renders.Excessive) {
		g.bus.Publish(events.Event{
			Kind:   events.KindExcessiveRenders,
			At:     e.At,
			Source: SourceRenders,
			Data: map[string]interface{}{
				"component":           e.Component,
				"count":               e.Count,
				"time_span_ms":        e.TimeSpan.Milliseconds(),
				"average_interval_ms": e.AverageInterval.Milliseconds(),
			},
		})
	})

	g.fallback.OnRecovery(g.onRecovery)

	if g.cfg.DebugMode {
		debug := g.logger.Named("debug")
		g.bus.Subscribe(func(ev events.Event) {
			debug.Debug("guard event",
				zap.String("kind", string(ev.Kind)),
				zap.String("source", ev.Source),
				zap.String("reason", ev.Reason),
				zap.Any("data", ev.Data))
		})
	}
}

// onInconsistentState publishes every report. An incident that survived
// its sweeps force-closes unresponsive modals and becomes a stall signal.
func (g *Guard) onInconsistentState(rep orphan.Report) {
	g.bus.Publish(events.Event{
		Kind:   events.KindInconsistentState,
		At:     rep.At,
		Source: SourceOrphan,
		Reason: rep.Incident.String(),
		Data: map[string]interface{}{
			"overlay_without_modal": rep.OverlayWithoutModal,
			"blocked_body":          rep.BlockedBody,
			"zero_area_modals":      rep.ZeroAreaModals,
			"sweeps":                rep.Sweeps,
			"persistent":            rep.Persistent,
		},
	})

	if !rep.Persistent {
		return
	}
	for _, modalID := range rep.ZeroAreaModals {
		if c, ok := g.modals.Get(modalID); ok && c.State() == modal.StateOpen {
			g.logger.Warn("force-closing unresponsive modal",
				zap.String("modal", c.Name()),
				zap.String("modal_id", modalID.String()))
			c.ForceClose()
		}
	}
	g.fallback.Signal(fallback.ReasonOrphaned)
}

var recoveryKinds = map[fallback.Kind]events.Kind{
	fallback.KindSoft:      events.KindSoftRecovery,
	fallback.KindHard:      events.KindHardRecovery,
	fallback.KindCollapsed: events.KindRecoveryCollapsed,
	fallback.KindCancelled: events.KindReloadCancelled,
}

func (g *Guard) onRecovery(rec fallback.Recovery) {
	kind, ok := recoveryKinds[rec.Kind]
	if !ok {
		return
	}
	if rec.Kind != fallback.KindCancelled {
		g.bus.Publish(events.Event{
			Kind:   events.KindStall,
			At:     rec.At,
			Source: SourceFallback,
			Reason: rec.Reason,
			Data:   map[string]interface{}{"manual": rec.Manual},
		})
	}

	data := map[string]interface{}{
		"attempt": rec.Attempt,
		"budget":  g.fallback.Budget(),
	}
	if rec.ID != "" {
		data["id"] = rec.ID.String()
	}
	switch rec.Kind {
	case fallback.KindSoft:
		data["removed"] = rec.Swept.Removed
		data["aborted"] = rec.Aborted
	case fallback.KindHard:
		data["reload"] = !rec.ReloadAt.IsZero()
	}
	g.bus.Publish(events.Event{
		Kind:   kind,
		At:     rec.At,
		Source: SourceFallback,
		Reason: rec.Reason,
		Data:   data,
	})
}
