package guard

import (
	"context"
	"testing"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/GriffinCanCode/freezeguard/internal/guard/fallback"
	"github.com/GriffinCanCode/freezeguard/internal/guard/modal"
	"github.com/GriffinCanCode/freezeguard/internal/guard/watchdog"
	"github.com/GriffinCanCode/freezeguard/internal/infrastructure/config"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const stuckPage = `<!doctype html>
<html><body class="modal-open" style="overflow: hidden; pointer-events: none">
  <main id="app"><button id="buy">Buy</button></main>
  <div class="modal-backdrop" id="orphan"></div>
</body></html>`

type harness struct {
	g      *Guard
	doc    *dom.Document
	sched  *scheduler.Manual
	events []events.Event
}

func newHarness(t *testing.T, src string, mutate ...func(*config.GuardConfig)) *harness {
	t.Helper()
	cfg := config.DefaultGuard()
	for _, fn := range mutate {
		fn(&cfg)
	}
	h := &harness{doc: dom.MustParse(src), sched: scheduler.NewManual(time.Time{})}
	h.doc.SetClock(h.sched.Now)

	g, err := New(Options{Config: cfg, Adapter: h.doc, Scheduler: h.sched})
	require.NoError(t, err)
	h.g = g
	g.Bus().Subscribe(func(ev events.Event) { h.events = append(h.events, ev) })
	require.NoError(t, g.Start())
	t.Cleanup(g.Close)
	return h
}

func (h *harness) kinds() []events.Kind {
	out := make([]events.Kind, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (h *harness) count(kind events.Kind) int {
	n := 0
	for _, ev := range h.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultGuard()
	cfg.MaxPendingTime = 0

	_, err := New(Options{Config: cfg})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestOrphanDetectorCleansStuckPage(t *testing.T) {
	h := newHarness(t, stuckPage)

	h.sched.Advance(h.g.Config().DetectorInterval)

	assert.Empty(t, h.doc.Query("#orphan"))
	assert.False(t, h.doc.HasBodyClass("modal-open"))
	assert.Equal(t, "", h.doc.BodyStyle("pointer-events"))
	assert.Equal(t, 1, h.count(events.KindInconsistentState))
	assert.Equal(t, 1, h.count(events.KindSweep))
	assert.Zero(t, h.count(events.KindStall))
}

func TestUserActivityThroughDocument(t *testing.T) {
	h := newHarness(t, `<html><body><button id="b">x</button></body></html>`)

	h.g.ForceFallback("manual")
	require.Equal(t, 1, h.g.Fallback().Attempts())

	h.sched.Advance(10 * time.Second)
	assert.Equal(t, 1, h.doc.Dispatch("click", h.doc.Query("#b")[0]))

	assert.Zero(t, h.g.Fallback().Attempts())
	assert.Equal(t, time.Duration(0), h.g.Clock().TimeSinceLastActivity())
	assert.Equal(t, 1, h.count(events.KindActivity))
}

func TestRapidManualFallbackReloadsOnce(t *testing.T) {
	h := newHarness(t, `<html><body><main></main></body></html>`)

	op := h.g.Track(context.Background(), "GET /api/courses")
	for i := 0; i < 4; i++ {
		h.g.ForceFallback("manual")
	}

	assert.ErrorIs(t, op.Err(), watchdog.ErrAborted)
	assert.Equal(t, 3, h.count(events.KindSoftRecovery))
	assert.Equal(t, 1, h.count(events.KindHardRecovery))
	assert.Equal(t, 4, h.count(events.KindStall))
	assert.Equal(t, []string{h.g.Config().WarningMessage}, h.doc.Warnings())

	h.sched.Advance(h.g.Config().ReloadDelay)
	assert.Equal(t, 1, h.doc.Reloads())
}

func TestIdleTimeoutSoftRecovers(t *testing.T) {
	h := newHarness(t, `<html><body><main></main></body></html>`)

	h.sched.Advance(h.g.Config().TimeoutDelay)

	require.Equal(t, 1, h.count(events.KindSoftRecovery))
	for _, ev := range h.events {
		if ev.Kind == events.KindStall {
			assert.Equal(t, fallback.ReasonTimeout, ev.Reason)
		}
	}
	assert.Empty(t, h.doc.Warnings())
}

func TestStackedModalsThroughGuard(t *testing.T) {
	h := newHarness(t, `<html><body>
		<div data-radix-portal><div data-radix-dialog-overlay id="oa"></div><div role="dialog" id="a"></div></div>
		<div data-radix-portal><div role="dialog" id="b"></div></div>
	</body></html>`)

	a := h.g.NewModal(modal.Options{Name: "a", Content: h.doc.Query("#a")[0], Overlay: h.doc.Query("#oa")[0]})
	b := h.g.NewModal(modal.Options{Name: "b", Content: h.doc.Query("#b")[0]})
	require.NoError(t, a.Open())
	require.NoError(t, b.Open())
	h.sched.Flush()

	assert.Equal(t, modal.StateOpen, a.State())
	assert.Equal(t, modal.StateOpen, b.State())

	// detector ticks while both are legitimately open
	h.sched.Advance(3 * h.g.Config().DetectorInterval)
	assert.Zero(t, h.count(events.KindInconsistentState))
	assert.Len(t, h.doc.Query("#a"), 1)
	assert.Len(t, h.doc.Query("#b"), 1)

	snap := h.g.Snapshot()
	assert.Equal(t, 2, snap.OpenModals)
	assert.Len(t, snap.Modals, 2)
}

func TestPersistentZeroAreaModalIsForceClosed(t *testing.T) {
	h := newHarness(t, `<html><body><div role="dialog" id="ghost"></div></body></html>`,
		func(c *config.GuardConfig) { c.TimeoutDelay = time.Hour })

	content := h.doc.Query("#ghost")[0]
	c := h.g.NewModal(modal.Options{Name: "ghost", Content: content})
	require.NoError(t, c.Open())
	h.sched.Flush()
	h.doc.SetRect(content, dom.Rect{})

	// sweep, cooldown, sweep, cooldown, persistent
	h.sched.Advance(5 * h.g.Config().DetectorInterval)

	assert.Equal(t, modal.StateClosed, c.State())
	assert.Equal(t, 3, h.count(events.KindInconsistentState))
	require.Equal(t, 1, h.count(events.KindSoftRecovery))
	for _, ev := range h.events {
		if ev.Kind == events.KindSoftRecovery {
			assert.Equal(t, fallback.ReasonOrphaned, ev.Reason)
		}
	}
}

func TestPersistentZeroAreaModalSharingNameIsForceClosed(t *testing.T) {
	h := newHarness(t, `<html><body><div role="dialog" id="a"></div><div role="dialog" id="b"></div></body></html>`,
		func(c *config.GuardConfig) { c.TimeoutDelay = time.Hour })

	closed := h.g.NewModal(modal.Options{Name: "confirm", Content: h.doc.Query("#a")[0]})
	stuck := h.g.NewModal(modal.Options{Name: "confirm", Content: h.doc.Query("#b")[0]})
	require.NoError(t, stuck.Open())
	h.sched.Flush()
	h.doc.SetRect(stuck.Content(), dom.Rect{})

	h.sched.Advance(10 * h.g.Config().DetectorInterval)

	assert.Equal(t, modal.StateClosed, closed.State())
	assert.Equal(t, modal.StateClosed, stuck.State())
}

func TestRenderLoopIsObservedOnly(t *testing.T) {
	h := newHarness(t, `<html><body></body></html>`, func(c *config.GuardConfig) { c.MaxRenders = 3 })

	for i := 0; i < 5; i++ {
		h.g.RecordRender("CourseBuilder")
	}

	assert.Equal(t, 2, h.count(events.KindExcessiveRenders))
	assert.Zero(t, h.count(events.KindSoftRecovery))
	assert.Zero(t, h.g.Fallback().Attempts())
}

func TestCloseTearsDownOnce(t *testing.T) {
	h := newHarness(t, `<html><body><div role="dialog" id="d"></div></body></html>`)
	c := h.g.NewModal(modal.Options{Name: "d", Content: h.doc.Query("#d")[0]})
	require.NoError(t, c.Open())
	h.sched.Flush()
	op := h.g.Track(context.Background(), "upload")

	h.g.Close()
	h.g.Close()

	assert.Zero(t, h.doc.ListenerCount("click"))
	assert.Zero(t, h.sched.Pending())
	assert.ErrorIs(t, op.Err(), watchdog.ErrAborted)
	assert.Equal(t, modal.StateClosed, c.State())
	assert.Empty(t, h.g.Modals().List())
	assert.ErrorIs(t, h.g.Start(), ErrClosed)
}

func TestWithoutDocument(t *testing.T) {
	sched := scheduler.NewManual(time.Time{})
	g, err := New(Options{Config: config.DefaultGuard(), Scheduler: sched})
	require.NoError(t, err)
	require.NoError(t, g.Start())
	defer g.Close()

	sched.Advance(time.Minute)
	rec := g.ForceFallback("")
	assert.Equal(t, fallback.KindSoft, rec.Kind)
	assert.False(t, g.Snapshot().DOM)
}

func TestOwnLoopShutsDown(t *testing.T) {
	defer goleak.VerifyNone(t)

	g, err := New(Options{Config: config.DefaultGuard(), Adapter: dom.MustParse(`<html><body></body></html>`)})
	require.NoError(t, err)
	require.NoError(t, g.Start())

	op := g.Track(context.Background(), "ping")
	assert.True(t, op.Complete())
	g.Close()
}
