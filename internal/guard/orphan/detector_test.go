package orphan

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/modal"
	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	doc     *dom.Document
	sched   *scheduler.Manual
	sweeper *sweeper.Sweeper
	sweeps  int
	modals  *modal.Registry
	det     *Detector
	reports []Report
}

func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	f := &fixture{doc: dom.MustParse(src), sched: scheduler.NewManual(time.Time{})}
	f.sweeper = sweeper.New(f.doc, sweeper.DefaultMarkers(), nil)
	f.modals = modal.NewRegistry(f.doc, f.sweeper, f.sched, 0, nil)
	f.sweeper.OnSweep(func(sweeper.Result, bool) { f.sweeps++ })
	f.det = NewDetector(f.doc, f.modals, f.sweeper, f.sched, 0, nil)
	f.det.OnInconsistentState(func(r Report) { f.reports = append(f.reports, r) })
	return f
}

func TestConsistentDocument(t *testing.T) {
	f := newFixture(t, `<html><body><main>ok</main></body></html>`)

	rep, notified := f.det.Tick()
	assert.False(t, notified)
	assert.False(t, rep.Inconsistent())
	assert.Zero(t, f.sweeps)
}

func TestChecks(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		wantOverlay bool
		wantBody    bool
	}{
		{"visible overlay", `<html><body><div class="modal-backdrop"></div></body></html>`, true, false},
		{"hidden overlay", `<html><body><div class="modal-backdrop" style="display: none"></div></body></html>`, false, false},
		{"pointer events", `<html><body style="pointer-events: none"></body></html>`, false, true},
		{"pointer events auto", `<html><body style="pointer-events: auto"></body></html>`, false, false},
		{"overflow hidden", `<html><body style="overflow: hidden"></body></html>`, false, true},
		{"no-scroll class", `<html><body class="no-scroll"></body></html>`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.src)
			rep := f.det.check()
			assert.Equal(t, tt.wantOverlay, rep.OverlayWithoutModal)
			assert.Equal(t, tt.wantBody, rep.BlockedBody)
		})
	}
}

func TestActiveModalIsNotOrphaned(t *testing.T) {
	f := newFixture(t, `<html><body class="modal-open">
		<div data-overlay id="overlay"></div><div role="dialog" id="dialog"></div>
	</body></html>`)
	c := f.modals.New(modal.Options{
		Name:    "checkout",
		Content: f.doc.Query("#dialog")[0],
		Overlay: f.doc.Query("#overlay")[0],
	})
	require.NoError(t, c.Open())
	f.sched.Flush()

	rep, notified := f.det.Tick()
	assert.False(t, notified)
	assert.False(t, rep.Inconsistent())
	assert.Len(t, f.doc.Query("#overlay"), 1)
}

func TestZeroAreaOpenModal(t *testing.T) {
	f := newFixture(t, `<html><body><div role="dialog" id="dialog"></div></body></html>`)
	content := f.doc.Query("#dialog")[0]
	c := f.modals.New(modal.Options{Name: "ghost", Content: content})
	require.NoError(t, c.Open())
	f.sched.Flush()
	f.doc.SetRect(content, dom.Rect{})

	rep, notified := f.det.Tick()
	require.True(t, notified)
	assert.Equal(t, []id.ModalID{c.ID()}, rep.ZeroAreaModals)
	assert.False(t, rep.OverlayWithoutModal)
}

func TestIncidentSweepsTwiceThenReportsPersistent(t *testing.T) {
	f := newFixture(t, `<html><body style="overflow: hidden"></body></html>`)
	// a host keeps re-locking the body after every sweep
	f.sweeper.OnSweep(func(sweeper.Result, bool) {
		f.sweeps++
		_ = f.doc.SetBodyStyle("overflow", "hidden")
	})

	var notified []bool
	for i := 0; i < 7; i++ {
		_, ok := f.det.Tick()
		notified = append(notified, ok)
	}

	// sweep, cooldown, sweep, cooldown, persistent, silent, silent
	assert.Equal(t, []bool{true, false, true, false, true, false, false}, notified)
	assert.Equal(t, 2, f.sweeps)
	require.Len(t, f.reports, 3)
	assert.Equal(t, 1, f.reports[0].Sweeps)
	assert.Equal(t, 2, f.reports[1].Sweeps)
	assert.True(t, f.reports[2].Persistent)
	assert.Equal(t, f.reports[0].Incident, f.reports[2].Incident)
}

func TestResolvedIncidentStartsFresh(t *testing.T) {
	f := newFixture(t, `<html><body><div class="modal-backdrop"></div></body></html>`)

	first, ok := f.det.Tick()
	require.True(t, ok)
	assert.Empty(t, f.doc.Query(".modal-backdrop"))

	// cooldown tick finds a clean document and closes the incident
	_, ok = f.det.Tick()
	assert.False(t, ok)

	require.NoError(t, f.doc.SetBodyStyle("pointer-events", "none"))
	second, ok := f.det.Tick()
	require.True(t, ok)
	assert.NotEqual(t, first.Incident, second.Incident)
	assert.Equal(t, 1, second.Sweeps)
}

func TestStaleOpenMarkersAreSweptWhenNoControllerIsActive(t *testing.T) {
	f := newFixture(t, `<html><body class="modal-open">
		<div data-radix-portal id="portal"><div data-state="open" role="dialog"></div></div>
	</body></html>`)

	_, ok := f.det.Tick()
	require.True(t, ok)
	assert.Empty(t, f.doc.Query("#portal"))
	assert.False(t, f.doc.HasBodyClass("modal-open"))
}

func TestStartPollsOnInterval(t *testing.T) {
	f := newFixture(t, `<html><body><div class="modal-backdrop"></div></body></html>`)
	f.det.Start()
	f.det.Start()

	f.sched.Advance(DefaultInterval - time.Millisecond)
	assert.Empty(t, f.reports)

	f.sched.Advance(time.Millisecond)
	assert.Len(t, f.reports, 1)

	f.det.Stop()
	require.NoError(t, f.doc.SetBodyStyle("overflow", "hidden"))
	f.sched.Advance(time.Minute)
	assert.Len(t, f.reports, 1)
}

func TestUnavailableDocumentIsNoop(t *testing.T) {
	sched := scheduler.NewManual(time.Time{})
	sw := sweeper.New(nil, sweeper.DefaultMarkers(), nil)
	reg := modal.NewRegistry(nil, sw, sched, 0, nil)

	var det *Detector
	require.NotPanics(t, func() { det = NewDetector(nil, reg, sw, sched, 0, nil) })

	det.Start()
	assert.Zero(t, sched.Pending())
	_, ok := det.Tick()
	assert.False(t, ok)
}

func TestInspectDoesNotSweep(t *testing.T) {
	f := newFixture(t, `<html><body class="modal-open"><div data-overlay></div></body></html>`)

	for i := 0; i < 3; i++ {
		rep, bad := f.det.Inspect()
		assert.True(t, bad)
		assert.True(t, rep.OverlayWithoutModal)
		assert.True(t, rep.BlockedBody)
		assert.Empty(t, rep.Incident)
	}
	assert.Zero(t, f.sweeps)
	assert.Empty(t, f.reports)
	assert.Len(t, f.doc.Query("[data-overlay]"), 1)
}
