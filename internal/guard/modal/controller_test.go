package modal

import (
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><body class="modal-open" style="overflow: hidden">
  <div data-radix-portal id="portal-a">
    <div data-radix-dialog-overlay id="overlay-a"></div>
    <div role="dialog" id="dialog-a"><input id="field-a"></div>
  </div>
  <div data-radix-portal id="portal-b">
    <div role="dialog" id="dialog-b"></div>
  </div>
</body></html>`

type fixture struct {
	doc   *dom.Document
	sched *scheduler.Manual
	reg   *Registry
	trans []Transition
	fails []Failure
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		doc:   dom.MustParse(page),
		sched: scheduler.NewManual(time.Time{}),
	}
	sw := sweeper.New(f.doc, sweeper.DefaultMarkers(), nil)
	f.reg = NewRegistry(f.doc, sw, f.sched, 0, nil)
	f.reg.OnTransition(func(tr Transition) { f.trans = append(f.trans, tr) })
	f.reg.OnFailure(func(fl Failure) { f.fails = append(f.fails, fl) })
	return f
}

func (f *fixture) node(sel string) dom.Node {
	nodes := f.doc.Query(sel)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func (f *fixture) modalA(opts ...func(*Options)) *Controller {
	o := Options{Name: "a", Content: f.node("#dialog-a"), Overlay: f.node("#overlay-a")}
	for _, fn := range opts {
		fn(&o)
	}
	return f.reg.New(o)
}

func (f *fixture) open(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.Open())
	f.sched.Flush()
	require.Equal(t, StateOpen, c.State())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpening, "opening"},
		{StateOpen, "open"},
		{StateClosing, "closing"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestOpenReachesOpenOnNextTick(t *testing.T) {
	f := newFixture(t)
	opened := 0
	c := f.modalA(func(o *Options) { o.OnOpen = func() error { opened++; return nil } })

	require.NoError(t, c.Open())
	assert.Equal(t, StateOpening, c.State())
	assert.Zero(t, opened)

	v, _ := f.doc.Attr(f.node("#dialog-a"), "data-state")
	assert.Equal(t, "open", v)

	f.sched.Flush()
	assert.Equal(t, StateOpen, c.State())
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, f.reg.OpenCount())
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture, c *Controller)
		act   func(c *Controller) error
	}{
		{"close while closed", func(*fixture, *Controller) {}, (*Controller).Close},
		{"open while opening", func(_ *fixture, c *Controller) { _ = c.Open() }, (*Controller).Open},
		{"close while opening", func(_ *fixture, c *Controller) { _ = c.Open() }, (*Controller).Close},
		{"open while open", func(f *fixture, c *Controller) { _ = c.Open(); f.sched.Flush() }, (*Controller).Open},
		{"close while closing", func(f *fixture, c *Controller) {
			_ = c.Open()
			f.sched.Flush()
			_ = c.Close()
		}, (*Controller).Close},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.modalA()
			tt.setup(f, c)
			before := c.State()

			err := tt.act(c)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, c.State())
		})
	}
}

func TestOpenSweepsStaleOverlays(t *testing.T) {
	f := newFixture(t)
	c := f.modalA()

	require.NoError(t, c.Open())

	// portal-b belongs to no registered controller
	assert.Empty(t, f.doc.Query("#portal-b"))
	assert.Len(t, f.doc.Query("#portal-a"), 1)
	assert.Len(t, f.doc.Query("#overlay-a"), 1)
	assert.True(t, f.doc.HasBodyClass("modal-open"))
	assert.Equal(t, "hidden", f.doc.BodyStyle("overflow"))
}

func TestCloseIsDebounced(t *testing.T) {
	f := newFixture(t)
	closed := 0
	c := f.modalA(func(o *Options) { o.OnClose = func() error { closed++; return nil } })
	f.open(t, c)

	require.NoError(t, c.Close())
	assert.Equal(t, StateClosing, c.State())

	f.sched.Advance(100 * time.Millisecond)
	assert.Equal(t, StateClosing, c.State())
	assert.Zero(t, closed)

	f.sched.Advance(50 * time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 1, closed)

	v, _ := f.doc.Attr(c.Content(), "data-state")
	assert.Equal(t, "closed", v)
}

func TestCloseDelayOverride(t *testing.T) {
	f := newFixture(t)
	c := f.modalA(func(o *Options) { o.CloseDelay = time.Second })
	f.open(t, c)

	require.NoError(t, c.Close())
	f.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, StateClosing, c.State())
	f.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
}

func TestOpenDuringClosingCancelsStaleClose(t *testing.T) {
	f := newFixture(t)
	closed := 0
	c := f.modalA(func(o *Options) { o.OnClose = func() error { closed++; return nil } })
	f.open(t, c)

	require.NoError(t, c.Close())
	f.sched.Advance(50 * time.Millisecond)
	require.NoError(t, c.Open())
	f.sched.Flush()

	f.sched.Advance(time.Second)
	assert.Equal(t, StateOpen, c.State())
	assert.Zero(t, closed)
	assert.Len(t, f.doc.Query("#dialog-a"), 1)
}

func TestForceCloseFromEveryState(t *testing.T) {
	setups := map[string]func(f *fixture, c *Controller){
		"closed":  func(*fixture, *Controller) {},
		"opening": func(_ *fixture, c *Controller) { _ = c.Open() },
		"open":    func(f *fixture, c *Controller) { _ = c.Open(); f.sched.Flush() },
		"closing": func(f *fixture, c *Controller) {
			_ = c.Open()
			f.sched.Flush()
			_ = c.Close()
		},
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			closed := 0
			c := f.modalA(func(o *Options) { o.OnClose = func() error { closed++; return nil } })
			setup(f, c)
			wasClosed := c.State() == StateClosed

			c.ForceClose()
			assert.Equal(t, StateClosed, c.State())

			// nothing stale may fire later
			f.sched.Advance(time.Second)
			assert.Equal(t, StateClosed, c.State())
			if wasClosed {
				assert.Zero(t, closed)
			} else {
				assert.Equal(t, 1, closed)
			}
		})
	}
}

func TestForceCloseSweepsImmediately(t *testing.T) {
	f := newFixture(t)
	c := f.modalA()
	f.open(t, c)

	c.ForceClose()

	assert.False(t, f.doc.HasBodyClass("modal-open"))
	assert.Equal(t, "", f.doc.BodyStyle("overflow"))
	assert.Empty(t, f.doc.Query("#portal-a"))
}

func TestOnOpenFailureForcesClose(t *testing.T) {
	tests := []struct {
		name   string
		onOpen func() error
	}{
		{"error", func() error { return errors.New("boom") }},
		{"panic", func() error { panic("boom") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c := f.modalA(func(o *Options) { o.OnOpen = tt.onOpen })

			require.NoError(t, c.Open())
			assert.NotPanics(t, func() { f.sched.Flush() })

			assert.Equal(t, StateClosed, c.State())
			require.Len(t, f.fails, 1)
			assert.Equal(t, "on_open", f.fails[0].Hook)
			assert.Equal(t, "a", f.fails[0].Name)
		})
	}
}

func TestOnCloseFailureLeavesModalClosed(t *testing.T) {
	f := newFixture(t)
	calls := 0
	c := f.modalA(func(o *Options) {
		o.OnClose = func() error { calls++; return errors.New("boom") }
	})
	f.open(t, c)

	require.NoError(t, c.Close())
	f.sched.Advance(DefaultCloseDelay)

	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 1, calls)
	assert.Len(t, f.fails, 1)
}

func TestStackedModalsStayOpen(t *testing.T) {
	f := newFixture(t)
	a := f.modalA()
	b := f.reg.New(Options{Name: "b", Content: f.node("#dialog-b")})

	f.open(t, a)
	assert.Len(t, f.doc.Query("#portal-b"), 1)
	f.open(t, b)

	assert.Equal(t, StateOpen, a.State())
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 2, f.reg.OpenCount())

	require.NoError(t, b.Close())
	f.sched.Advance(DefaultCloseDelay)

	// the sweep after b closed must not touch a
	assert.Equal(t, StateOpen, a.State())
	assert.Len(t, f.doc.Query("#dialog-a"), 1)
	assert.Len(t, f.doc.Query("#overlay-a"), 1)
	assert.True(t, f.doc.HasBodyClass("modal-open"))
	assert.Equal(t, 1, f.reg.ActiveCount())
}

func TestTransitionsAreObserved(t *testing.T) {
	f := newFixture(t)
	c := f.modalA()
	f.open(t, c)
	require.NoError(t, c.Close())
	f.sched.Advance(DefaultCloseDelay)

	var got []State
	for _, tr := range f.trans {
		got = append(got, tr.To)
	}
	assert.Equal(t, []State{StateOpening, StateOpen, StateClosing, StateClosed}, got)
	assert.Equal(t, c.ID(), f.trans[0].ID)
}

func TestDestroy(t *testing.T) {
	f := newFixture(t)
	c := f.modalA()
	f.open(t, c)

	c.Destroy()

	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.Open(), ErrDestroyed)
	assert.ErrorIs(t, c.Close(), ErrDestroyed)
	_, ok := f.reg.Get(c.ID())
	assert.False(t, ok)
	assert.Empty(t, f.reg.List())
}

func TestRegistryLookupAndForceCloseAll(t *testing.T) {
	f := newFixture(t)
	a := f.modalA()
	b := f.reg.New(Options{Name: "b", Content: f.node("#dialog-b")})
	f.open(t, a)
	require.NoError(t, b.Open())

	got, ok := f.reg.Lookup("b")
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 2, f.reg.ActiveCount())

	f.reg.ForceCloseAll()
	assert.Zero(t, f.reg.ActiveCount())
	assert.Equal(t, []*Controller{a, b}, f.reg.List())
}

func TestUnnamedControllerUsesID(t *testing.T) {
	f := newFixture(t)
	c := f.reg.New(Options{})
	assert.Equal(t, c.ID().String(), c.Name())
}
