package modal

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
	"go.uber.org/zap"
)

// DefaultCloseDelay leaves room for a typical exit animation.
const DefaultCloseDelay = 150 * time.Millisecond

// Sweeper is the cleanup primitive run on every transition into and out
// of Closed.
type Sweeper interface {
	Sweep() sweeper.Result
	SweepKeeping(keep ...dom.Node) sweeper.Result
}

// Transition describes one state change of one controller.
type Transition struct {
	ID   id.ModalID
	Name string
	From State
	To   State
	At   time.Time
}

// Failure describes a host callback that returned an error or panicked.
type Failure struct {
	ID   id.ModalID
	Name string
	Hook string
	Err  error
}

// Registry creates and tracks the modal controllers of one application
// root. Any number of controllers may be open at the same time; opening
// one never closes another.
type Registry struct {
	mu          sync.RWMutex
	controllers map[id.ModalID]*Controller

	adapter    dom.Adapter
	sweeper    Sweeper
	sched      scheduler.Scheduler
	closeDelay time.Duration
	logger     *zap.Logger

	obsMu       sync.RWMutex
	transitions []func(Transition)
	failures    []func(Failure)
}

// NewRegistry creates a registry. closeDelay <= 0 selects DefaultCloseDelay.
func NewRegistry(adapter dom.Adapter, sw Sweeper, sched scheduler.Scheduler, closeDelay time.Duration, logger *zap.Logger) *Registry {
	if adapter == nil {
		adapter = dom.Unavailable{}
	}
	if closeDelay <= 0 {
		closeDelay = DefaultCloseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		controllers: make(map[id.ModalID]*Controller),
		adapter:     adapter,
		sweeper:     sw,
		sched:       sched,
		closeDelay:  closeDelay,
		logger:      logger,
	}
}

// New creates a Closed controller and registers it.
func (r *Registry) New(opts Options) *Controller {
	c := &Controller{
		id:       id.NewModalID(),
		opts:     opts,
		state:    StateClosed,
		registry: r,
	}
	if c.opts.Name == "" {
		c.opts.Name = c.id.String()
	}
	c.logger = r.logger.With(zap.String("modal", c.opts.Name))

	r.mu.Lock()
	r.controllers[c.id] = c
	r.mu.Unlock()
	return c
}

// Get returns a registered controller by id.
func (r *Registry) Get(modalID id.ModalID) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[modalID]
	return c, ok
}

// Lookup returns the first registered controller with the given name.
func (r *Registry) Lookup(name string) (*Controller, bool) {
	for _, c := range r.List() {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// List returns every registered controller ordered by id (creation order).
func (r *Registry) List() []*Controller {
	r.mu.RLock()
	list := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	return list
}

// Open returns the controllers currently in StateOpen.
func (r *Registry) Open() []*Controller {
	var open []*Controller
	for _, c := range r.List() {
		if c.State() == StateOpen {
			open = append(open, c)
		}
	}
	return open
}

// OpenCount returns the number of controllers in StateOpen.
func (r *Registry) OpenCount() int {
	return len(r.Open())
}

// ActiveCount returns the number of controllers that are not Closed.
// Opening and closing modals legitimately show an overlay.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, c := range r.List() {
		if c.State() != StateClosed {
			n++
		}
	}
	return n
}

// ForceCloseAll force-closes every registered controller and returns how
// many were not already closed.
func (r *Registry) ForceCloseAll() int {
	n := 0
	for _, c := range r.List() {
		if c.State() != StateClosed {
			n++
		}
		c.ForceClose()
	}
	return n
}

// DestroyAll destroys every registered controller.
func (r *Registry) DestroyAll() {
	for _, c := range r.List() {
		c.Destroy()
	}
}

// OnTransition registers fn to observe every state change.
func (r *Registry) OnTransition(fn func(Transition)) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.transitions = append(r.transitions, fn)
}

// OnFailure registers fn to observe callback failures.
func (r *Registry) OnFailure(fn func(Failure)) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.failures = append(r.failures, fn)
}

func (r *Registry) unregister(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, c.id)
}

func (r *Registry) sweep() {
	if r.sweeper != nil {
		r.sweeper.Sweep()
	}
}

// sweepOpening clears stale overlays before a modal opens. Nodes owned by
// any registered controller survive so a sibling can still open.
func (r *Registry) sweepOpening() {
	if r.sweeper == nil {
		return
	}
	r.mu.RLock()
	keep := make([]dom.Node, 0, 2*len(r.controllers))
	for _, c := range r.controllers {
		for _, n := range []dom.Node{c.opts.Content, c.opts.Overlay} {
			if n != nil {
				keep = append(keep, n)
			}
		}
	}
	r.mu.RUnlock()
	r.sweeper.SweepKeeping(keep...)
}

func (r *Registry) notify(c *Controller, from, to State) {
	c.logger.Debug("modal transition", zap.Stringer("from", from), zap.Stringer("to", to))

	r.obsMu.RLock()
	obs := slices.Clone(r.transitions)
	r.obsMu.RUnlock()

	t := Transition{ID: c.id, Name: c.opts.Name, From: from, To: to, At: r.sched.Now()}
	for _, fn := range obs {
		fn(t)
	}
}

func (r *Registry) reportFailure(c *Controller, hook string, err error) {
	r.obsMu.RLock()
	obs := slices.Clone(r.failures)
	r.obsMu.RUnlock()

	f := Failure{ID: c.id, Name: c.opts.Name, Hook: hook, Err: err}
	for _, fn := range obs {
		fn(f)
	}
}
