package modal

import (
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
	"go.uber.org/zap"
)

// Options configure one modal controller.
type Options struct {
	Name string
	// Content and Overlay are the modal's own nodes. They are marked
	// data-state="open" while the modal is opening or open.
	Content dom.Node
	Overlay dom.Node
	// CloseDelay overrides the registry's debounce for the exit animation.
	CloseDelay time.Duration
	OnOpen     func() error
	OnClose    func() error
}

// Controller drives one modal through Closed → Opening → Open → Closing → Closed.
type Controller struct {
	mu        sync.Mutex
	id        id.ModalID
	opts      Options
	state     State
	pending   scheduler.Task
	gen       uint64
	destroyed bool

	registry *Registry
	logger   *zap.Logger
}

// ID returns the controller's id.
func (c *Controller) ID() id.ModalID { return c.id }

// Name returns the controller's name.
func (c *Controller) Name() string { return c.opts.Name }

// Content returns the modal content node.
func (c *Controller) Content() dom.Node { return c.opts.Content }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open starts opening the modal. It is valid from Closed, and from Closing,
// where it cancels the pending debounced close. Leaving Closed sweeps stale
// overlays once the modal's own nodes are marked open. The modal reaches
// Open on the next scheduler tick and then runs OnOpen.
func (c *Controller) Open() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	from := c.state
	if from != StateClosed && from != StateClosing {
		c.mu.Unlock()
		return fmt.Errorf("%w: open from %s", ErrInvalidTransition, from)
	}
	c.cancelPendingLocked()
	c.setStateLocked(StateOpening)
	gen := c.gen
	c.pending = c.registry.sched.Defer(func() { c.finishOpen(gen) })
	c.mu.Unlock()

	c.registry.notify(c, from, StateOpening)
	if from == StateClosed {
		c.registry.sweepOpening()
	}
	return nil
}

func (c *Controller) finishOpen(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateOpening {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	c.registry.notify(c, StateOpening, StateOpen)

	if err := c.call("on_open", c.opts.OnOpen); err != nil {
		c.forceClose(true)
	}
}

// Close starts the debounced close: Closing immediately, Closed after the
// close delay, at which point the document is swept and OnClose runs.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	if c.state != StateOpen {
		from := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: close from %s", ErrInvalidTransition, from)
	}
	c.cancelPendingLocked()
	c.setStateLocked(StateClosing)
	gen := c.gen
	delay := c.opts.CloseDelay
	if delay <= 0 {
		delay = c.registry.closeDelay
	}
	c.pending = c.registry.sched.After(delay, func() { c.finishClose(gen) })
	c.mu.Unlock()

	c.registry.notify(c, StateOpen, StateClosing)
	return nil
}

func (c *Controller) finishClose(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateClosing {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	c.registry.notify(c, StateClosing, StateClosed)
	c.registry.sweep()

	if err := c.call("on_close", c.opts.OnClose); err != nil {
		c.forceClose(false)
	}
}

// ForceClose cancels any pending transition, sets Closed synchronously,
// sweeps immediately and then runs OnClose if the modal was not already
// closed. It is valid from every state.
func (c *Controller) ForceClose() {
	c.forceClose(true)
}

func (c *Controller) forceClose(runOnClose bool) {
	c.mu.Lock()
	from := c.state
	c.cancelPendingLocked()
	c.gen++
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	if from != StateClosed {
		c.registry.notify(c, from, StateClosed)
	}
	c.registry.sweep()

	if runOnClose && from != StateClosed {
		// Failure here is only logged; the controller is already Closed.
		_ = c.call("on_close", c.opts.OnClose)
	}
}

// Destroy force-closes the modal and removes it from the registry. Later
// calls to Open and Close return ErrDestroyed.
func (c *Controller) Destroy() {
	c.ForceClose()

	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()

	c.registry.unregister(c)
}

func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
}

// setStateLocked moves to state and mirrors it onto the modal's nodes.
func (c *Controller) setStateLocked(state State) {
	if c.state != state {
		c.gen++
	}
	c.state = state
	for _, n := range []dom.Node{c.opts.Content, c.opts.Overlay} {
		if n == nil {
			continue
		}
		if err := c.registry.adapter.SetAttr(n, "data-state", state.marker()); err != nil {
			c.logger.Debug("could not mark modal node", zap.String("node", dom.Describe(n)), zap.Error(err))
		}
	}
}

// call runs a host callback, converting panics into errors. Failures are
// logged and reported to the registry, never re-thrown.
func (c *Controller) call(hook string, fn func() error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", hook, r)
		}
		if err != nil {
			c.logger.Warn("modal callback failed",
				zap.String("modal", c.opts.Name),
				zap.String("hook", hook),
				zap.Error(err))
			c.registry.reportFailure(c, hook, err)
		}
	}()
	return fn()
}
