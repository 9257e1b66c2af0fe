// Package orphan polls the document for modal state that no controller
// owns: overlays left behind, a body still scroll-locked, or an "open"
// modal that takes up no space.
package orphan

import (
	"slices"
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"github.com/GriffinCanCode/freezeguard/internal/guard/modal"
	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the poll interval.
	DefaultInterval = 2500 * time.Millisecond
	// MaxSweeps bounds the sweeps spent on one incident.
	MaxSweeps = 2
)

// Modals is the controller registry view the detector needs.
type Modals interface {
	// ActiveCount counts controllers that are not Closed.
	ActiveCount() int
	Open() []*modal.Controller
}

// Sweeper is the cleanup primitive used on an incident.
type Sweeper interface {
	Sweep() sweeper.Result
	SweepAll() sweeper.Result
	Markers() sweeper.Markers
}

// Report describes one inconsistent detection.
type Report struct {
	Incident            id.IncidentID `json:"incident,omitempty"`
	OverlayWithoutModal bool          `json:"overlay_without_modal"`
	BlockedBody         bool          `json:"blocked_body"`
	ZeroAreaModals      []id.ModalID  `json:"zero_area_modals,omitempty"`
	// Sweeps spent on the incident so far.
	Sweeps int `json:"sweeps"`
	// Persistent is set once the incident survived every sweep.
	Persistent bool      `json:"persistent"`
	At         time.Time `json:"at"`
}

// Inconsistent reports whether any check failed.
func (r Report) Inconsistent() bool {
	return r.OverlayWithoutModal || r.BlockedBody || len(r.ZeroAreaModals) > 0
}

type incident struct {
	id       id.IncidentID
	sweeps   int
	cooldown bool
	reported bool
}

// Detector runs the periodic consistency checks.
type Detector struct {
	mu       sync.Mutex
	adapter  dom.Adapter
	modals   Modals
	sweeper  Sweeper
	sched    scheduler.Scheduler
	interval time.Duration
	logger   *zap.Logger

	current  *incident
	task     scheduler.Task
	handlers []func(Report)
}

// NewDetector creates a detector. It never fails, even without a document.
func NewDetector(adapter dom.Adapter, modals Modals, sw Sweeper, sched scheduler.Scheduler, interval time.Duration, logger *zap.Logger) *Detector {
	if adapter == nil {
		adapter = dom.Unavailable{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		adapter:  adapter,
		modals:   modals,
		sweeper:  sw,
		sched:    sched,
		interval: interval,
		logger:   logger,
	}
}

// OnInconsistentState registers fn to receive every report.
func (d *Detector) OnInconsistentState(fn func(Report)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, fn)
}

// Start begins polling. It is a no-op when already started or when no
// document is available.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.task != nil || !d.adapter.Available() {
		return
	}
	d.task = d.sched.Every(d.interval, func() { d.Tick() })
	d.logger.Debug("orphan detector started", zap.Duration("interval", d.interval))
}

// Stop ends polling and forgets the current incident.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.task != nil {
		d.task.Cancel()
		d.task = nil
	}
	d.current = nil
}

// Tick runs one detection cycle. It returns the report handed to
// subscribers, if any.
func (d *Detector) Tick() (Report, bool) {
	if !d.adapter.Available() {
		return Report{}, false
	}

	rep := d.check()

	d.mu.Lock()
	if !rep.Inconsistent() {
		if d.current != nil {
			d.logger.Info("orphaned state resolved",
				zap.String("incident", d.current.id.String()),
				zap.Int("sweeps", d.current.sweeps))
			d.current = nil
		}
		d.mu.Unlock()
		return rep, false
	}

	if d.current == nil {
		d.current = &incident{id: id.NewIncidentID()}
	}
	inc := d.current
	rep.Incident = inc.id

	switch {
	case inc.cooldown:
		inc.cooldown = false
		d.mu.Unlock()
		return rep, false
	case inc.sweeps < MaxSweeps:
		inc.sweeps++
		inc.cooldown = true
		rep.Sweeps = inc.sweeps
		d.mu.Unlock()
		d.sweep()
	case !inc.reported:
		inc.reported = true
		rep.Sweeps = inc.sweeps
		rep.Persistent = true
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		return rep, false
	}

	d.logger.Warn("inconsistent modal state detected",
		zap.String("incident", rep.Incident.String()),
		zap.Bool("overlay_without_modal", rep.OverlayWithoutModal),
		zap.Bool("blocked_body", rep.BlockedBody),
		zap.Stringers("zero_area_modals", rep.ZeroAreaModals),
		zap.Int("sweeps", rep.Sweeps),
		zap.Bool("persistent", rep.Persistent))

	d.notify(rep)
	return rep, true
}

// Inspect runs the checks once without sweeping or touching the current
// incident. The bool reports whether the document is inconsistent.
func (d *Detector) Inspect() (Report, bool) {
	if !d.adapter.Available() {
		return Report{}, false
	}
	rep := d.check()
	return rep, rep.Inconsistent()
}

// check evaluates the three independent consistency checks.
func (d *Detector) check() Report {
	rep := Report{At: d.sched.Now()}
	markers := d.sweeper.Markers()
	active := d.modals.ActiveCount()

	if active == 0 {
		rep.OverlayWithoutModal = d.visibleOverlay(markers.Overlays)
		rep.BlockedBody = d.bodyBlocked(markers)
	}

	for _, c := range d.modals.Open() {
		content := c.Content()
		if content == nil {
			continue
		}
		if d.adapter.Rect(content).Area() == 0 {
			rep.ZeroAreaModals = append(rep.ZeroAreaModals, c.ID())
		}
	}
	return rep
}

func (d *Detector) visibleOverlay(markers []string) bool {
	for _, marker := range markers {
		for _, n := range d.adapter.Query(marker) {
			if d.adapter.Visible(n) {
				return true
			}
		}
	}
	return false
}

func (d *Detector) bodyBlocked(markers sweeper.Markers) bool {
	for _, prop := range markers.BlockingStyles {
		if blocking(prop, d.adapter.BodyStyle(prop)) {
			return true
		}
	}
	for _, class := range markers.NoScrollClasses {
		if d.adapter.HasBodyClass(class) {
			return true
		}
	}
	return false
}

// blocking reports whether an inline body style value stops interaction.
func blocking(prop, value string) bool {
	switch value {
	case "", "auto", "visible", "initial", "unset":
		return false
	}
	if prop == "pointer-events" {
		return value == "none"
	}
	return true
}

// sweep picks SweepAll when no controller is active, since every open
// marker left in the document is then stale.
func (d *Detector) sweep() {
	if d.modals.ActiveCount() == 0 {
		d.sweeper.SweepAll()
		return
	}
	d.sweeper.Sweep()
}

func (d *Detector) notify(rep Report) {
	d.mu.Lock()
	handlers := slices.Clone(d.handlers)
	d.mu.Unlock()

	for _, fn := range handlers {
		fn(rep)
	}
}
