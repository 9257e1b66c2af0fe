// Package sweeper implements the shared DOM cleanup primitive.
//
// A sweep is synchronous, idempotent and safe to call speculatively from
// any number of call sites: it never removes a node that is marked open,
// lies inside an open node, or contains one.
package sweeper

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/freezeguard/internal/dom"
	"go.uber.org/zap"
)

// Markers describe which DOM state the sweeper treats as blocking.
type Markers struct {
	// Overlays match backdrop/overlay nodes that may be orphaned.
	Overlays []string
	// Open matches nodes belonging to a modal that is currently open.
	Open string
	// BlockingStyles are inline <body> properties cleared by a sweep.
	BlockingStyles []string
	// NoScrollClasses are <body> classes cleared by a sweep.
	NoScrollClasses []string
}

// DefaultMarkers returns markers for the common dialog libraries.
func DefaultMarkers() Markers {
	return Markers{
		Overlays: []string{
			"[data-radix-dialog-overlay]",
			"[data-radix-portal]",
			"[data-overlay]",
			".modal-backdrop",
			`[data-state="closed"][role="presentation"]`,
		},
		Open:            `[data-state="open"]`,
		BlockingStyles:  []string{"pointer-events", "overflow"},
		NoScrollClasses: []string{"modal-open", "overflow-hidden", "no-scroll"},
	}
}

// Result reports what one pass changed.
type Result struct {
	Removed        int  `json:"removed"`
	StylesReset    int  `json:"styles_reset"`
	ClassesRemoved int  `json:"classes_removed"`
	Refocused      bool `json:"refocused"`
	Repainted      bool `json:"repainted"`
	Failures       int  `json:"failures"`
}

// Mutated reports whether the pass changed the document.
func (r Result) Mutated() bool {
	return r.Removed > 0 || r.StylesReset > 0 || r.ClassesRemoved > 0 || r.Refocused
}

// Sweeper removes orphaned overlays and unblocks the body.
type Sweeper struct {
	adapter dom.Adapter
	markers Markers
	logger  *zap.Logger
	observe func(Result, bool)
}

// New creates a sweeper over adapter.
func New(adapter dom.Adapter, markers Markers, logger *zap.Logger) *Sweeper {
	if adapter == nil {
		adapter = dom.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{adapter: adapter, markers: markers, logger: logger}
}

// OnSweep registers fn to observe every pass; all reports whether the
// pass ignored open markers.
func (s *Sweeper) OnSweep(fn func(r Result, all bool)) {
	s.observe = fn
}

// Markers returns the markers in use.
func (s *Sweeper) Markers() Markers {
	return s.markers
}

// Sweep runs one cleanup pass that preserves everything marked open.
func (s *Sweeper) Sweep() Result {
	return s.run(false)
}

// SweepKeeping is Sweep that also preserves keep and whatever contains
// or lies inside it.
func (s *Sweeper) SweepKeeping(keep ...dom.Node) Result {
	return s.run(false, keep...)
}

// SweepAll runs one cleanup pass that ignores open markers. Callers use it
// only when no modal controller believes it is open.
func (s *Sweeper) SweepAll() Result {
	return s.run(true)
}

func (s *Sweeper) run(all bool, keep ...dom.Node) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Failures++
			s.logger.Error("sweep panicked", zap.Any("panic", r))
		}
	}()

	if !s.adapter.Available() {
		return res
	}

	active := s.adapter.ActiveElement()
	activeRemoved := false

	var openNodes []dom.Node
	if !all {
		openNodes = append(s.adapter.Query(s.markers.Open), keep...)
	}

	for _, marker := range s.markers.Overlays {
		for _, n := range s.adapter.Query(marker) {
			if !all && s.protected(n, openNodes) {
				continue
			}
			if active != nil && s.adapter.Contains(n, active) {
				activeRemoved = true
			}
			if err := s.try("remove "+dom.Describe(n), func() error { return s.adapter.Remove(n) }); err != nil {
				if !errors.Is(err, dom.ErrDetached) {
					res.Failures++
				}
				continue
			}
			res.Removed++
		}
	}

	// A legitimately open modal keeps its scroll lock.
	if all || len(s.adapter.Query(s.markers.Open)) == 0 {
		s.resetBody(&res)
	}

	if activeRemoved {
		if err := s.try("refocus body", s.adapter.FocusBody); err != nil {
			res.Failures++
		} else {
			res.Refocused = true
		}
	}

	if res.Mutated() {
		if err := s.try("repaint", s.adapter.Repaint); err == nil {
			res.Repainted = true
		}
		s.logger.Debug("sweep changed document",
			zap.Bool("all", all),
			zap.Int("removed", res.Removed),
			zap.Int("styles_reset", res.StylesReset),
			zap.Int("classes_removed", res.ClassesRemoved),
			zap.Bool("refocused", res.Refocused))
	}

	if s.observe != nil {
		s.observe(res, all)
	}
	return res
}

// protected reports whether n is, lies inside, or contains an open node.
func (s *Sweeper) protected(n dom.Node, openNodes []dom.Node) bool {
	for _, open := range openNodes {
		if s.adapter.Contains(open, n) || s.adapter.Contains(n, open) {
			return true
		}
	}
	return false
}

func (s *Sweeper) resetBody(res *Result) {
	for _, prop := range s.markers.BlockingStyles {
		if s.adapter.BodyStyle(prop) == "" {
			continue
		}
		if err := s.try("reset body "+prop, func() error { return s.adapter.SetBodyStyle(prop, "") }); err != nil {
			res.Failures++
			continue
		}
		res.StylesReset++
	}
	for _, class := range s.markers.NoScrollClasses {
		if !s.adapter.HasBodyClass(class) {
			continue
		}
		if err := s.try("remove body class "+class, func() error { return s.adapter.RemoveBodyClass(class) }); err != nil {
			res.Failures++
			continue
		}
		res.ClassesRemoved++
	}
}

// try isolates one DOM operation so a failure cannot abort the pass.
func (s *Sweeper) try(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", op, r)
		}
		if err != nil && !errors.Is(err, dom.ErrDetached) {
			s.logger.Debug("sweep step failed", zap.String("op", op), zap.Error(err))
		}
	}()
	return fn()
}
