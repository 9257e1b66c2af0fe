package guard

import (
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/GriffinCanCode/freezeguard/internal/guard/modal"
	"github.com/GriffinCanCode/freezeguard/internal/guard/renders"
	"github.com/GriffinCanCode/freezeguard/internal/guard/watchdog"
)

// ModalInfo describes one registered controller.
type ModalInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// RecoveryInfo describes the escalation state.
type RecoveryInfo struct {
	Attempts int    `json:"attempts"`
	Budget   int    `json:"budget"`
	Phase    string `json:"phase"`
}

// Snapshot is a read-only view of every subsystem.
type Snapshot struct {
	At           time.Time                `json:"at"`
	DOM          bool                     `json:"dom"`
	LastActivity time.Time                `json:"last_activity"`
	IdleFor      time.Duration            `json:"idle_for"`
	Modals       []ModalInfo              `json:"modals"`
	OpenModals   int                      `json:"open_modals"`
	Requests     watchdog.Stats           `json:"requests"`
	Renders      []renders.ComponentStats `json:"renders"`
	Recovery     RecoveryInfo             `json:"recovery"`
	Events       events.Stats             `json:"events"`
}

// Snapshot collects the current state of every subsystem.
func (g *Guard) Snapshot() Snapshot {
	s := Snapshot{
		At:           g.sched.Now(),
		DOM:          g.adapter.Available(),
		LastActivity: g.clock.LastInteraction(),
		IdleFor:      g.clock.TimeSinceLastActivity(),
		Requests:     g.watchdog.Stats(),
		Renders:      g.renders.Stats(),
		Recovery: RecoveryInfo{
			Attempts: g.fallback.Attempts(),
			Budget:   g.fallback.Budget(),
			Phase:    g.fallback.Phase().String(),
		},
		Events: g.bus.Stats(),
	}
	for _, c := range g.modals.List() {
		state := c.State()
		s.Modals = append(s.Modals, ModalInfo{ID: c.ID().String(), Name: c.Name(), State: state.String()})
		if state == modal.StateOpen {
			s.OpenModals++
		}
	}
	return s
}
