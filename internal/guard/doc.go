/*
Package guard wires the freeze detection and recovery subsystems for one
application root.

A Guard owns one instance of each subsystem and replaces what would
otherwise be process-wide singletons:

  - activity.Clock records genuine user interaction
  - sweeper.Sweeper is the shared DOM cleanup primitive
  - modal.Registry creates per-modal lifecycle controllers
  - orphan.Detector polls for overlays and scroll locks nobody owns
  - watchdog.Watchdog cancels hung network operations
  - renders.Monitor flags runaway re-renders
  - fallback.Orchestrator escalates stalls from soft recovery to reload

Every signal crosses an events.Bus, so metrics, debug logging and the
companion server observe the guard without being known to it.

# Lifecycle

	g, err := guard.New(guard.Options{Config: cfg.Guard, Adapter: doc, Logger: log})
	if err != nil {
		return err
	}
	if err := g.Start(); err != nil {
		return err
	}
	defer g.Close()

Close runs every teardown exactly once: listeners are unbound, timers are
cancelled, pending requests are aborted and open modals are force-closed.
*/
package guard
