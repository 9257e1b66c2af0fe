package fallback

import (
	"testing"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard/sweeper"
	"github.com/GriffinCanCode/freezeguard/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	cleanups int
	aborts   int
	warnings []string
	reloads  int
}

func (r *recorder) Cleanup() sweeper.Result { r.cleanups++; return sweeper.Result{Removed: 1} }
func (r *recorder) AbortAll() int           { r.aborts++; return 2 }
func (r *recorder) ShowWarning(msg string)  { r.warnings = append(r.warnings, msg) }
func (r *recorder) Reload()                 { r.reloads++ }

func newOrchestrator(cfg Config) (*Orchestrator, *recorder, *scheduler.Manual) {
	rec := &recorder{}
	sched := scheduler.NewManual(time.Time{})
	return New(cfg, sched, rec, rec, rec, rec, nil), rec, sched
}

func kinds(recs []Recovery) []Kind {
	out := make([]Kind, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Kind)
	}
	return out
}

func TestRapidManualTriggersEscalateOnce(t *testing.T) {
	o, rec, sched := newOrchestrator(DefaultConfig())

	var got []Recovery
	for i := 0; i < 4; i++ {
		got = append(got, o.ForceFallback("manual"))
	}

	assert.Equal(t, []Kind{KindSoft, KindSoft, KindSoft, KindHard}, kinds(got))
	assert.Equal(t, 3, rec.cleanups)
	assert.Equal(t, 3, rec.aborts)
	require.Len(t, rec.warnings, 1)
	assert.Zero(t, rec.reloads)

	sched.Advance(DefaultReloadDelay)
	assert.Equal(t, 1, rec.reloads)
	assert.Zero(t, o.Attempts())
	assert.Equal(t, PhaseIdle, o.Phase())
}

func TestSoftRecoveryIsSilent(t *testing.T) {
	o, rec, _ := newOrchestrator(DefaultConfig())

	r := o.Signal("freeze")
	assert.Equal(t, KindSoft, r.Kind)
	assert.Equal(t, 1, r.Attempt)
	assert.Equal(t, 1, r.Swept.Removed)
	assert.Equal(t, 2, r.Aborted)
	assert.Empty(t, rec.warnings)
}

func TestEscalationBoundary(t *testing.T) {
	for _, budget := range []int{0, 1, 3, 5} {
		o, rec, sched := newOrchestrator(Config{MaxRecoveryAttempts: budget, EnableForceReload: true, EnableStateReset: true})

		soft := 0
		for {
			r := o.Signal("freeze")
			if r.Kind == KindHard {
				break
			}
			require.Equal(t, KindSoft, r.Kind)
			soft++
			sched.Advance(DefaultReentrancyWindow)
		}
		assert.Equal(t, budget, soft, "budget %d", budget)
		assert.Len(t, rec.warnings, 1)
	}
}

func TestActivityResetsCounter(t *testing.T) {
	o, rec, sched := newOrchestrator(DefaultConfig())

	o.ForceFallback("manual")
	o.ForceFallback("manual")
	require.Equal(t, 2, o.Attempts())

	o.RecordActivity(sched.Now())
	assert.Zero(t, o.Attempts())

	for i := 0; i < 3; i++ {
		assert.Equal(t, KindSoft, o.ForceFallback("manual").Kind)
	}
	assert.Empty(t, rec.warnings)
}

func TestActivityCancelsPendingReload(t *testing.T) {
	o, rec, sched := newOrchestrator(Config{MaxRecoveryAttempts: 0, EnableForceReload: true})
	var seen []Recovery
	o.OnRecovery(func(r Recovery) { seen = append(seen, r) })

	require.Equal(t, KindHard, o.ForceFallback("manual").Kind)
	sched.Advance(time.Second)
	o.RecordActivity(sched.Now())
	sched.Advance(time.Minute)

	assert.Zero(t, rec.reloads)
	assert.Equal(t, PhaseIdle, o.Phase())
	assert.Equal(t, []Kind{KindHard, KindCancelled}, kinds(seen))
}

func TestSignalsIgnoredWhileReloadPending(t *testing.T) {
	o, rec, sched := newOrchestrator(Config{MaxRecoveryAttempts: 0, EnableForceReload: true})

	o.ForceFallback("manual")
	assert.Equal(t, KindIgnored, o.ForceFallback("manual").Kind)
	assert.Equal(t, KindIgnored, o.Signal("freeze").Kind)

	sched.Advance(DefaultReloadDelay)
	assert.Equal(t, 1, rec.reloads)
	assert.Len(t, rec.warnings, 1)
}

func TestAutomaticSignalsCollapse(t *testing.T) {
	o, rec, sched := newOrchestrator(DefaultConfig())

	assert.Equal(t, KindSoft, o.Signal("orphaned-state").Kind)
	sched.Advance(time.Second)
	assert.Equal(t, KindCollapsed, o.Signal("orphaned-state").Kind)
	assert.Equal(t, KindCollapsed, o.Signal("freeze").Kind)
	assert.Equal(t, 1, rec.cleanups)
	assert.Equal(t, 1, o.Attempts())

	sched.Advance(DefaultReentrancyWindow)
	assert.Equal(t, KindSoft, o.Signal("freeze").Kind)
	assert.Equal(t, 2, o.Attempts())
}

func TestIdleTimeoutRaisesStall(t *testing.T) {
	o, rec, sched := newOrchestrator(Config{TimeoutDelay: time.Minute, MaxRecoveryAttempts: 3, EnableStateReset: true})
	var seen []Recovery
	o.OnRecovery(func(r Recovery) { seen = append(seen, r) })
	o.Start()

	sched.Advance(30 * time.Second)
	o.RecordActivity(sched.Now())
	sched.Advance(59 * time.Second)
	assert.Empty(t, seen)

	sched.Advance(time.Second)
	require.Len(t, seen, 1)
	assert.Equal(t, ReasonTimeout, seen[0].Reason)
	assert.Equal(t, KindSoft, seen[0].Kind)
	assert.Equal(t, 1, rec.cleanups)

	// the timer is only re-armed by activity
	sched.Advance(time.Hour)
	assert.Len(t, seen, 1)

	o.Stop()
	o.RecordActivity(sched.Now())
	sched.Advance(time.Hour)
	assert.Len(t, seen, 1)
}

func TestForceReloadDisabled(t *testing.T) {
	o, rec, sched := newOrchestrator(Config{MaxRecoveryAttempts: 1, EnableStateReset: true})

	o.ForceFallback("manual")
	r := o.ForceFallback("manual")
	assert.Equal(t, KindHard, r.Kind)
	assert.True(t, r.ReloadAt.IsZero())

	sched.Advance(time.Minute)
	assert.Zero(t, rec.reloads)
	assert.Len(t, rec.warnings, 1)
	assert.Zero(t, o.Attempts())
}

func TestStateResetDisabledSkipsCleanup(t *testing.T) {
	o, rec, _ := newOrchestrator(Config{MaxRecoveryAttempts: 3})

	r := o.Signal("freeze")
	assert.Equal(t, KindSoft, r.Kind)
	assert.Zero(t, rec.cleanups)
	assert.Equal(t, 1, rec.aborts)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "soft_recovering", PhaseSoftRecovering.String())
	assert.Equal(t, "hard_recovering", PhaseHardRecovering.String())
	assert.Equal(t, "unknown", Phase(9).String())
}

func TestZeroConfigUsesDefaultDelays(t *testing.T) {
	o, rec, sched := newOrchestrator(Config{MaxRecoveryAttempts: 1, EnableForceReload: true})

	assert.Equal(t, KindSoft, o.Signal("freeze").Kind)
	sched.Advance(time.Second)
	assert.Equal(t, KindCollapsed, o.Signal("freeze").Kind)

	assert.Equal(t, KindHard, o.ForceFallback("manual").Kind)
	sched.Advance(DefaultReloadDelay - time.Millisecond)
	assert.Zero(t, rec.reloads)
	sched.Advance(time.Millisecond)
	assert.Equal(t, 1, rec.reloads)
}

func TestExplicitImmediateTunables(t *testing.T) {
	o, rec, sched := newOrchestrator(Config{
		MaxRecoveryAttempts: 2,
		ReentrancyWindow:    NoReentrancyWindow,
		ReloadDelay:         Immediate,
		EnableForceReload:   true,
	})

	assert.Equal(t, KindSoft, o.Signal("freeze").Kind)
	assert.Equal(t, KindSoft, o.Signal("freeze").Kind)
	assert.Equal(t, KindHard, o.Signal("freeze").Kind)

	sched.Advance(Immediate)
	assert.Equal(t, 1, rec.reloads)
}
