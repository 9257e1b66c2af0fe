package watchdog

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Age bucket boundaries for pending operations.
const (
	FastLimit   = time.Second
	MediumLimit = 5 * time.Second
	SlowLimit   = 15 * time.Second
)

// Stats is a read-only snapshot of the registry.
type Stats struct {
	Pending int `json:"pending"`
	// Pending operations bucketed by age.
	Fast   int `json:"fast"`
	Medium int `json:"medium"`
	Slow   int `json:"slow"`
	Stale  int `json:"stale"`

	Tracked   uint64 `json:"tracked"`
	Completed uint64 `json:"completed"`
	Reaped    uint64 `json:"reaped"`
	Aborted   uint64 `json:"aborted"`
	// Processed counts operations that left the registry by any path.
	Processed uint64 `json:"processed"`

	MeanDuration time.Duration `json:"mean_duration"`
	P95Duration  time.Duration `json:"p95_duration"`
	OldestAge    time.Duration `json:"oldest_age"`
}

// Stats returns the current snapshot. It has no side effects.
func (w *Watchdog) Stats() Stats {
	now := w.sched.Now()

	w.mu.Lock()
	s := Stats{
		Pending:   len(w.ops),
		Tracked:   w.tracked,
		Completed: w.completed,
		Reaped:    w.reaped,
		Aborted:   w.aborted,
	}
	for _, op := range w.ops {
		age := now.Sub(op.StartedAt)
		switch {
		case age < FastLimit:
			s.Fast++
		case age < MediumLimit:
			s.Medium++
		case age < SlowLimit:
			s.Slow++
		default:
			s.Stale++
		}
		if age > s.OldestAge {
			s.OldestAge = age
		}
	}
	samples := append([]float64(nil), w.durations...)
	w.mu.Unlock()

	s.Processed = s.Completed + s.Reaped + s.Aborted
	if len(samples) > 0 {
		sort.Float64s(samples)
		s.MeanDuration = seconds(stat.Mean(samples, nil))
		s.P95Duration = seconds(stat.Quantile(0.95, stat.Empirical, samples, nil))
	}
	return s
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
