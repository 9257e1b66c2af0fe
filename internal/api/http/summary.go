package http

import (
	"time"
)

// Summary provides high-level server metrics
type Summary struct {
	TotalRequests    int64   `json:"total_requests"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
	SoftRecoveries   int64   `json:"soft_recoveries"`
	HardRecoveries   int64   `json:"hard_recoveries"`
	SweptNodes       int64   `json:"swept_nodes"`
	AbortedRequests  int64   `json:"aborted_requests"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

func (h *Handlers) summary() Summary {
	snap := h.metrics.Snapshot()

	var errorRate float64
	if snap.TotalRequests > 0 {
		errorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}
	return Summary{
		TotalRequests:    snap.TotalRequests,
		AverageLatencyMs: float64(h.metrics.AverageRequestDuration()) / float64(time.Millisecond),
		ErrorRate:        errorRate,
		SoftRecoveries:   snap.SoftRecoveries,
		HardRecoveries:   snap.HardRecoveries,
		SweptNodes:       snap.SweptNodes,
		AbortedRequests:  snap.AbortedRequests,
		UptimeSeconds:    time.Since(h.started).Seconds(),
	}
}
