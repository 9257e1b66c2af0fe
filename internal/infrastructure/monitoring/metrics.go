package monitoring

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Guard metrics
	Events               *prometheus.CounterVec
	Recoveries           *prometheus.CounterVec
	SweepRemoved         prometheus.Counter
	OperationsAborted    *prometheus.CounterVec
	ExcessiveRenders     *prometheus.CounterVec
	ModalTransitions     *prometheus.CounterVec
	InconsistentStates   *prometheus.CounterVec
	CallbackFailures     *prometheus.CounterVec
	PendingOperations    prometheus.Gauge
	OpenModals           prometheus.Gauge
	RecoveryAttempts     prometheus.Gauge
	SecondsSinceActivity prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	SoftRecoveries  int64   `json:"soft_recoveries"`
	HardRecoveries  int64   `json:"hard_recoveries"`
	SweptNodes      int64   `json:"swept_nodes"`
	AbortedRequests int64   `json:"aborted_requests"`
	TotalDuration   float64 `json:"-"` // sum of all request durations
	RequestCount    int64   `json:"-"` // count for averaging
}

// NewMetrics creates a new metrics collector registered on reg. A nil reg
// selects the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freezeguard_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freezeguard_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freezeguard_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Guard metrics
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_events_total",
				Help: "Total number of guard events by kind",
			},
			[]string{"kind"},
		),
		Recoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_recoveries_total",
				Help: "Total number of recovery decisions",
			},
			[]string{"kind", "reason"},
		),
		SweepRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "freezeguard_sweep_removed_nodes_total",
				Help: "Total number of orphaned nodes removed by sweeps",
			},
		),
		OperationsAborted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_operations_aborted_total",
				Help: "Total number of tracked operations cancelled by the watchdog",
			},
			[]string{"cause"},
		),
		ExcessiveRenders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_excessive_renders_total",
				Help: "Total number of excessive render signals",
			},
			[]string{"component"},
		),
		ModalTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_modal_transitions_total",
				Help: "Total number of modal state transitions",
			},
			[]string{"to"},
		),
		InconsistentStates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_inconsistent_states_total",
				Help: "Total number of orphaned state detections",
			},
			[]string{"persistent"},
		),
		CallbackFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_callback_failures_total",
				Help: "Total number of failed modal callbacks",
			},
			[]string{"hook"},
		),
		PendingOperations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freezeguard_pending_operations",
				Help: "Number of tracked operations in flight",
			},
		),
		OpenModals: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freezeguard_open_modals",
				Help: "Number of modal controllers in the open state",
			},
		),
		RecoveryAttempts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freezeguard_recovery_attempts",
				Help: "Current value of the recovery attempt counter",
			},
		),
		SecondsSinceActivity: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freezeguard_seconds_since_activity",
				Help: "Seconds since the last user interaction",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "freezeguard_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freezeguard_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "freezeguard_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Observe subscribes the metrics to every guard event on bus and returns
// the unsubscribe function.
func (m *Metrics) Observe(bus *events.Bus) func() {
	return bus.Subscribe(m.RecordEvent)
}

// RecordEvent updates counters for one guard event
func (m *Metrics) RecordEvent(ev events.Event) {
	m.Events.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case events.KindSoftRecovery, events.KindHardRecovery, events.KindRecoveryCollapsed, events.KindReloadCancelled:
		m.Recoveries.WithLabelValues(string(ev.Kind), ev.Reason).Inc()
		m.mu.Lock()
		if ev.Kind == events.KindSoftRecovery {
			m.snapshot.SoftRecoveries++
		} else if ev.Kind == events.KindHardRecovery {
			m.snapshot.HardRecoveries++
		}
		m.mu.Unlock()
		if attempt, ok := ev.Data["attempt"].(int); ok {
			m.RecoveryAttempts.Set(float64(attempt))
		}
	case events.KindSweep:
		if removed, ok := ev.Data["removed"].(int); ok && removed > 0 {
			m.SweepRemoved.Add(float64(removed))
			m.mu.Lock()
			m.snapshot.SweptNodes += int64(removed)
			m.mu.Unlock()
		}
	case events.KindOperationAborted:
		m.OperationsAborted.WithLabelValues(ev.Reason).Inc()
		m.mu.Lock()
		m.snapshot.AbortedRequests++
		m.mu.Unlock()
	case events.KindExcessiveRenders:
		component, _ := ev.Data["component"].(string)
		m.ExcessiveRenders.WithLabelValues(component).Inc()
	case events.KindModalTransition:
		to, _ := ev.Data["to"].(string)
		m.ModalTransitions.WithLabelValues(to).Inc()
	case events.KindInconsistentState:
		persistent, _ := ev.Data["persistent"].(bool)
		label := "false"
		if persistent {
			label = "true"
		}
		m.InconsistentStates.WithLabelValues(label).Inc()
	case events.KindCallbackFailed:
		hook, _ := ev.Data["hook"].(string)
		m.CallbackFailures.WithLabelValues(hook).Inc()
	case events.KindActivity:
		m.RecoveryAttempts.Set(0)
	}
}

// SetGuardGauges refreshes the gauges that are sampled rather than counted
func (m *Metrics) SetGuardGauges(pending, openModals, attempts int, idle time.Duration) {
	m.PendingOperations.Set(float64(pending))
	m.OpenModals.Set(float64(openModals))
	m.RecoveryAttempts.Set(float64(attempts))
	m.SecondsSinceActivity.Set(idle.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// Snapshot returns the current JSON-friendly counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// AverageRequestDuration returns the mean HTTP request duration
func (m *Metrics) AverageRequestDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot.RequestCount == 0 {
		return 0
	}
	return time.Duration(m.snapshot.TotalDuration / float64(m.snapshot.RequestCount) * float64(time.Second))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
