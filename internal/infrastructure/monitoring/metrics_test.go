package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GriffinCanCode/freezeguard/internal/guard/events"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCountsGuardEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	bus := events.NewBus(nil)
	unsubscribe := m.Observe(bus)
	defer unsubscribe()

	bus.Publish(events.Event{Kind: events.KindSoftRecovery, Reason: "manual", Data: map[string]interface{}{"attempt": 2}})
	bus.Publish(events.Event{Kind: events.KindHardRecovery, Reason: "manual", Data: map[string]interface{}{"attempt": 3}})
	bus.Publish(events.Event{Kind: events.KindSweep, Data: map[string]interface{}{"removed": 4}})
	bus.Publish(events.Event{Kind: events.KindOperationAborted, Reason: "operation aborted"})
	bus.Publish(events.Event{Kind: events.KindExcessiveRenders, Data: map[string]interface{}{"component": "Builder"}})
	bus.Publish(events.Event{Kind: events.KindInconsistentState, Data: map[string]interface{}{"persistent": true}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recoveries.WithLabelValues("soft_recovery", "manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recoveries.WithLabelValues("hard_recovery", "manual")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecoveryAttempts))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SweepRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsAborted.WithLabelValues("operation aborted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExcessiveRenders.WithLabelValues("Builder")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InconsistentStates.WithLabelValues("true")))

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.SoftRecoveries)
	assert.Equal(t, int64(1), snap.HardRecoveries)
	assert.Equal(t, int64(4), snap.SweptNodes)
	assert.Equal(t, int64(1), snap.AbortedRequests)

	bus.Publish(events.Event{Kind: events.KindActivity})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RecoveryAttempts))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	require.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, int64(1), m.Snapshot().TotalErrors)
}
