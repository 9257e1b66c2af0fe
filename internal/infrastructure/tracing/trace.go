package tracing

import (
	"context"
	"net/http"

	"github.com/GriffinCanCode/freezeguard/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID     = "X-Trace-ID"
	HeaderOperationID = "X-Guard-Operation"
)

// TraceID represents a unique trace identifier
type TraceID string

type contextKey string

const traceIDKey contextKey = "trace_id"

// NewTraceID generates a trace identifier.
func NewTraceID() TraceID {
	return TraceID(id.Default().GenerateWithPrefix(id.TracePrefix))
}

// WithTraceID returns a context carrying traceID.
func WithTraceID(ctx context.Context, traceID TraceID) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// Inject stamps an outgoing request with the trace ID from its context and
// the watchdog operation tracking it, so backend logs can be matched to
// reaped or aborted operations.
func Inject(req *http.Request, operationID string) {
	if traceID := GetTraceID(req.Context()); traceID != "" {
		req.Header.Set(HeaderTraceID, string(traceID))
	}
	if operationID != "" {
		req.Header.Set(HeaderOperationID, operationID)
	}
}
