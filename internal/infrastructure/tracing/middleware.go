package tracing

import (
	"github.com/gin-gonic/gin"
)

// HTTPMiddleware accepts an incoming X-Trace-ID or assigns a new one,
// echoes it on the response and stores it in the request context.
func HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := TraceID(c.GetHeader(HeaderTraceID))
		if traceID == "" {
			traceID = NewTraceID()
		}

		c.Request = c.Request.WithContext(WithTraceID(c.Request.Context(), traceID))
		c.Set(string(traceIDKey), string(traceID))
		c.Header(HeaderTraceID, string(traceID))
		c.Next()
	}
}
