package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/tastelab-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"

	maxInboundIDLen = 128
)

// AttachTraceContext stamps every request with a request id (the caller's
// X-Request-Id when usable) and a trace id (the active span's when tracing is
// on) and echoes both as response headers.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := ctxutil.Trace{
			RequestID: inboundID(c.GetHeader(headerRequestID)),
			TraceID:   inboundID(c.GetHeader(headerTraceID)),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			t.TraceID = sc.TraceID().String()
		}
		if t.RequestID == "" {
			t.RequestID = uuid.NewString()
		}
		if t.TraceID == "" {
			t.TraceID = t.RequestID
		}

		c.Request = c.Request.WithContext(ctxutil.WithTrace(c.Request.Context(), t))
		c.Writer.Header().Set(headerTraceID, t.TraceID)
		c.Writer.Header().Set(headerRequestID, t.RequestID)
		c.Next()
	}
}

// inboundID accepts a caller-supplied id only if it is short and printable ASCII.
func inboundID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxInboundIDLen {
		return ""
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x21 || raw[i] > 0x7e {
			return ""
		}
	}
	return raw
}
