package ctxutil

import "context"

type traceKey struct{}

// Trace identifies one inbound request across logs and responses.
type Trace struct {
	TraceID   string
	RequestID string
}

func WithTrace(ctx context.Context, t Trace) context.Context {
	return context.WithValue(Default(ctx), traceKey{}, t)
}

func TraceFrom(ctx context.Context) (Trace, bool) {
	if ctx == nil {
		return Trace{}, false
	}
	t, ok := ctx.Value(traceKey{}).(Trace)
	return t, ok
}

// LogFields returns trace_id/request_id key-value pairs for the ids that are set.
func (t Trace) LogFields() []interface{} {
	fields := make([]interface{}, 0, 4)
	if t.TraceID != "" {
		fields = append(fields, "trace_id", t.TraceID)
	}
	if t.RequestID != "" {
		fields = append(fields, "request_id", t.RequestID)
	}
	return fields
}
