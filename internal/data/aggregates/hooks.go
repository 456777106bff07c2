package aggregates

import (
	"time"

	"github.com/yungbote/tastelab-backend/internal/observability"
)

// Hooks receives version-store write signals.
type Hooks interface {
	WriteFinished(op, outcome string, dur time.Duration)
	CounterConflict(op string)
	TransientFailure(op string)
}

type noopHooks struct{}

func (noopHooks) WriteFinished(string, string, time.Duration) {}
func (noopHooks) CounterConflict(string)                      {}
func (noopHooks) TransientFailure(string)                     {}

type metricsHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks reports writes to metrics; a nil registry yields no-op hooks.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{metrics: metrics}
}

func (h metricsHooks) WriteFinished(op, outcome string, dur time.Duration) {
	h.metrics.ObserveVersionWrite(op, outcome, dur)
}

func (h metricsHooks) CounterConflict(op string) { h.metrics.IncVersionConflict(op) }

func (h metricsHooks) TransientFailure(op string) { h.metrics.IncVersionTransient(op) }
