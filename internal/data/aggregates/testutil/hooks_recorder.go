package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/tastelab-backend/internal/data/aggregates"
)

// HooksRecorder collects version-store write signals for assertions.
type HooksRecorder struct {
	mu sync.Mutex

	Writes     []WriteEvent
	Conflicts  []string
	Transients []string
}

type WriteEvent struct {
	Op       string
	Outcome  string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) WriteFinished(op, outcome string, dur time.Duration) {
	h.mu.Lock()
	h.Writes = append(h.Writes, WriteEvent{Op: op, Outcome: outcome, Duration: dur})
	h.mu.Unlock()
}

func (h *HooksRecorder) CounterConflict(op string) {
	h.mu.Lock()
	h.Conflicts = append(h.Conflicts, op)
	h.mu.Unlock()
}

func (h *HooksRecorder) TransientFailure(op string) {
	h.mu.Lock()
	h.Transients = append(h.Transients, op)
	h.mu.Unlock()
}

// Outcomes returns the outcome label of every recorded write, in order.
func (h *HooksRecorder) Outcomes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.Writes))
	for i, w := range h.Writes {
		out[i] = w.Outcome
	}
	return out
}
