package aggregates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
)

type bodyOnlyRunner struct{}

type spyHooks struct {
	mu         sync.Mutex
	outcomes   []string
	conflicts  []string
	transients []string
}

func (h *spyHooks) WriteFinished(_ string, outcome string, _ time.Duration) {
	h.mu.Lock()
	h.outcomes = append(h.outcomes, outcome)
	h.mu.Unlock()
}

func (h *spyHooks) CounterConflict(op string) {
	h.mu.Lock()
	h.conflicts = append(h.conflicts, op)
	h.mu.Unlock()
}

func (h *spyHooks) TransientFailure(op string) {
	h.mu.Lock()
	h.transients = append(h.transients, op)
	h.mu.Unlock()
}

func (bodyOnlyRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

func TestVersionWriterReportsOutcome(t *testing.T) {
	cases := []struct {
		name          string
		body          error
		wantOutcome   string
		wantConflict  int
		wantTransient int
	}{
		{"ok", nil, "ok", 0, 0},
		{"counter moved", errCounterMoved, string(domainagg.CodeConflict), 1, 0},
		{"deadline", context.DeadlineExceeded, string(domainagg.CodeRetryable), 0, 1},
		{"forbidden", domainagg.NewError(domainagg.CodeForbidden, "x", "no", nil), string(domainagg.CodeForbidden), 0, 0},
		{"unknown", errors.New("disk on fire"), string(domainagg.CodeInternal), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := &spyHooks{}
			w := newVersionWriter(BaseDeps{Runner: bodyOnlyRunner{}, Hooks: hooks})
			err := w.run(context.Background(), "recipe.test", uuid.New(), func(dbctx.Context) error { return tc.body })
			if (err == nil) != (tc.body == nil) {
				t.Fatalf("err: want nil=%v got=%v", tc.body == nil, err)
			}
			if got := hooks.outcomes; len(got) != 1 || got[0] != tc.wantOutcome {
				t.Fatalf("outcomes: want=[%s] got=%v", tc.wantOutcome, got)
			}
			if len(hooks.conflicts) != tc.wantConflict || len(hooks.transients) != tc.wantTransient {
				t.Fatalf("signals: want conflict=%d transient=%d got %v %v",
					tc.wantConflict, tc.wantTransient, hooks.conflicts, hooks.transients)
			}
		})
	}
}

func TestVersionWriterSerializesPerRecipe(t *testing.T) {
	w := newVersionWriter(BaseDeps{Runner: bodyOnlyRunner{}})
	id := uuid.New()
	var inside, overlap int32
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			_ = w.run(context.Background(), "recipe.test", id, func(dbctx.Context) error {
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	if atomic.LoadInt32(&overlap) != 0 {
		t.Fatalf("writes for one recipe overlapped")
	}
	if n := w.locks.size(); n != 0 {
		t.Fatalf("lock entries leaked: %d", n)
	}
}

func TestTxRunnerWithoutDB(t *testing.T) {
	err := NewTxRunner(nil).InTx(context.Background(), func(dbctx.Context) error { return nil })
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal got=%v", err)
	}
}
