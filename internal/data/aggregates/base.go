package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

type BaseDeps struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Runner  TxRunner
	Hooks   Hooks
	Counter CounterGuard
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Runner == nil {
		d.Runner = NewTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.Counter.db == nil {
		d.Counter = NewCounterGuard(d.DB)
	}
	return d
}

// TxRunner opens the transaction a write body runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "tx.begin", "no database configured", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// versionWriter runs version-store writes. Writes for the same recipe queue
// on an in-process lock before they open a transaction, so row-lock waits
// only happen across instances.
type versionWriter struct {
	deps  BaseDeps
	log   *logger.Logger
	locks *keyedLock
}

func newVersionWriter(deps BaseDeps) *versionWriter {
	deps = deps.withDefaults()
	return &versionWriter{
		deps:  deps,
		log:   deps.Log.With("component", "VersionWriter"),
		locks: newKeyedLock(),
	}
}

func (w *versionWriter) run(ctx context.Context, op string, recipeID uuid.UUID, fn func(dbc dbctx.Context) error) error {
	unlock := w.locks.Lock(recipeID)
	defer unlock()

	ctx, span := observability.StartSpan(ctx, "version_store."+op, attribute.String("recipe.id", recipeID.String()))
	defer span.End()

	start := time.Now()
	err := ClassifyError(op, w.deps.Runner.InTx(ctx, fn))
	outcome := writeOutcome(err)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.RecordError(err)
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeConflict:
		w.deps.Hooks.CounterConflict(op)
	case domainagg.CodeRetryable:
		w.deps.Hooks.TransientFailure(op)
	case domainagg.CodeInternal:
		w.log.Error("Version write failed", "op", op, "recipe_id", recipeID, "error", err)
	}
	w.deps.Hooks.WriteFinished(op, outcome, time.Since(start))
	return err
}

// writeOutcome is the metrics label for a finished write: "ok" or the error code.
func writeOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	return string(domainagg.CodeOf(ClassifyError("outcome", err)))
}
