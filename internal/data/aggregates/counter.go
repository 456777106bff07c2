package aggregates

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
)

// CounterGuard advances integer counter columns by compare-and-set.
type CounterGuard struct {
	db *gorm.DB
}

func NewCounterGuard(db *gorm.DB) CounterGuard {
	return CounterGuard{db: db}
}

// Advance sets column to expected+1, along with any extra assignments, on
// the row with the given id, provided column still holds expected. A row
// that has moved on yields errCounterMoved.
func (g CounterGuard) Advance(dbc dbctx.Context, table string, id uuid.UUID, column string, expected int, extra map[string]any) error {
	const op = "counter.advance"
	if dbc.Tx == nil && g.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "no database configured", nil)
	}
	if table == "" || column == "" || id == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "table, column and id are required", nil)
	}
	if expected < 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, "expected counter must be >= 0", nil)
	}

	updates := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		updates[k] = v
	}
	updates[column] = expected + 1

	res := dbc.DB(g.db).Table(table).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: expected}).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errCounterMoved
	}
	return nil
}
