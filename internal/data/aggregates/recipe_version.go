package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/tastelab-backend/internal/data/repos"
	types "github.com/yungbote/tastelab-backend/internal/domain"
	domainagg "github.com/yungbote/tastelab-backend/internal/domain/aggregates"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
)

const recipeTable = "recipe"

type RecipeAggregateDeps struct {
	Base     BaseDeps
	Recipes  repos.RecipeRepo
	Versions repos.RecipeVersionRepo
}

type recipeAggregate struct {
	deps   RecipeAggregateDeps
	writer *versionWriter
}

func NewRecipeAggregate(deps RecipeAggregateDeps) domainagg.RecipeAggregate {
	deps.Base = deps.Base.withDefaults()
	return &recipeAggregate{deps: deps, writer: newVersionWriter(deps.Base)}
}

func (a *recipeAggregate) SaveVersion(ctx context.Context, in domainagg.SaveVersionInput) (domainagg.SaveVersionResult, error) {
	const op = "recipe.save_version"
	if in.RecipeID == uuid.Nil || in.UserID == uuid.Nil {
		return domainagg.SaveVersionResult{}, domainagg.NewError(domainagg.CodeValidation, op, "recipe_id and user_id are required", nil)
	}
	at := eventTime(in.At)

	var out domainagg.SaveVersionResult
	err := a.writer.run(ctx, op, in.RecipeID, func(dbc dbctx.Context) error {
		r, err := a.lockEditable(dbc, op, in.RecipeID, in.UserID)
		if err != nil {
			return err
		}
		v, err := a.appendVersion(dbc, r, in.UserID, strings.TrimSpace(in.Message), at)
		if err != nil {
			return err
		}
		out = domainagg.SaveVersionResult{
			RecipeID:       r.ID,
			VersionID:      v.ID,
			VersionNumber:  v.VersionNumber,
			CurrentVersion: r.CurrentVersion,
			SavedAt:        at,
		}
		return nil
	})
	if err != nil {
		return domainagg.SaveVersionResult{}, err
	}
	return out, nil
}

func (a *recipeAggregate) RestoreVersion(ctx context.Context, in domainagg.RestoreVersionInput) (domainagg.RestoreVersionResult, error) {
	const op = "recipe.restore_version"
	if in.RecipeID == uuid.Nil || in.UserID == uuid.Nil || in.VersionID == uuid.Nil {
		return domainagg.RestoreVersionResult{}, domainagg.NewError(domainagg.CodeValidation, op, "recipe_id, version_id and user_id are required", nil)
	}
	at := eventTime(in.At)

	var out domainagg.RestoreVersionResult
	err := a.writer.run(ctx, op, in.RecipeID, func(dbc dbctx.Context) error {
		r, err := a.lockEditable(dbc, op, in.RecipeID, in.UserID)
		if err != nil {
			return err
		}
		target, err := a.deps.Versions.GetByID(dbc, r.ID, in.VersionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainagg.NewError(domainagg.CodeNotFound, op, "version not found", err)
			}
			return err
		}

		snap, err := a.appendVersion(dbc, r, in.UserID, fmt.Sprintf("Before restore to v%d", target.VersionNumber), at)
		if err != nil {
			return err
		}
		if err := a.deps.Recipes.UpdateFields(dbc, r.ID, target.Snapshot().ContentUpdates()); err != nil {
			return err
		}
		out = domainagg.RestoreVersionResult{
			RecipeID:              r.ID,
			RestoredFrom:          target.VersionNumber,
			SnapshotVersionID:     snap.ID,
			SnapshotVersionNumber: snap.VersionNumber,
			CurrentVersion:        r.CurrentVersion,
			RestoredAt:            at,
		}
		return nil
	})
	if err != nil {
		return domainagg.RestoreVersionResult{}, err
	}
	return out, nil
}

// lockEditable row-locks the recipe and checks that userID may edit it.
func (a *recipeAggregate) lockEditable(dbc dbctx.Context, op string, recipeID, userID uuid.UUID) (*types.Recipe, error) {
	r, err := a.deps.Recipes.LockByID(dbc, recipeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainagg.NewError(domainagg.CodeNotFound, op, "recipe not found", err)
		}
		return nil, err
	}
	if !types.CanAccess(r, userID, types.CapabilityEdit) {
		return nil, domainagg.NewError(domainagg.CodeForbidden, op, "edit capability required", nil)
	}
	return r, nil
}

// appendVersion stores the recipe's current content as version r.CurrentVersion
// and advances the counter by compare-and-set. r.CurrentVersion is updated in place.
func (a *recipeAggregate) appendVersion(dbc dbctx.Context, r *types.Recipe, by uuid.UUID, message string, at time.Time) (*types.RecipeVersion, error) {
	v := types.NewRecipeVersion(r.ID, r.CurrentVersion, r.Snapshot(), by, message, at)
	if _, err := a.deps.Versions.Create(dbc, []*types.RecipeVersion{v}); err != nil {
		return nil, err
	}
	if err := a.deps.Base.Counter.Advance(dbc, recipeTable, r.ID, "current_version", r.CurrentVersion, map[string]any{
		"updated_at": at,
	}); err != nil {
		return nil, err
	}
	r.CurrentVersion++
	return v, nil
}

func eventTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}
