package recipe

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/tastelab-backend/internal/domain"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

type RecipeRepo interface {
	Create(dbc dbctx.Context, rows []*types.Recipe) ([]*types.Recipe, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Recipe, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Recipe, error)
	ListAccessible(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Recipe, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error

	AddCollaborator(dbc dbctx.Context, row *types.RecipeCollaborator) (*types.RecipeCollaborator, error)
	RemoveCollaborator(dbc dbctx.Context, recipeID, userID uuid.UUID) (bool, error)
	ListCollaborators(dbc dbctx.Context, recipeID uuid.UUID) ([]types.RecipeCollaborator, error)
}

type recipeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecipeRepo(db *gorm.DB, log *logger.Logger) RecipeRepo {
	return &recipeRepo{db: db, log: log.With("repo", "RecipeRepo")}
}

func (r *recipeRepo) Create(dbc dbctx.Context, rows []*types.Recipe) ([]*types.Recipe, error) {
	if len(rows) == 0 {
		return []*types.Recipe{}, nil
	}
	db := dbc.DB(r.db)
	if err := db.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetByID returns gorm.ErrRecordNotFound when the recipe does not exist.
func (r *recipeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Recipe, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	db := dbc.DB(r.db)
	var out types.Recipe
	if err := db.
		Preload("Collaborators", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC") }).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// LockByID takes a row lock on the recipe for the rest of the transaction.
func (r *recipeRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Recipe, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID required dbc.Tx")
	}
	var out types.Recipe
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	collaborators, err := r.ListCollaborators(dbc, id)
	if err != nil {
		return nil, err
	}
	out.Collaborators = collaborators
	return &out, nil
}

func (r *recipeRepo) ListAccessible(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Recipe, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := dbc.DB(r.db)
	memberOf := db.Session(&gorm.Session{NewDB: true}).
		Model(&types.RecipeCollaborator{}).
		Select("recipe_id").
		Where("user_id = ?", userID)

	var out []*types.Recipe
	if err := db.
		Model(&types.Recipe{}).
		Preload("Collaborators", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC") }).
		Where("owner_id = ? OR is_public = ? OR id IN (?)", userID, true, memberOf).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recipeRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	db := dbc.DB(r.db)
	res := db.
		Model(&types.Recipe{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the recipe with its versions and collaborators.
func (r *recipeRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	db := dbc.DB(r.db)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&types.RecipeVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&types.RecipeCollaborator{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&types.Recipe{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *recipeRepo) AddCollaborator(dbc dbctx.Context, row *types.RecipeCollaborator) (*types.RecipeCollaborator, error) {
	if row == nil || row.RecipeID == uuid.Nil || row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing recipe_id or user_id")
	}
	db := dbc.DB(r.db)
	if err := db.Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *recipeRepo) RemoveCollaborator(dbc dbctx.Context, recipeID, userID uuid.UUID) (bool, error) {
	if recipeID == uuid.Nil || userID == uuid.Nil {
		return false, fmt.Errorf("missing recipe_id or user_id")
	}
	db := dbc.DB(r.db)
	res := db.
		Where("recipe_id = ? AND user_id = ?", recipeID, userID).
		Delete(&types.RecipeCollaborator{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *recipeRepo) ListCollaborators(dbc dbctx.Context, recipeID uuid.UUID) ([]types.RecipeCollaborator, error) {
	if recipeID == uuid.Nil {
		return nil, fmt.Errorf("missing recipe_id")
	}
	db := dbc.DB(r.db)
	var out []types.RecipeCollaborator
	if err := db.
		Where("recipe_id = ?", recipeID).
		Order("added_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
