package recipe

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/tastelab-backend/internal/domain"
	"github.com/yungbote/tastelab-backend/internal/platform/dbctx"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

// RecipeVersionRepo stores the append-only version history.
type RecipeVersionRepo interface {
	Create(dbc dbctx.Context, rows []*types.RecipeVersion) ([]*types.RecipeVersion, error)
	GetByID(dbc dbctx.Context, recipeID, versionID uuid.UUID) (*types.RecipeVersion, error)
	ListByRecipe(dbc dbctx.Context, recipeID uuid.UUID) ([]*types.RecipeVersion, error)
}

type recipeVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecipeVersionRepo(db *gorm.DB, log *logger.Logger) RecipeVersionRepo {
	return &recipeVersionRepo{db: db, log: log.With("repo", "RecipeVersionRepo")}
}

func (r *recipeVersionRepo) Create(dbc dbctx.Context, rows []*types.RecipeVersion) ([]*types.RecipeVersion, error) {
	if len(rows) == 0 {
		return []*types.RecipeVersion{}, nil
	}
	db := dbc.DB(r.db)
	if err := db.Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GetByID only matches versions that belong to recipeID.
func (r *recipeVersionRepo) GetByID(dbc dbctx.Context, recipeID, versionID uuid.UUID) (*types.RecipeVersion, error) {
	if recipeID == uuid.Nil || versionID == uuid.Nil {
		return nil, fmt.Errorf("missing recipe_id or version_id")
	}
	db := dbc.DB(r.db)
	var out types.RecipeVersion
	if err := db.
		Where("recipe_id = ? AND id = ?", recipeID, versionID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *recipeVersionRepo) ListByRecipe(dbc dbctx.Context, recipeID uuid.UUID) ([]*types.RecipeVersion, error) {
	if recipeID == uuid.Nil {
		return nil, fmt.Errorf("missing recipe_id")
	}
	db := dbc.DB(r.db)
	var out []*types.RecipeVersion
	if err := db.
		Where("recipe_id = ?", recipeID).
		Order("version_number ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
