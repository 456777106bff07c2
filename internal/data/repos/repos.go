package repos

import (
	"github.com/yungbote/tastelab-backend/internal/data/repos/recipe"
	"github.com/yungbote/tastelab-backend/internal/data/repos/user"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo

type RecipeRepo = recipe.RecipeRepo
type RecipeVersionRepo = recipe.RecipeVersionRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewRecipeRepo(db *gorm.DB, baseLog *logger.Logger) RecipeRepo {
	return recipe.NewRecipeRepo(db, baseLog)
}
func NewRecipeVersionRepo(db *gorm.DB, baseLog *logger.Logger) RecipeVersionRepo {
	return recipe.NewRecipeVersionRepo(db, baseLog)
}

func NormalizeEmail(email string) string { return user.NormalizeEmail(email) }
