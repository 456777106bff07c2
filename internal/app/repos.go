package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/tastelab-backend/internal/data/repos"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

type Repos struct {
	User          repos.UserRepo
	Recipe        repos.RecipeRepo
	RecipeVersion repos.RecipeVersionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:          repos.NewUserRepo(db, log),
		Recipe:        repos.NewRecipeRepo(db, log),
		RecipeVersion: repos.NewRecipeVersionRepo(db, log),
	}
}
