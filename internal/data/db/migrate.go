package db

import (
	"fmt"

	types "github.com/yungbote/tastelab-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureRecipeIndexes adds postgres-only indexes gorm tags cannot express.
func EnsureRecipeIndexes(db *gorm.DB) error {
	if db == nil || db.Dialector.Name() != DriverPostgres {
		return nil
	}
	// Accessible-recipe listing filters by owner or public and sorts newest first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_recipe_owner_updated
		ON recipe (owner_id, updated_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_recipe_owner_updated: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_recipe_public_updated
		ON recipe (updated_at DESC)
		WHERE is_public;
	`).Error; err != nil {
		return fmt.Errorf("create idx_recipe_public_updated: %w", err)
	}
	// Version history pages are read newest first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_recipe_version_recipe_desc
		ON recipe_version (recipe_id, version_number DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_recipe_version_recipe_desc: %w", err)
	}
	return nil
}
