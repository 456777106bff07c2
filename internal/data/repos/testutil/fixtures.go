package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/tastelab-backend/internal/domain"
	"gorm.io/gorm"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:       uuid.New(),
		Email:    email,
		Password: "pw",
		Name:     email,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedRecipe(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, title string) *types.Recipe {
	tb.Helper()
	r := &types.Recipe{
		ID:          uuid.New(),
		Title:       title,
		Description: "seeded",
		Ingredients: []types.Ingredient{{Name: "flour", Quantity: "200", Unit: "g"}},
		Steps:       []types.Step{{Order: 1, Instruction: "mix"}},
		OwnerID:     ownerID,
	}
	r.Original = types.NewSnapshotJSON(r.Snapshot())
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed recipe: %v", err)
	}
	return r
}

func SeedCollaborator(tb testing.TB, ctx context.Context, tx *gorm.DB, recipeID, userID uuid.UUID, role types.CollaboratorRole) *types.RecipeCollaborator {
	tb.Helper()
	c := &types.RecipeCollaborator{
		RecipeID: recipeID,
		UserID:   userID,
		Role:     role,
		AddedAt:  time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed collaborator: %v", err)
	}
	return c
}
