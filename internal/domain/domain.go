package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/tastelab-backend/internal/domain/recipe"
	"github.com/yungbote/tastelab-backend/internal/domain/user"
	"gorm.io/datatypes"
)

type User = user.User
type UserSummary = user.UserSummary

type Recipe = recipe.Recipe
type RecipeVersion = recipe.Version
type RecipeCollaborator = recipe.Collaborator
type RecipeSnapshot = recipe.Snapshot
type Ingredient = recipe.Ingredient
type Step = recipe.Step
type CollaboratorRole = recipe.Role
type Capability = recipe.Capability

const (
	RoleCollaborator = recipe.RoleCollaborator
	RoleViewer       = recipe.RoleViewer

	CapabilityView  = recipe.CapabilityView
	CapabilityEdit  = recipe.CapabilityEdit
	CapabilityOwner = recipe.CapabilityOwner
)

func CanAccess(r *Recipe, userID uuid.UUID, need Capability) bool {
	return recipe.CanAccess(r, userID, need)
}

func NewRecipeVersion(recipeID uuid.UUID, number int, s RecipeSnapshot, by uuid.UUID, message string, at time.Time) *RecipeVersion {
	return recipe.NewVersion(recipeID, number, s, by, message, at)
}

func NewSnapshotJSON(s RecipeSnapshot) datatypes.JSONType[RecipeSnapshot] {
	return datatypes.NewJSONType(s)
}

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&User{},
		&Recipe{},
		&RecipeCollaborator{},
		&RecipeVersion{},
	}
}
