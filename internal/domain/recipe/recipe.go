package recipe

import (
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/tastelab-backend/internal/domain/user"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Notes    string `json:"notes,omitempty"`
}

type Step struct {
	Order       int    `json:"order"`
	Instruction string `json:"instruction"`
	Notes       string `json:"notes,omitempty"`
}

// Snapshot is the content copy stored as a recipe's original and in every version.
type Snapshot struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
}

// Recipe is the shared document collaborators edit in real time.
type Recipe struct {
	ID          uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string                          `gorm:"column:title;not null" json:"title"`
	Description string                          `gorm:"column:description;not null;default:''" json:"description"`
	Image       string                          `gorm:"column:image" json:"image"`
	Tags        datatypes.JSONSlice[string]     `gorm:"column:tags" json:"tags"`
	Ingredients datatypes.JSONSlice[Ingredient] `gorm:"column:ingredients" json:"ingredients"`
	Steps       datatypes.JSONSlice[Step]       `gorm:"column:steps" json:"steps"`

	OwnerID       uuid.UUID         `gorm:"type:uuid;column:owner_id;not null;index" json:"owner_id"`
	Owner         *user.UserSummary `gorm:"-" json:"owner,omitempty"`
	Collaborators []Collaborator    `gorm:"foreignKey:RecipeID" json:"collaborators"`
	IsPublic      bool              `gorm:"column:is_public;not null;default:false;index" json:"is_public"`

	CurrentVersion int                          `gorm:"column:current_version;not null;default:1" json:"current_version"`
	Original       datatypes.JSONType[Snapshot] `gorm:"column:original" json:"original_recipe"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Recipe) TableName() string { return "recipe" }

func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CurrentVersion <= 0 {
		r.CurrentVersion = 1
	}
	if r.Tags == nil {
		r.Tags = datatypes.JSONSlice[string]{}
	}
	if r.Ingredients == nil {
		r.Ingredients = datatypes.JSONSlice[Ingredient]{}
	}
	if r.Steps == nil {
		r.Steps = datatypes.JSONSlice[Step]{}
	}
	return nil
}

// Snapshot copies the recipe's current content.
func (r *Recipe) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		Title:       r.Title,
		Description: r.Description,
		Ingredients: append([]Ingredient{}, r.Ingredients...),
		Steps:       append([]Step{}, r.Steps...),
	}
}

// ContentUpdates returns the column updates that overwrite a recipe's content with s.
func (s Snapshot) ContentUpdates() map[string]any {
	ingredients := datatypes.JSONSlice[Ingredient](append([]Ingredient{}, s.Ingredients...))
	steps := datatypes.JSONSlice[Step](append([]Step{}, s.Steps...))
	return map[string]any{
		"title":       s.Title,
		"description": s.Description,
		"ingredients": ingredients,
		"steps":       steps,
	}
}
