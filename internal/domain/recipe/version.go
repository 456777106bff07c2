package recipe

import (
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/tastelab-backend/internal/domain/user"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Version is an immutable snapshot in a recipe's history.
type Version struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID      uuid.UUID `gorm:"type:uuid;column:recipe_id;not null;uniqueIndex:idx_recipe_version_number,priority:1" json:"recipe_id"`
	VersionNumber int       `gorm:"column:version_number;not null;uniqueIndex:idx_recipe_version_number,priority:2" json:"version_number"`

	Title       string                         `gorm:"column:title;not null" json:"title"`
	Description string                         `gorm:"column:description;not null;default:''" json:"description"`
	Ingredients datatypes.JSONSlice[Ingredient] `gorm:"column:ingredients" json:"ingredients"`
	Steps       datatypes.JSONSlice[Step]       `gorm:"column:steps" json:"steps"`

	UpdatedBy uuid.UUID         `gorm:"type:uuid;column:updated_by;not null;index" json:"updated_by"`
	Author    *user.UserSummary `gorm:"-" json:"author,omitempty"`
	Message   string            `gorm:"column:message;not null;default:''" json:"message"`
	Timestamp time.Time         `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (Version) TableName() string { return "recipe_version" }

func (v *Version) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Ingredients == nil {
		v.Ingredients = datatypes.JSONSlice[Ingredient]{}
	}
	if v.Steps == nil {
		v.Steps = datatypes.JSONSlice[Step]{}
	}
	return nil
}

// NewVersion builds the version row for snapshot s.
func NewVersion(recipeID uuid.UUID, number int, s Snapshot, by uuid.UUID, message string, at time.Time) *Version {
	return &Version{
		ID:            uuid.New(),
		RecipeID:      recipeID,
		VersionNumber: number,
		Title:         s.Title,
		Description:   s.Description,
		Ingredients:   append([]Ingredient{}, s.Ingredients...),
		Steps:         append([]Step{}, s.Steps...),
		UpdatedBy:     by,
		Message:       message,
		Timestamp:     at,
	}
}

func (v *Version) Snapshot() Snapshot {
	if v == nil {
		return Snapshot{}
	}
	return Snapshot{
		Title:       v.Title,
		Description: v.Description,
		Ingredients: append([]Ingredient{}, v.Ingredients...),
		Steps:       append([]Step{}, v.Steps...),
	}
}
