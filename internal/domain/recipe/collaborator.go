package recipe

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/tastelab-backend/internal/domain/user"
	"gorm.io/gorm"
)

type Role string

const (
	RoleCollaborator Role = "collaborator"
	RoleViewer       Role = "viewer"
)

// ParseRole normalizes a role name; empty means collaborator.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoleCollaborator:
		return RoleCollaborator, true
	case RoleViewer:
		return RoleViewer, true
	default:
		return "", false
	}
}

type Collaborator struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecipeID uuid.UUID `gorm:"type:uuid;column:recipe_id;not null;uniqueIndex:idx_recipe_collaborator_user,priority:1" json:"recipe_id"`
	UserID   uuid.UUID `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_recipe_collaborator_user,priority:2;index" json:"user_id"`
	Role     Role      `gorm:"column:role;not null;default:'collaborator'" json:"role"`
	AddedAt  time.Time `gorm:"column:added_at;not null" json:"added_at"`

	User *user.UserSummary `gorm:"-" json:"user,omitempty"`
}

func (Collaborator) TableName() string { return "recipe_collaborator" }

func (c *Collaborator) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Role == "" {
		c.Role = RoleCollaborator
	}
	if c.AddedAt.IsZero() {
		c.AddedAt = time.Now().UTC()
	}
	return nil
}
