package recipe

import "github.com/google/uuid"

// Capability is an operation class checked by CanAccess.
type Capability string

const (
	CapabilityView  Capability = "view"
	CapabilityEdit  Capability = "edit"
	CapabilityOwner Capability = "owner"
)

// CanAccess reports whether userID holds capability need on r.
//
// The owner holds every capability. A collaborator may view and edit, a viewer
// may only view, and anyone may view a public recipe. Owner is never granted
// through collaboration or publicity.
func CanAccess(r *Recipe, userID uuid.UUID, need Capability) bool {
	if r == nil || userID == uuid.Nil {
		return false
	}
	if r.OwnerID == userID {
		return true
	}
	switch need {
	case CapabilityView:
		if r.IsPublic {
			return true
		}
		_, ok := r.RoleOf(userID)
		return ok
	case CapabilityEdit:
		role, ok := r.RoleOf(userID)
		return ok && role == RoleCollaborator
	default:
		return false
	}
}

// RoleOf returns the collaborator role userID holds on r.
func (r *Recipe) RoleOf(userID uuid.UUID) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, c := range r.Collaborators {
		if c.UserID == userID {
			return c.Role, true
		}
	}
	return "", false
}
