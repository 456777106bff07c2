package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Peer is the outbound side of one connection. Send must not block; it
// returns false when the message could not be queued.
type Peer interface {
	ConnID() uuid.UUID
	Send(msg Message) bool
}

// Session is one connection's presence inside a room.
type Session struct {
	ConnID        uuid.UUID
	UserID        uuid.UUID
	Name          string
	Avatar        string
	Cursor        json.RawMessage
	ActiveSection string
	CanEdit       bool
	JoinedAt      time.Time

	seq  uint64
	peer Peer
}

func (s *Session) presence() PresenceUser {
	out := PresenceUser{
		ConnID: s.ConnID,
		ID:     s.UserID,
		Name:   s.Name,
		Avatar: s.Avatar,
		Cursor: s.Cursor,
	}
	if s.ActiveSection != "" {
		section := s.ActiveSection
		out.ActiveSection = &section
	}
	return out
}

// snapshot copies the exported fields so callers never hold a pointer into a room.
func (s *Session) snapshot() Session {
	cp := Session{
		ConnID:        s.ConnID,
		UserID:        s.UserID,
		Name:          s.Name,
		Avatar:        s.Avatar,
		ActiveSection: s.ActiveSection,
		CanEdit:       s.CanEdit,
		JoinedAt:      s.JoinedAt,
	}
	if len(s.Cursor) > 0 {
		cp.Cursor = append(json.RawMessage(nil), s.Cursor...)
	}
	return cp
}
