package realtime

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

// Room is the live set of sessions for one recipe. It exists from the first
// join until the last session leaves; a later join gets a new Room.
type Room struct {
	ID        uuid.UUID
	RecipeID  uuid.UUID
	CreatedAt time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	closed   bool
}

// Registry owns every room in this process. Lock order is room.mu before
// Registry.mu; Registry.mu is never held while acquiring a room lock.
type Registry struct {
	mu          sync.Mutex
	rooms       map[uuid.UUID]*Room
	memberships map[uuid.UUID]map[uuid.UUID]struct{}

	seq     atomic.Uint64
	logger  *logger.Logger
	metrics *observability.Metrics
}

func NewRegistry(log *logger.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		rooms:       make(map[uuid.UUID]*Room),
		memberships: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		logger:      log.With("component", "RoomRegistry"),
		metrics:     metrics,
	}
}

func (reg *Registry) roomFor(recipeID uuid.UUID, create bool) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[recipeID]
	if ok || !create {
		return room
	}
	room = &Room{
		ID:        uuid.New(),
		RecipeID:  recipeID,
		CreatedAt: time.Now().UTC(),
		sessions:  make(map[uuid.UUID]*Session),
	}
	reg.rooms[recipeID] = room
	reg.metrics.SetRealtimeRooms(len(reg.rooms))
	reg.logger.Debug("Room created", "recipe_id", recipeID, "room_id", room.ID)
	return room
}

// withRoom runs fn under the room lock. It returns false when no live room exists.
func (reg *Registry) withRoom(recipeID uuid.UUID, fn func(room *Room)) bool {
	room := reg.roomFor(recipeID, false)
	if room == nil {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed {
		return false
	}
	fn(room)
	return true
}

// Join admits the session into the recipe's room, creating the room when
// needed, and sends the full presence list to every member. Joining twice
// with the same connection refreshes the session in place.
func (reg *Registry) Join(recipeID uuid.UUID, s Session, peer Peer) uuid.UUID {
	s.ConnID = peer.ConnID()
	for {
		room := reg.roomFor(recipeID, true)
		room.mu.Lock()
		if room.closed {
			// lost a race with the last leave; the registry entry is already gone
			room.mu.Unlock()
			continue
		}
		if existing, ok := room.sessions[s.ConnID]; ok {
			s.seq = existing.seq
			s.Cursor = existing.Cursor
			s.ActiveSection = existing.ActiveSection
		} else {
			s.seq = reg.seq.Add(1)
		}
		if s.JoinedAt.IsZero() {
			s.JoinedAt = time.Now().UTC()
		}
		s.peer = peer
		sess := s
		room.sessions[s.ConnID] = &sess

		reg.mu.Lock()
		set, ok := reg.memberships[s.ConnID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			reg.memberships[s.ConnID] = set
		}
		set[recipeID] = struct{}{}
		reg.mu.Unlock()

		reg.broadcastPresence(room)
		roomID := room.ID
		room.mu.Unlock()

		reg.logger.Debug("Session joined room", "recipe_id", recipeID, "room_id", roomID, "conn_id", s.ConnID, "user_id", s.UserID)
		return roomID
	}
}

// Leave removes the connection from the recipe's room. The room is torn down
// when it becomes empty, otherwise the remaining members get fresh presence.
func (reg *Registry) Leave(recipeID, connID uuid.UUID) bool {
	removed := false
	reg.withRoom(recipeID, func(room *Room) {
		if _, ok := room.sessions[connID]; !ok {
			return
		}
		delete(room.sessions, connID)
		removed = true

		reg.mu.Lock()
		if set, ok := reg.memberships[connID]; ok {
			delete(set, recipeID)
			if len(set) == 0 {
				delete(reg.memberships, connID)
			}
		}
		if len(room.sessions) == 0 {
			room.closed = true
			if reg.rooms[recipeID] == room {
				delete(reg.rooms, recipeID)
			}
			reg.metrics.SetRealtimeRooms(len(reg.rooms))
		}
		reg.mu.Unlock()

		if room.closed {
			reg.logger.Debug("Room closed", "recipe_id", recipeID, "room_id", room.ID)
			return
		}
		reg.broadcastPresence(room)
	})
	return removed
}

// UpdateCursor stores the session's cursor and section and sends only that
// delta to the other members.
func (reg *Registry) UpdateCursor(recipeID, connID uuid.UUID, position json.RawMessage, section string) bool {
	updated := false
	reg.withRoom(recipeID, func(room *Room) {
		s, ok := room.sessions[connID]
		if !ok {
			return
		}
		if len(position) > 0 {
			s.Cursor = append(json.RawMessage(nil), position...)
		} else {
			s.Cursor = nil
		}
		s.ActiveSection = section
		updated = true

		msg, err := NewMessage(EventCursorUpdate, CursorPayload{
			UserID:   s.UserID,
			UserName: s.Name,
			Position: s.Cursor,
			Section:  section,
		})
		if err != nil {
			reg.logger.Warn("Failed to encode cursor update", "error", err)
			return
		}
		reg.fanOut(room, msg, connID)
	})
	return updated
}

// Disconnect removes the connection from every room it is a member of.
func (reg *Registry) Disconnect(connID uuid.UUID) int {
	reg.mu.Lock()
	recipeIDs := make([]uuid.UUID, 0, len(reg.memberships[connID]))
	for id := range reg.memberships[connID] {
		recipeIDs = append(recipeIDs, id)
	}
	reg.mu.Unlock()

	n := 0
	for _, id := range recipeIDs {
		if reg.Leave(id, connID) {
			n++
		}
	}
	return n
}

// Presence returns the members of the recipe's room ordered by join order.
func (reg *Registry) Presence(recipeID uuid.UUID) []PresenceUser {
	var out []PresenceUser
	reg.withRoom(recipeID, func(room *Room) {
		out = presenceList(room)
	})
	return out
}

// Member returns a copy of the connection's session in the recipe's room.
func (reg *Registry) Member(recipeID, connID uuid.UUID) (Session, bool) {
	var (
		out Session
		ok  bool
	)
	reg.withRoom(recipeID, func(room *Room) {
		var s *Session
		if s, ok = room.sessions[connID]; ok {
			out = s.snapshot()
		}
	})
	return out, ok
}

// SharedRoom returns a recipe whose room both connections have joined.
func (reg *Registry) SharedRoom(a, b uuid.UUID) (uuid.UUID, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for id := range reg.memberships[a] {
		if _, ok := reg.memberships[b][id]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// RoomID returns the identity of the live room for the recipe, if any.
func (reg *Registry) RoomID(recipeID uuid.UUID) (uuid.UUID, bool) {
	room := reg.roomFor(recipeID, false)
	if room == nil {
		return uuid.Nil, false
	}
	return room.ID, true
}

func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

func presenceList(room *Room) []PresenceUser {
	sessions := make([]*Session, 0, len(room.sessions))
	for _, s := range room.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].seq < sessions[j].seq })
	out := make([]PresenceUser, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.presence())
	}
	return out
}

// broadcastPresence must be called with room.mu held.
func (reg *Registry) broadcastPresence(room *Room) {
	msg, err := NewMessage(EventPresenceUpdate, PresencePayload{
		RecipeID: room.RecipeID,
		Users:    presenceList(room),
	})
	if err != nil {
		reg.logger.Warn("Failed to encode presence", "error", err)
		return
	}
	reg.fanOut(room, msg, uuid.Nil)
}

// fanOut must be called with room.mu held. exclude may be uuid.Nil.
func (reg *Registry) fanOut(room *Room, msg Message, exclude uuid.UUID) int {
	delivered := 0
	for connID, s := range room.sessions {
		if connID == exclude {
			continue
		}
		if reg.deliver(s, msg) {
			delivered++
		}
	}
	return delivered
}

func (reg *Registry) deliver(s *Session, msg Message) bool {
	if s.peer == nil {
		return false
	}
	if !s.peer.Send(msg) {
		reg.logger.Warn("Dropping realtime message; outbound buffer full", "conn_id", s.ConnID, "event", msg.Event)
		reg.metrics.IncRealtimeDropped(string(msg.Event))
		return false
	}
	reg.metrics.IncRealtimeEvent(string(msg.Event), "out")
	return true
}
