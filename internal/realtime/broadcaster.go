package realtime

import (
	"github.com/google/uuid"
)

// Broadcaster fans messages out to the members of a recipe's room. Delivery
// is best effort: nothing is validated, buffered across rooms or retried.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Relay sends msg to every member except the origin connection and returns
// how many members accepted it.
func (b *Broadcaster) Relay(recipeID, originConnID uuid.UUID, msg Message) int {
	delivered := 0
	b.reg.withRoom(recipeID, func(room *Room) {
		delivered = b.reg.fanOut(room, msg, originConnID)
	})
	return delivered
}

// Announce sends a server-originated msg to every member of the room.
func (b *Broadcaster) Announce(recipeID uuid.UUID, msg Message) int {
	delivered := 0
	b.reg.withRoom(recipeID, func(room *Room) {
		delivered = b.reg.fanOut(room, msg, uuid.Nil)
	})
	return delivered
}

// SendTo delivers msg to a single member. The origin and the target must
// both be members of the same room.
func (b *Broadcaster) SendTo(recipeID, originConnID, targetConnID uuid.UUID, msg Message) bool {
	sent := false
	b.reg.withRoom(recipeID, func(room *Room) {
		if _, ok := room.sessions[originConnID]; !ok {
			return
		}
		target, ok := room.sessions[targetConnID]
		if !ok {
			return
		}
		sent = b.reg.deliver(target, msg)
	})
	return sent
}
