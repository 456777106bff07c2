package realtime

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type EventType string

const (
	// inbound
	EventJoinRoom     EventType = "joinRoom"
	EventLeaveRoom    EventType = "leaveRoom"
	EventRequestSync  EventType = "requestSync"
	EventSyncResponse EventType = "syncResponse"

	// mirrored in both directions
	EventIngredientChange EventType = "ingredientChange"
	EventStepChange       EventType = "stepChange"
	EventRecipeMetaChange EventType = "recipeMetaChange"
	EventCursorUpdate     EventType = "cursorUpdate"
	EventVersionSaved     EventType = "versionSaved"

	// outbound only
	EventPresenceUpdate  EventType = "presenceUpdate"
	EventSyncRequest     EventType = "syncRequest"
	EventSyncData        EventType = "syncData"
	EventVersionRestored EventType = "versionRestored"
	EventError           EventType = "error"
)

// IsEdit reports whether the event mutates shared recipe content on peers.
func (e EventType) IsEdit() bool {
	switch e {
	case EventIngredientChange, EventStepChange, EventRecipeMetaChange:
		return true
	}
	return false
}

// Message is the wire frame exchanged over the socket.
type Message struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewMessage(event EventType, data any) (Message, error) {
	if data == nil {
		return Message{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: raw}, nil
}

type PresenceUser struct {
	ConnID        uuid.UUID       `json:"connId"`
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Avatar        string          `json:"avatar,omitempty"`
	Cursor        json.RawMessage `json:"cursor"`
	ActiveSection *string         `json:"activeSection"`
}

type PresencePayload struct {
	RecipeID uuid.UUID      `json:"recipeId"`
	Users    []PresenceUser `json:"users"`
}

type CursorPayload struct {
	UserID   uuid.UUID       `json:"userId"`
	UserName string          `json:"userName"`
	Position json.RawMessage `json:"position"`
	Section  string          `json:"section"`
}

type VersionSavedPayload struct {
	Version   int        `json:"version"`
	SavedBy   string     `json:"savedBy"`
	VersionID *uuid.UUID `json:"versionId,omitempty"`
}

type VersionRestoredPayload struct {
	RestoredFrom   int    `json:"restoredFrom"`
	CurrentVersion int    `json:"currentVersion"`
	RestoredBy     string `json:"restoredBy"`
}

type SyncRequestPayload struct {
	RequestedBy uuid.UUID `json:"requestedBy"`
}

type SyncDataPayload struct {
	Recipe json.RawMessage `json:"recipe"`
}

type ErrorPayload struct {
	Event   EventType `json:"event,omitempty"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

var ErrMissingRecipeID = errors.New("recipeId is required")

// decodeRecipeID accepts either a bare JSON string or an object carrying
// recipeId (documentId is accepted as an alias).
func decodeRecipeID(data json.RawMessage) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return uuid.Nil, ErrMissingRecipeID
	}
	var raw string
	if strings.HasPrefix(trimmed, "\"") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return uuid.Nil, err
		}
	} else {
		var obj struct {
			RecipeID   string `json:"recipeId"`
			DocumentID string `json:"documentId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return uuid.Nil, err
		}
		raw = obj.RecipeID
		if raw == "" {
			raw = obj.DocumentID
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, ErrMissingRecipeID
	}
	return uuid.Parse(raw)
}

// stampPayload decodes an object payload, drops the routing key and overwrites
// the identity fields with the verified sender.
func stampPayload(data json.RawMessage, userID uuid.UUID, userName string) (map[string]any, error) {
	out := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = map[string]any{}
		}
	}
	delete(out, "documentId")
	out["userId"] = userID.String()
	out["userName"] = userName
	return out, nil
}
