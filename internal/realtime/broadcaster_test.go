package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBroadcasterRelayExcludesOrigin(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t), nil)
	bc := NewBroadcaster(reg)
	recipeID := uuid.New()
	a, b, c := newFakePeer(16), newFakePeer(16), newFakePeer(16)
	for _, p := range []*fakePeer{a, b, c} {
		reg.Join(recipeID, Session{UserID: uuid.New()}, p)
	}
	for _, p := range []*fakePeer{a, b, c} {
		drain(p.out)
	}

	msg, err := NewMessage(EventIngredientChange, map[string]any{"operation": "add", "value": "salt"})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if n := bc.Relay(recipeID, a.id, msg); n != 2 {
		t.Fatalf("delivered: want=2 got=%d", n)
	}
	for _, p := range []*fakePeer{b, c} {
		got := recvMessage(t, p.out, time.Second)
		if got.Event != EventIngredientChange {
			t.Fatalf("event: want=%s got=%s", EventIngredientChange, got.Event)
		}
	}
	expectNoMessage(t, a.out)
}

func TestBroadcasterRelayPreservesArrivalOrder(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t), nil)
	bc := NewBroadcaster(reg)
	recipeID := uuid.New()
	a, b := newFakePeer(64), newFakePeer(64)
	reg.Join(recipeID, Session{UserID: uuid.New()}, a)
	reg.Join(recipeID, Session{UserID: uuid.New()}, b)
	drain(b.out)

	for i := 0; i < 20; i++ {
		msg, _ := NewMessage(EventStepChange, map[string]any{"seq": i})
		bc.Relay(recipeID, a.id, msg)
	}
	for i := 0; i < 20; i++ {
		got := recvMessage(t, b.out, time.Second)
		want, _ := NewMessage(EventStepChange, map[string]any{"seq": i})
		if string(got.Data) != string(want.Data) {
			t.Fatalf("message %d: want=%s got=%s", i, want.Data, got.Data)
		}
	}
}

func TestBroadcasterAnnounceReachesEveryMember(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t), nil)
	bc := NewBroadcaster(reg)
	recipeID := uuid.New()
	a, b := newFakePeer(16), newFakePeer(16)
	reg.Join(recipeID, Session{UserID: uuid.New()}, a)
	reg.Join(recipeID, Session{UserID: uuid.New()}, b)
	drain(a.out)
	drain(b.out)

	msg, _ := NewMessage(EventVersionSaved, VersionSavedPayload{Version: 2, SavedBy: "owner"})
	if n := bc.Announce(recipeID, msg); n != 2 {
		t.Fatalf("delivered: want=2 got=%d", n)
	}
	if n := bc.Announce(uuid.New(), msg); n != 0 {
		t.Fatalf("announce to missing room: want=0 got=%d", n)
	}
}

func TestBroadcasterSendToRequiresSharedRoom(t *testing.T) {
	reg := NewRegistry(mustTestLogger(t), nil)
	bc := NewBroadcaster(reg)
	r1, r2 := uuid.New(), uuid.New()
	a, b, outsider := newFakePeer(16), newFakePeer(16), newFakePeer(16)
	reg.Join(r1, Session{UserID: uuid.New()}, a)
	reg.Join(r1, Session{UserID: uuid.New()}, b)
	reg.Join(r2, Session{UserID: uuid.New()}, outsider)
	drain(a.out)
	drain(b.out)
	drain(outsider.out)

	msg, _ := NewMessage(EventSyncData, SyncDataPayload{})
	if !bc.SendTo(r1, a.id, b.id, msg) {
		t.Fatalf("SendTo within room: want=true got=false")
	}
	recvMessage(t, b.out, time.Second)
	expectNoMessage(t, a.out)

	if bc.SendTo(r1, outsider.id, b.id, msg) {
		t.Fatalf("SendTo from outside the room should fail")
	}
	if bc.SendTo(r1, a.id, outsider.id, msg) {
		t.Fatalf("SendTo to a target outside the room should fail")
	}
	if shared, ok := reg.SharedRoom(a.id, b.id); !ok || shared != r1 {
		t.Fatalf("SharedRoom: want=%s got=%s ok=%v", r1, shared, ok)
	}
	if _, ok := reg.SharedRoom(a.id, outsider.id); ok {
		t.Fatalf("SharedRoom across rooms: want=false got=true")
	}
}
