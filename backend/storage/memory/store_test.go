package memory

import (
	"testing"

	"github.com/adwski/signal-relay/backend/model"
)

func TestRoomStore_GetOrCreateIsIdempotent(t *testing.T) {
	rs := NewRoomStore()

	r1 := rs.GetOrCreateRoom("r")
	r2 := rs.GetOrCreateRoom("r")
	if r1 != r2 {
		t.Fatalf("GetOrCreateRoom returned different rooms for the same id")
	}
	if got := rs.Len(); got != 1 {
		t.Fatalf("Len=%d, want 1", got)
	}
	if r1.ID != "r" || len(r1.Members) != 0 {
		t.Fatalf("new room=%+v, want empty room r", r1)
	}
}

func TestRoomStore_GetRoomAbsent(t *testing.T) {
	rs := NewRoomStore()
	if _, ok := rs.GetRoom("missing"); ok {
		t.Fatalf("GetRoom(missing) ok=true, want false")
	}
}

func TestRoomStore_RemoveIfEmpty(t *testing.T) {
	rs := NewRoomStore()
	room := rs.GetOrCreateRoom("r")
	room.Members["p1"] = model.Member{UserID: "u1"}

	if rs.RemoveIfEmpty("r") {
		t.Fatalf("RemoveIfEmpty removed a room with members")
	}
	if _, ok := rs.GetRoom("r"); !ok {
		t.Fatalf("room disappeared while it still had members")
	}

	delete(room.Members, "p1")
	if !rs.RemoveIfEmpty("r") {
		t.Fatalf("RemoveIfEmpty kept an empty room")
	}
	if _, ok := rs.GetRoom("r"); ok {
		t.Fatalf("empty room is still registered")
	}
	if rs.RemoveIfEmpty("r") {
		t.Fatalf("RemoveIfEmpty on absent room returned true")
	}

	fresh := rs.GetOrCreateRoom("r")
	if fresh == room || len(fresh.Members) != 0 {
		t.Fatalf("re-created room is not fresh: %+v", fresh)
	}
}

func TestRoomStore_RoomsSnapshot(t *testing.T) {
	rs := NewRoomStore()
	rs.GetOrCreateRoom("b").Members["p2"] = model.Member{UserID: "u2"}
	rs.GetOrCreateRoom("a").Members["p1"] = model.Member{UserID: "u1"}

	rooms := rs.Rooms()
	if len(rooms) != 2 {
		t.Fatalf("len(Rooms)=%d, want 2", len(rooms))
	}
	if rooms[0].ID != "a" || rooms[1].ID != "b" {
		t.Fatalf("Rooms not sorted: %+v", rooms)
	}
	if len(rooms[0].Members) != 1 || rooms[0].Members[0] != (model.Participant{ID: "u1", PeerID: "p1"}) {
		t.Fatalf("Rooms[0].Members=%+v", rooms[0].Members)
	}
}

func TestDirectory(t *testing.T) {
	d := NewDirectory()
	if _, ok := d.Lookup("p"); ok {
		t.Fatalf("Lookup on empty directory ok=true")
	}

	d.Register("p", "r1", "u1")
	reg, ok := d.Lookup("p")
	if !ok || reg != (model.Registration{RoomID: "r1", UserID: "u1"}) {
		t.Fatalf("Lookup=%+v,%v, want r1/u1", reg, ok)
	}

	d.Register("p", "r2", "u2")
	reg, _ = d.Lookup("p")
	if reg.RoomID != "r2" || reg.UserID != "u2" {
		t.Fatalf("re-register did not overwrite: %+v", reg)
	}
	if got := d.Len(); got != 1 {
		t.Fatalf("Len=%d, want 1", got)
	}

	d.Remove("p")
	if _, ok := d.Lookup("p"); ok {
		t.Fatalf("entry survived Remove")
	}
	d.Remove("p")
}
