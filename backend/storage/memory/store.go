package memory

import (
	"sort"

	"github.com/adwski/signal-relay/backend/model"
)

// RoomStore keeps every non-empty room by id.
// It is not safe for concurrent use; the dispatcher serializes all access.
type RoomStore struct {
	db map[string]*model.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		db: make(map[string]*model.Room),
	}
}

func (rs *RoomStore) GetOrCreateRoom(roomID string) *model.Room {
	room, ok := rs.db[roomID]
	if !ok {
		room = model.NewRoom(roomID)
		rs.db[roomID] = room
	}
	return room
}

func (rs *RoomStore) GetRoom(roomID string) (*model.Room, bool) {
	room, ok := rs.db[roomID]
	return room, ok
}

// RemoveIfEmpty drops the room once it has no members and reports whether it did.
func (rs *RoomStore) RemoveIfEmpty(roomID string) bool {
	room, ok := rs.db[roomID]
	if !ok || len(room.Members) > 0 {
		return false
	}
	delete(rs.db, roomID)
	return true
}

func (rs *RoomStore) Len() int {
	return len(rs.db)
}

func (rs *RoomStore) Rooms() []model.RoomInfo {
	out := make([]model.RoomInfo, 0, len(rs.db))
	for _, room := range rs.db {
		out = append(out, room.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
