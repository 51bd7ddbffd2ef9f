package memory

import "github.com/adwski/signal-relay/backend/model"

// Directory maps registered peer ids to their room and user.
// Like RoomStore it relies on the caller for synchronization.
type Directory struct {
	db map[string]model.Registration
}

func NewDirectory() *Directory {
	return &Directory{
		db: make(map[string]model.Registration),
	}
}

// Register overwrites any previous entry for peerID.
func (d *Directory) Register(peerID, roomID, userID string) {
	d.db[peerID] = model.Registration{RoomID: roomID, UserID: userID}
}

func (d *Directory) Lookup(peerID string) (model.Registration, bool) {
	reg, ok := d.db[peerID]
	return reg, ok
}

func (d *Directory) Remove(peerID string) {
	delete(d.db, peerID)
}

func (d *Directory) Len() int {
	return len(d.db)
}
