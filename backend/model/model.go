package model

import (
	"errors"
	"sort"
)

var (
	ErrPeerClosed     = errors.New("peer is closed")
	ErrSendQueueFull  = errors.New("peer send queue is full")
	ErrMalformedFrame = errors.New("malformed frame")
)

type FrameType int

const (
	FrameText FrameType = iota + 1
	FrameBinary
)

func (ft FrameType) String() string {
	switch ft {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one transport message. Relayed frames keep both Type and Data untouched.
type Frame struct {
	Type FrameType
	Data []byte
}

func TextFrame(b []byte) Frame {
	return Frame{Type: FrameText, Data: b}
}

func BinaryFrame(b []byte) Frame {
	return Frame{Type: FrameBinary, Data: b}
}

// Peer is a live connection owned by the transport.
// Send must not block; the relay never closes a peer itself.
type Peer interface {
	ID() string
	Send(Frame) error
}

type Member struct {
	Peer   Peer
	UserID string
}

type Room struct {
	ID      string
	Members map[string]Member // keyed by peer id
}

func NewRoom(roomID string) *Room {
	return &Room{
		ID:      roomID,
		Members: make(map[string]Member),
	}
}

// Registration is what the connection directory knows about a registered peer.
type Registration struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// Participant and RoomInfo use the same field names as the websocket
// notifications, so a peer id reads the same on both surfaces.
type Participant struct {
	ID     string `json:"id"`
	PeerID string `json:"peerId"`
}

type RoomInfo struct {
	ID      string        `json:"roomId"`
	Members []Participant `json:"members"`
}

func (r *Room) Info() RoomInfo {
	info := RoomInfo{
		ID:      r.ID,
		Members: make([]Participant, 0, len(r.Members)),
	}
	for peerID, m := range r.Members {
		info.Members = append(info.Members, Participant{ID: m.UserID, PeerID: peerID})
	}
	sort.Slice(info.Members, func(i, j int) bool {
		return info.Members[i].PeerID < info.Members[j].PeerID
	})
	return info
}
