package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

type EventKind string

// Inbound control events.
const (
	EventPing     EventKind = "ping"
	EventRegister EventKind = "register"
)

// Outbound notifications.
const (
	EventPong       EventKind = "pong"
	EventRegistered EventKind = "registered"
	EventOpen       EventKind = "open"
	EventClose      EventKind = "close"
)

// EventOpaque marks anything that is not a known inbound control event.
// It is never put on the wire.
const EventOpaque EventKind = ""

var errEmptyRoomID = errors.New("empty roomId")

// Envelope is an inbound frame decoded once at the transport boundary.
// Register is set only for EventRegister; Raw always holds the original frame.
type Envelope struct {
	Kind     EventKind
	Register Registration
	Raw      Frame
}

type wireEnvelope struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope never fails: frames that are not well-formed control events
// come back as EventOpaque and get relayed as they are.
func DecodeEnvelope(f Frame) Envelope {
	env := Envelope{Kind: EventOpaque, Raw: f}
	if f.Type != FrameText {
		return env
	}

	var w wireEnvelope
	if err := json.Unmarshal(f.Data, &w); err != nil {
		return env
	}
	switch w.Event {
	case EventPing:
		env.Kind = EventPing
	case EventRegister:
		reg, err := decodeRegistration(w.Data)
		if err != nil {
			return env
		}
		env.Kind = EventRegister
		env.Register = reg
	}
	return env
}

// decodeRegistration accepts data either as an object or as a string
// holding the JSON-encoded object.
func decodeRegistration(data json.RawMessage) (Registration, error) {
	var reg Registration
	if len(data) == 0 {
		return reg, fmt.Errorf("%w: register without data", ErrMalformedFrame)
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return reg, errors.Join(ErrMalformedFrame, err)
		}
		data = json.RawMessage(inner)
	}
	if err := json.Unmarshal(data, &reg); err != nil {
		return reg, errors.Join(ErrMalformedFrame, err)
	}
	if reg.RoomID == "" {
		return reg, errors.Join(ErrMalformedFrame, errEmptyRoomID)
	}
	return reg, nil
}

type notice struct {
	RoomID string `json:"roomId"`
	Data   any    `json:"data"`
}

type memberRef struct {
	ID     string `json:"id"`
	PeerID string `json:"peerId"`
}

type registeredData struct {
	RoomID string `json:"roomId"`
	ID     string `json:"id"`
	PeerID string `json:"peerId"`
}

func EncodePong() Frame {
	return mustEncode(EventPong, "pong")
}

func EncodeRegistered(roomID, userID, peerID string) Frame {
	return mustEncode(EventRegistered, registeredData{RoomID: roomID, ID: userID, PeerID: peerID})
}

// EncodeOpen announces a member that joined roomID.
func EncodeOpen(roomID, userID, peerID string) Frame {
	return mustEncode(EventOpen, notice{
		RoomID: roomID,
		Data:   []memberRef{{ID: userID, PeerID: peerID}},
	})
}

// EncodeClose announces a member that left roomID.
func EncodeClose(roomID, userID, peerID string) Frame {
	return mustEncode(EventClose, notice{
		RoomID: roomID,
		Data:   memberRef{ID: userID, PeerID: peerID},
	})
}

// mustEncode only ever sees the fixed payload types above, which always marshal.
func mustEncode(kind EventKind, data any) Frame {
	b, err := json.Marshal(struct {
		Event EventKind `json:"event"`
		Data  any       `json:"data"`
	}{kind, data})
	if err != nil {
		panic(fmt.Sprintf("encode %s event: %v", kind, err))
	}
	return TextFrame(b)
}
