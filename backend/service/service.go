package service

import (
	"sync"

	"github.com/adwski/signal-relay/backend/metrics"
	"github.com/adwski/signal-relay/backend/model"
	sw "github.com/adwski/signal-relay/backend/switch"
	"github.com/rs/zerolog"
)

type (
	RoomStore interface {
		GetOrCreateRoom(roomID string) *model.Room
		GetRoom(roomID string) (*model.Room, bool)
		RemoveIfEmpty(roomID string) bool
		Rooms() []model.RoomInfo
		Len() int
	}

	Directory interface {
		Register(peerID, roomID, userID string)
		Lookup(peerID string) (model.Registration, bool)
		Remove(peerID string)
		Len() int
	}

	Switch interface {
		Broadcast(room *model.Room, exclude string, f model.Frame) sw.Delivery
		Send(peer model.Peer, f model.Frame) bool
	}

	// Service dispatches connection events. Room store and directory are
	// owned by it and every access goes through mx, so membership changes
	// and the notifications they cause happen as one step.
	Service struct {
		mx      sync.Mutex
		rooms   RoomStore
		dir     Directory
		sw      Switch
		metrics *metrics.Metrics
		logger  zerolog.Logger
	}

	Config struct {
		RoomStore RoomStore
		Directory Directory
		Switch    Switch
		Metrics   *metrics.Metrics
		Logger    *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		rooms:   cfg.RoomStore,
		dir:     cfg.Directory,
		sw:      cfg.Switch,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

func (svc *Service) OnOpen(peer model.Peer) {
	svc.metrics.PeersConnected.Inc()
	svc.logger.Debug().Str("peerID", peer.ID()).Msg("peer connected")
}

func (svc *Service) OnMessage(peer model.Peer, f model.Frame) {
	env := model.DecodeEnvelope(f)

	svc.mx.Lock()
	defer svc.mx.Unlock()

	switch env.Kind {
	case model.EventPing:
		svc.metrics.Event(string(model.EventPing))
		svc.sw.Send(peer, model.EncodePong())
	case model.EventRegister:
		svc.metrics.Event(string(model.EventRegister))
		svc.register(peer, env.Register)
	default:
		svc.metrics.Event("relay")
		svc.relay(peer, env.Raw)
	}
}

// OnClose must be called exactly once, after the transport knows the
// connection is gone. For a peer that never registered only the connection
// gauge changes.
func (svc *Service) OnClose(peer model.Peer) {
	svc.mx.Lock()
	defer svc.mx.Unlock()

	svc.metrics.PeersConnected.Dec()
	peerID := peer.ID()
	reg, ok := svc.dir.Lookup(peerID)
	if !ok {
		svc.logger.Debug().Str("peerID", peerID).Msg("unregistered peer disconnected")
		return
	}
	svc.leave(peerID, reg)
	svc.dir.Remove(peerID)
	svc.updateGauges()

	svc.logger.Debug().
		Str("peerID", peerID).
		Str("roomID", reg.RoomID).
		Str("userID", reg.UserID).
		Msg("peer disconnected")
}

func (svc *Service) register(peer model.Peer, reg model.Registration) {
	peerID := peer.ID()
	if reg.UserID == "" {
		reg.UserID = peerID
	}
	logger := svc.logger.With().
		Str("peerID", peerID).
		Str("roomID", reg.RoomID).
		Str("userID", reg.UserID).
		Logger()

	if prev, ok := svc.dir.Lookup(peerID); ok {
		if prev == reg {
			logger.Debug().Msg("repeated registration")
			svc.sw.Send(peer, model.EncodeRegistered(reg.RoomID, reg.UserID, peerID))
			return
		}
		// one room per connection: leave the previous one first
		svc.leave(peerID, prev)
	}

	room := svc.rooms.GetOrCreateRoom(reg.RoomID)
	// peer is not a member yet, so it does not hear about itself
	svc.sw.Broadcast(room, "", model.EncodeOpen(reg.RoomID, reg.UserID, peerID))
	room.Members[peerID] = model.Member{Peer: peer, UserID: reg.UserID}
	svc.dir.Register(peerID, reg.RoomID, reg.UserID)
	svc.updateGauges()

	svc.sw.Send(peer, model.EncodeRegistered(reg.RoomID, reg.UserID, peerID))
	logger.Debug().Int("members", len(room.Members)).Msg("peer registered")
}

func (svc *Service) relay(peer model.Peer, f model.Frame) {
	peerID := peer.ID()
	reg, ok := svc.dir.Lookup(peerID)
	if !ok {
		svc.metrics.Drop(metrics.DropUnregistered)
		svc.logger.Debug().Str("peerID", peerID).Msg("payload from unregistered peer dropped")
		return
	}
	room, ok := svc.rooms.GetRoom(reg.RoomID)
	if !ok {
		svc.metrics.Drop(metrics.DropUnknownRoom)
		svc.logger.Error().
			Str("peerID", peerID).
			Str("roomID", reg.RoomID).
			Msg("registered peer points to unknown room")
		return
	}
	svc.sw.Broadcast(room, peerID, f)
}

// leave removes peerID from its room, tells the rest, and drops the room if
// it became empty. The directory entry is left to the caller.
func (svc *Service) leave(peerID string, reg model.Registration) {
	room, ok := svc.rooms.GetRoom(reg.RoomID)
	if !ok {
		svc.logger.Error().
			Str("peerID", peerID).
			Str("roomID", reg.RoomID).
			Msg("registered peer points to unknown room")
		return
	}
	delete(room.Members, peerID)
	svc.sw.Broadcast(room, "", model.EncodeClose(reg.RoomID, reg.UserID, peerID))
	if svc.rooms.RemoveIfEmpty(reg.RoomID) {
		svc.logger.Debug().Str("roomID", reg.RoomID).Msg("room removed")
	}
}

func (svc *Service) updateGauges() {
	svc.metrics.RoomsActive.Set(float64(svc.rooms.Len()))
	svc.metrics.PeersRegistered.Set(float64(svc.dir.Len()))
}

func (svc *Service) Rooms() []model.RoomInfo {
	svc.mx.Lock()
	defer svc.mx.Unlock()
	return svc.rooms.Rooms()
}

func (svc *Service) Room(roomID string) (model.RoomInfo, bool) {
	svc.mx.Lock()
	defer svc.mx.Unlock()
	room, ok := svc.rooms.GetRoom(roomID)
	if !ok {
		return model.RoomInfo{}, false
	}
	return room.Info(), true
}
