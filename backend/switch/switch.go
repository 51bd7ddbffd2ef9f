package _switch

import (
	"errors"

	"github.com/adwski/signal-relay/backend/metrics"
	"github.com/adwski/signal-relay/backend/model"
	"github.com/rs/zerolog"
)

// Delivery reports how a fan-out went.
type Delivery struct {
	Sent    int
	Dropped int
}

// Switch delivers frames to peer handles. A failed send is logged and
// counted but never evicts a member: only a close event does that.
type Switch struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewSwitch(logger *zerolog.Logger, m *metrics.Metrics) *Switch {
	return &Switch{
		logger:  logger.With().Str("component", "switch").Logger(),
		metrics: m,
	}
}

// Broadcast sends f to every member of room except exclude (may be empty).
func (sw *Switch) Broadcast(room *model.Room, exclude string, f model.Frame) Delivery {
	var d Delivery
	for peerID, member := range room.Members {
		if peerID == exclude {
			continue
		}
		if sw.Send(member.Peer, f) {
			d.Sent++
		} else {
			d.Dropped++
		}
	}
	sw.logger.Trace().
		Str("roomID", room.ID).
		Str("exclude", exclude).
		Str("frame", f.Type.String()).
		Int("sent", d.Sent).
		Int("dropped", d.Dropped).
		Msg("broadcast done")
	return d
}

func (sw *Switch) Send(peer model.Peer, f model.Frame) bool {
	err := peer.Send(f)
	if err == nil {
		sw.metrics.FramesRelayed.Inc()
		return true
	}

	reason := metrics.DropSendFailed
	switch {
	case errors.Is(err, model.ErrPeerClosed):
		reason = metrics.DropPeerClosed
	case errors.Is(err, model.ErrSendQueueFull):
		reason = metrics.DropQueueFull
	}
	sw.metrics.Drop(reason)
	sw.logger.Debug().Err(err).
		Str("dst", peer.ID()).
		Str("reason", reason).
		Msg("frame dropped")
	return false
}
