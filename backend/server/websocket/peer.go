package websocket

import (
	"sync"

	"github.com/adwski/signal-relay/backend/model"
)

// peer is the relay-facing side of one websocket connection.
// Send only enqueues; the connection's sender goroutine does the writing.
type peer struct {
	id        string
	tx        chan model.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(id string, queueSize int) *peer {
	return &peer{
		id:   id,
		tx:   make(chan model.Frame, queueSize),
		done: make(chan struct{}),
	}
}

func (p *peer) ID() string {
	return p.id
}

func (p *peer) Send(f model.Frame) error {
	select {
	case <-p.done:
		return model.ErrPeerClosed
	default:
	}
	select {
	case p.tx <- f:
		return nil
	default:
		return model.ErrSendQueueFull
	}
}

// close makes every following Send fail. tx stays open so a concurrent
// Send can never panic.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}
