package _switch

import (
	"errors"
	"testing"

	"github.com/adwski/signal-relay/backend/metrics"
	"github.com/adwski/signal-relay/backend/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type stubPeer struct {
	id  string
	err error
	got []model.Frame
}

func (p *stubPeer) ID() string { return p.id }

func (p *stubPeer) Send(f model.Frame) error {
	if p.err != nil {
		return p.err
	}
	p.got = append(p.got, f)
	return nil
}

func newTestSwitch() (*Switch, *metrics.Metrics) {
	logger := zerolog.Nop()
	m := metrics.New()
	return NewSwitch(&logger, m), m
}

func TestSwitch_BroadcastExcludesSender(t *testing.T) {
	sw, m := newTestSwitch()
	a, b, c := &stubPeer{id: "a"}, &stubPeer{id: "b"}, &stubPeer{id: "c"}
	room := model.NewRoom("r")
	for _, p := range []*stubPeer{a, b, c} {
		room.Members[p.id] = model.Member{Peer: p, UserID: "u-" + p.id}
	}

	d := sw.Broadcast(room, "a", model.TextFrame([]byte("hi")))
	if d.Sent != 2 || d.Dropped != 0 {
		t.Fatalf("Delivery=%+v, want 2 sent", d)
	}
	if len(a.got) != 0 {
		t.Fatalf("sender got %d frames, want 0", len(a.got))
	}
	if len(b.got) != 1 || len(c.got) != 1 {
		t.Fatalf("b got %d, c got %d, want 1 each", len(b.got), len(c.got))
	}
	if got := testutil.ToFloat64(m.FramesRelayed); got != 2 {
		t.Fatalf("frames_relayed=%v, want 2", got)
	}
}

func TestSwitch_BroadcastWithoutExclusion(t *testing.T) {
	sw, _ := newTestSwitch()
	a, b := &stubPeer{id: "a"}, &stubPeer{id: "b"}
	room := model.NewRoom("r")
	room.Members["a"] = model.Member{Peer: a}
	room.Members["b"] = model.Member{Peer: b}

	if d := sw.Broadcast(room, "", model.TextFrame([]byte("x"))); d.Sent != 2 {
		t.Fatalf("Sent=%d, want 2", d.Sent)
	}
}

func TestSwitch_FailedSendDoesNotAbortOrEvict(t *testing.T) {
	sw, m := newTestSwitch()
	dead := &stubPeer{id: "dead", err: model.ErrPeerClosed}
	full := &stubPeer{id: "full", err: model.ErrSendQueueFull}
	odd := &stubPeer{id: "odd", err: errors.New("boom")}
	live := &stubPeer{id: "live"}
	room := model.NewRoom("r")
	for _, p := range []*stubPeer{dead, full, odd, live} {
		room.Members[p.id] = model.Member{Peer: p}
	}

	d := sw.Broadcast(room, "", model.BinaryFrame([]byte{1, 2, 3}))
	if d.Sent != 1 || d.Dropped != 3 {
		t.Fatalf("Delivery=%+v, want 1 sent 3 dropped", d)
	}
	if len(live.got) != 1 {
		t.Fatalf("live peer got %d frames, want 1", len(live.got))
	}
	if len(room.Members) != 4 {
		t.Fatalf("members=%d after failed sends, want 4", len(room.Members))
	}
	for reason, want := range map[string]float64{
		metrics.DropPeerClosed: 1,
		metrics.DropQueueFull:  1,
		metrics.DropSendFailed: 1,
	} {
		if got := testutil.ToFloat64(m.FramesDropped.WithLabelValues(reason)); got != want {
			t.Fatalf("dropped{%s}=%v, want %v", reason, got, want)
		}
	}
}
