package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signal"

// Drop reasons.
const (
	DropUnregistered = "unregistered"
	DropUnknownRoom  = "unknown_room"
	DropPeerClosed   = "peer_closed"
	DropQueueFull    = "queue_full"
	DropSendFailed   = "send_failed"
)

// Metrics holds relay collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	PeersConnected  prometheus.Gauge
	PeersRegistered prometheus.Gauge
	RoomsActive     prometheus.Gauge
	Events          *prometheus.CounterVec
	FramesRelayed   prometheus.Counter
	FramesDropped   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_connected",
			Help:      "Open relay connections.",
		}),
		PeersRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_registered",
			Help:      "Connections registered into a room.",
		}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms with at least one member.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events by kind.",
		}, []string{"event"}),
		FramesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_relayed_total",
			Help:      "Frames accepted by a peer send queue.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames that were not delivered, by reason.",
		}, []string{"reason"}),
	}
	m.reg.MustRegister(
		m.PeersConnected,
		m.PeersRegistered,
		m.RoomsActive,
		m.Events,
		m.FramesRelayed,
		m.FramesDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Event(kind string) {
	m.Events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Drop(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

// Handler exposes the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
