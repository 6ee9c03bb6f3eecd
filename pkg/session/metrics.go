package session

import (
	"github.com/backkem/citp/pkg/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a Session or Host. A nil
// *Metrics records nothing.
type Metrics struct {
	state        prometheus.Gauge
	received     *prometheus.CounterVec
	sent         *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	frames       *prometheus.CounterVec
	dials        *prometheus.CounterVec
	peers        prometheus.Gauge
}

// NewMetrics registers the collectors with reg under the "citp" namespace.
// subsystem keeps a Session and a Host apart when they share a registry.
func NewMetrics(reg prometheus.Registerer, subsystem string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "citp",
			Subsystem: subsystem,
			Name:      "state",
			Help:      "Current session state (0 Init, 1 Discover, 2 Request, 3 Stream)",
		}),
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citp",
			Subsystem: subsystem,
			Name:      "messages_received_total",
			Help:      "Decoded messages by transport, layer and type",
		}, []string{"transport", "layer", "type"}),
		sent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citp",
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Sent messages by transport, layer and type",
		}, []string{"transport", "layer", "type"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citp",
			Subsystem: subsystem,
			Name:      "decode_errors_total",
			Help:      "Messages that could not be decoded",
		}, []string{"transport"}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citp",
			Subsystem: subsystem,
			Name:      "laser_frames_total",
			Help:      "Laser feed frames sent or received, by feed",
		}, []string{"feed"}),
		dials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citp",
			Subsystem: subsystem,
			Name:      "dials_total",
			Help:      "TCP connection attempts by result",
		}, []string{"result"}),
		peers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "citp",
			Subsystem: subsystem,
			Name:      "connected_peers",
			Help:      "Peers with an open TCP connection",
		}),
	}
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

// unknownLabel replaces tags that did not decode to a registered message.
// Peers choose those freely, so they must not become label values.
const unknownLabel = "unknown"

// frameLabelUnidentified counts laser frames from source keys no connected
// peer has claimed.
const frameLabelUnidentified = "unidentified"

func payloadLabels(p message.Payload) (layer, typ string) {
	if u, ok := p.(*message.Unknown); ok {
		if u.Bare {
			return unknownLabel, unknownLabel
		}
		return u.LayerID.Cookie.String(), unknownLabel
	}
	return p.Layer().Cookie.String(), p.ContentType().String()
}

func (m *Metrics) messageReceived(transport string, msg *message.Message) {
	if m != nil {
		layer, typ := payloadLabels(msg.Payload)
		m.received.WithLabelValues(transport, layer, typ).Inc()
	}
}

func (m *Metrics) messageSent(transport string, p message.Payload) {
	if m != nil {
		layer, typ := payloadLabels(p)
		m.sent.WithLabelValues(transport, layer, typ).Inc()
	}
}

func (m *Metrics) decodeError(transport string) {
	if m != nil {
		m.decodeErrors.WithLabelValues(transport).Inc()
	}
}

func (m *Metrics) frame(feed string) {
	if m != nil {
		m.frames.WithLabelValues(feed).Inc()
	}
}

func (m *Metrics) dial(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.dials.WithLabelValues("error").Inc()
		return
	}
	m.dials.WithLabelValues("ok").Inc()
}

func (m *Metrics) setPeers(n int) {
	if m != nil {
		m.peers.Set(float64(n))
	}
}
