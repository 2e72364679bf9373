package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records queue activity. The coordinator calls it from a single goroutine.
type Metrics interface {
	EnvelopeReceived(kind string)
	Relayed(kind string, recipients int)
	DuplicateDropped()
	MembersChanged(count int)
	MemberDisconnected(reason string)
	HandshakeRejected(reason string)
	FrameError(reason string)
}

type nopMetrics struct{}

func NewNopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) EnvelopeReceived(string)   {}
func (nopMetrics) Relayed(string, int)       {}
func (nopMetrics) DuplicateDropped()         {}
func (nopMetrics) MembersChanged(int)        {}
func (nopMetrics) MemberDisconnected(string) {}
func (nopMetrics) HandshakeRejected(string)  {}
func (nopMetrics) FrameError(string)         {}

type promMetrics struct {
	received    *prometheus.CounterVec
	relayed     *prometheus.CounterVec
	duplicates  prometheus.Counter
	members     prometheus.Gauge
	disconnects *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	frameErrors *prometheus.CounterVec
}

// NewPrometheusMetrics registers the queue collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	m := &promMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipqueue_envelopes_received_total",
			Help: "Envelopes received from peers",
		}, []string{"kind"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipqueue_envelopes_relayed_total",
			Help: "Envelopes enqueued to peers by fan-out",
		}, []string{"kind"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipqueue_duplicates_dropped_total",
			Help: "Clipboard envelopes dropped because their message id was already seen",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipqueue_members",
			Help: "Current queue members including self",
		}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipqueue_member_disconnects_total",
			Help: "Members removed from the queue",
		}, []string{"reason"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipqueue_handshakes_rejected_total",
			Help: "Inbound handshakes refused by the host",
		}, []string{"reason"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipqueue_frame_errors_total",
			Help: "Frames that could not be read or decoded",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.received,
		m.relayed,
		m.duplicates,
		m.members,
		m.disconnects,
		m.rejected,
		m.frameErrors,
	)
	return m
}

func (m *promMetrics) EnvelopeReceived(kind string) { m.received.WithLabelValues(kind).Inc() }

func (m *promMetrics) Relayed(kind string, recipients int) {
	m.relayed.WithLabelValues(kind).Add(float64(recipients))
}

func (m *promMetrics) DuplicateDropped()                { m.duplicates.Inc() }
func (m *promMetrics) MembersChanged(count int)         { m.members.Set(float64(count)) }
func (m *promMetrics) MemberDisconnected(reason string) { m.disconnects.WithLabelValues(reason).Inc() }
func (m *promMetrics) HandshakeRejected(reason string)  { m.rejected.WithLabelValues(reason).Inc() }
func (m *promMetrics) FrameError(reason string)         { m.frameErrors.WithLabelValues(reason).Inc() }
