// Package metrics exposes prometheus counters for the protocol engine,
// grounded on runZeroInc-conniver's and runZeroInc-sockstats' use of
// prometheus/client_golang for connection-level instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of counters a session dispatcher updates as frames
// and link-state transitions occur. A nil *Metrics is safe to use (every
// method is a no-op), so wiring it in is optional per instance.
type Metrics struct {
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	Retransmits    prometheus.Counter
	Rejects        prometheus.Counter
	Malformed      prometheus.Counter
	Transitions    *prometheus.CounterVec
}

// New registers and returns a fresh Metrics instance against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ax25term_frames_sent_total",
			Help: "AX.25 frames transmitted, by frame kind.",
		}, []string{"kind"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ax25term_frames_received_total",
			Help: "AX.25 frames received, by frame kind.",
		}, []string{"kind"}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ax25term_retransmits_total",
			Help: "I/SABM(E)/DISC retransmissions due to T1 expiry.",
		}),
		Rejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ax25term_rejects_total",
			Help: "REJ frames sent for out-of-order I-frames.",
		}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ax25term_malformed_frames_total",
			Help: "Inbound frames discarded as malformed.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ax25term_link_transitions_total",
			Help: "Link-state transitions caused by inbound frames, by destination state; transitions from user commands and timers are not counted.",
		}, []string{"state"}),
	}
	reg.MustRegister(m.FramesSent, m.FramesReceived, m.Retransmits, m.Rejects, m.Malformed, m.Transitions)
	return m
}

func (m *Metrics) sentKind(kind string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) recvKind(kind string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(kind).Inc()
}

// Sent records a transmitted frame of the given kind (an ax25.FrameKind
// name such as "I", "RR" or "SABM(E)").
func (m *Metrics) Sent(kind string) { m.sentKind(kind) }

// Received records a received frame of the given kind.
func (m *Metrics) Received(kind string) { m.recvKind(kind) }

// Retransmit records a T1-driven retransmission.
func (m *Metrics) Retransmit() {
	if m == nil {
		return
	}
	m.Retransmits.Inc()
}

// Reject records a REJ sent for an out-of-order I-frame.
func (m *Metrics) Reject() {
	if m == nil {
		return
	}
	m.Rejects.Inc()
}

// MalformedFrame records a discarded, unparseable inbound frame.
func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.Malformed.Inc()
}

// Transition records a link-state transition to the named state.
func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(state).Inc()
}
