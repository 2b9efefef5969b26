package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the timecode reader.
// Every method is safe on a nil *Metrics, so components can run
// uninstrumented.
type Metrics struct {
	PacketsReceived   prometheus.Counter
	PacketsDropped    prometheus.Counter
	SamplesPublished  *prometheus.CounterVec
	FreewheelEpisodes prometheus.Counter
	HeartbeatProbes   prometheus.Counter
	TickFailures      prometheus.Counter
	SubscriberDrops   prometheus.Counter
	JournalWrites     prometheus.Counter
	JournalErrors     prometheus.Counter
	RelayErrors       prometheus.Counter
	TransportState    prometheus.Gauge
	Framerate         prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_packets_received_total",
			Help: "Total number of UDP datagrams received",
		}),
		PacketsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_packets_dropped_total",
			Help: "Total number of datagrams discarded as not MTC full-frame messages",
		}),
		SamplesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mtc_samples_published_total",
			Help: "Total number of timecode samples published, by transport state",
		}, []string{"transport"}),
		FreewheelEpisodes: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_freewheel_episodes_total",
			Help: "Total number of times the reader started freewheeling",
		}),
		HeartbeatProbes: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_heartbeat_probes_total",
			Help: "Total number of heartbeat probes that re-published a stopped timecode",
		}),
		TickFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_tick_failures_total",
			Help: "Total number of ticks discarded after a processing failure",
		}),
		SubscriberDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_subscriber_drops_total",
			Help: "Total number of events dropped because a subscriber was full",
		}),
		JournalWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_journal_writes_total",
			Help: "Total number of samples written to the journal",
		}),
		JournalErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_journal_errors_total",
			Help: "Total number of failed journal flushes",
		}),
		RelayErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mtc_relay_errors_total",
			Help: "Total number of frames the relay failed to send",
		}),
		TransportState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mtc_transport_state",
			Help: "Current transport state (0=stopped, 1=running, 2=freewheel)",
		}),
		Framerate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mtc_framerate",
			Help: "Current integer frame rate divisor",
		}),
	}
}

func (m *Metrics) PacketReceived() {
	if m != nil {
		m.PacketsReceived.Inc()
	}
}

func (m *Metrics) PacketDropped() {
	if m != nil {
		m.PacketsDropped.Inc()
	}
}

// SamplePublished counts a sample and records the transport it carried
func (m *Metrics) SamplePublished(transport string, state int) {
	if m != nil {
		m.SamplesPublished.WithLabelValues(transport).Inc()
		m.TransportState.Set(float64(state))
	}
}

func (m *Metrics) FreewheelStarted() {
	if m != nil {
		m.FreewheelEpisodes.Inc()
	}
}

func (m *Metrics) HeartbeatProbed() {
	if m != nil {
		m.HeartbeatProbes.Inc()
	}
}

func (m *Metrics) TickFailed() {
	if m != nil {
		m.TickFailures.Inc()
	}
}

func (m *Metrics) SubscriberDropped() {
	if m != nil {
		m.SubscriberDrops.Inc()
	}
}

func (m *Metrics) JournalWritten(n int) {
	if m != nil {
		m.JournalWrites.Add(float64(n))
	}
}

func (m *Metrics) JournalFailed() {
	if m != nil {
		m.JournalErrors.Inc()
	}
}

func (m *Metrics) RelayFailed() {
	if m != nil {
		m.RelayErrors.Inc()
	}
}

func (m *Metrics) SetFramerate(fps int) {
	if m != nil {
		m.Framerate.Set(float64(fps))
	}
}
