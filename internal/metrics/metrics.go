// Package metrics provides Prometheus metrics for echoping.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "echoping"
)

// Invalid reply reasons used as label values.
const (
	ReasonTooShort  = "too_short"
	ReasonWrongType = "wrong_type"
	ReasonForeignID = "identifier_mismatch"
	ReasonStale     = "stale_sequence"
	ReasonMalformed = "malformed"
)

// Metrics contains all Prometheus metrics for a ping session.
type Metrics struct {
	PacketsSent     prometheus.Counter
	PacketsReceived prometheus.Counter
	SendErrors      prometheus.Counter
	ReceiveErrors   prometheus.Counter
	ReplyTimeouts   prometheus.Counter
	InvalidReplies  *prometheus.CounterVec

	RTT      prometheus.Histogram
	LastRTT  prometheus.Gauge
	Sequence prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Total echo requests transmitted",
		}),
		PacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total echo replies matched to a request",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Total echo requests that failed to transmit",
		}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receive_errors_total",
			Help:      "Total socket receive failures",
		}),
		ReplyTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_timeouts_total",
			Help:      "Total echo requests with no reply inside the wait window",
		}),
		InvalidReplies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_replies_total",
			Help:      "Total inbound datagrams rejected by reason",
		}, []string{"reason"}),
		RTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_seconds",
			Help:      "Histogram of echo round-trip time",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		LastRTT: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_rtt_seconds",
			Help:      "Round-trip time of the most recent reply",
		}),
		Sequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequence",
			Help:      "Sequence number of the most recent transmitted request",
		}),
	}
}

// RecordSent records a transmitted request.
func (m *Metrics) RecordSent(seq uint16) {
	m.PacketsSent.Inc()
	m.Sequence.Set(float64(seq))
}

// RecordReply records a matched reply.
func (m *Metrics) RecordReply(rtt time.Duration) {
	m.PacketsReceived.Inc()
	m.RTT.Observe(rtt.Seconds())
	m.LastRTT.Set(rtt.Seconds())
}

// RecordSendError records a failed transmit.
func (m *Metrics) RecordSendError() {
	m.SendErrors.Inc()
}

// RecordReceiveError records a socket receive failure.
func (m *Metrics) RecordReceiveError() {
	m.ReceiveErrors.Inc()
}

// RecordTimeout records a request that got no reply.
func (m *Metrics) RecordTimeout() {
	m.ReplyTimeouts.Inc()
}

// RecordInvalid records a rejected datagram.
func (m *Metrics) RecordInvalid(reason string) {
	m.InvalidReplies.WithLabelValues(reason).Inc()
}
