package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Forward outcomes recorded by RecordForward.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
	StatusNotReady = "not_ready"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Bridge metrics
	forwardTotal    *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec

	// Transport metrics
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	publishBytes    *prometheus.HistogramVec

	// Subscriber metrics
	receivedTotal  *prometheus.CounterVec
	sequenceGaps   *prometheus.CounterVec
	missedMessages *prometheus.CounterVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		forwardTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_bridge_forward_total",
				Help: "Total number of forwarded events",
			},
			[]string{"kind", "status"}, // status: success, rejected, not_ready
		),

		forwardDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notify_bridge_forward_duration_seconds",
				Help:    "Time spent forwarding an event pair",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"kind"},
		),

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_transport_publish_total",
				Help: "Total number of messages handed to the transport",
			},
			[]string{"topic", "status"}, // status: success, error
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notify_transport_publish_duration_seconds",
				Help:    "Time spent sending a single message",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"topic"},
		),

		publishBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notify_transport_publish_bytes",
				Help:    "Size of published message bodies",
				Buckets: prometheus.ExponentialBuckets(64, 4, 10),
			},
			[]string{"topic"},
		),

		receivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_subscriber_received_total",
				Help: "Total number of notifications received",
			},
			[]string{"topic"},
		),

		sequenceGaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_subscriber_sequence_gaps_total",
				Help: "Number of times a topic sequence skipped ahead",
			},
			[]string{"topic"},
		),

		missedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_subscriber_missed_messages_total",
				Help: "Messages skipped according to topic sequence numbers",
			},
			[]string{"topic"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "notify_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "endpoint"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "notify_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.forwardTotal,
		r.forwardDuration,
		r.publishTotal,
		r.publishDuration,
		r.publishBytes,
		r.receivedTotal,
		r.sequenceGaps,
		r.missedMessages,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordForward records one bridge forward call. kind is "transaction"
// or "block".
func (r *Registry) RecordForward(kind, status string, duration time.Duration) {
	r.forwardTotal.WithLabelValues(kind, status).Inc()
	r.forwardDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordPublish records a single transport send
func (r *Registry) RecordPublish(topic string, size int, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	r.publishTotal.WithLabelValues(topic, status).Inc()
	r.publishDuration.WithLabelValues(topic).Observe(duration.Seconds())
	if err == nil {
		r.publishBytes.WithLabelValues(topic).Observe(float64(size))
	}
}

// RecordReceived records a notification seen by a subscriber. missed is
// the number of messages the sequence number says were skipped.
func (r *Registry) RecordReceived(topic string, missed uint32) {
	r.receivedTotal.WithLabelValues(topic).Inc()
	if missed > 0 {
		r.sequenceGaps.WithLabelValues(topic).Inc()
		r.missedMessages.WithLabelValues(topic).Add(float64(missed))
	}
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, endpoint string) {
	r.systemInfo.WithLabelValues(version, endpoint).Set(1)
}
