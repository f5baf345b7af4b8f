// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics interface used by the engine and the HTTP layer.
type Recorder interface {
	RecordDecision(outcome string)
	RecordMatch(matched bool)
	RecordSyncFailure(operation string)
	RecordEnrollment(result string)
	RecordExtractLatency(d time.Duration)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	decisions      *prometheus.CounterVec
	matches        *prometheus.CounterVec
	syncFailures   *prometheus.CounterVec
	enrollments    *prometheus.CounterVec
	extractLatency prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visagium_attendance_decisions_total",
			Help: "Attendance decisions by outcome",
		}, []string{"outcome"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visagium_matches_total",
			Help: "Recognized faces by match result",
		}, []string{"result"}),
		syncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visagium_sync_failures_total",
			Help: "Failed remote store calls by operation",
		}, []string{"operation"}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "visagium_enrollments_total",
			Help: "Finished registrations by terminal state",
		}, []string{"result"}),
		extractLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "visagium_extract_latency_seconds",
			Help:    "Feature extraction latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.decisions,
		c.matches,
		c.syncFailures,
		c.enrollments,
		c.extractLatency,
	)

	return c
}

func (c *Collector) RecordDecision(outcome string) {
	c.decisions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordMatch(matched bool) {
	result := "unknown"
	if matched {
		result = "matched"
	}
	c.matches.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSyncFailure(operation string) {
	c.syncFailures.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordEnrollment(result string) {
	c.enrollments.WithLabelValues(result).Inc()
}

func (c *Collector) RecordExtractLatency(d time.Duration) {
	c.extractLatency.Observe(d.Seconds())
}

// Nop discards every metric.
type Nop struct{}

func (Nop) RecordDecision(string)              {}
func (Nop) RecordMatch(bool)                   {}
func (Nop) RecordSyncFailure(string)           {}
func (Nop) RecordEnrollment(string)            {}
func (Nop) RecordExtractLatency(time.Duration) {}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
