package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the basic namespace where all metrics are defined under.
	Namespace = "farmer"
)

// NewCounter creates a Counter metrics under the global namespace.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewGauge creates a Gauge metrics under the global namespace.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewHistogram creates a Histogram metrics under the global namespace.
func NewHistogram(name, subsystem, help string, labels []string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewHistogramWithBuckets creates a Histogram metrics with custom buckets.
func NewHistogramWithBuckets(name, subsystem, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}, labels)
}

// proofLatency measures the time between a signage point arriving and a harvester closing
// its part of the proof window. Labeled by harvester.
var proofLatency = NewHistogramWithBuckets(
	"proof_latency_seconds",
	"",
	"Time from signage point receipt to harvester report",
	[]string{"source"},
	prometheus.ExponentialBuckets(0.01, 2, 12),
)

// ReportProofLatency records the report latency of a harvester.
func ReportProofLatency(source string, latency time.Duration) {
	proofLatency.WithLabelValues(source).Observe(max(latency.Seconds(), 0))
}

var version = NewGauge("version", "", "Software version of the running process", []string{"version"})

// ReportVersion exports the running version as a constant gauge.
func ReportVersion(v string) {
	version.WithLabelValues(v).Set(1)
}
