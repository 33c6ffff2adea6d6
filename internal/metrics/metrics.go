package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the download pipeline instrumentation
type Metrics struct {
	TierAttempts        *prometheus.CounterVec
	Downloads           *prometheus.CounterVec
	MuxerAcquisitions   *prometheus.CounterVec
	ExtractorRuns       *prometheus.CounterVec
	LimiterWaitDuration prometheus.Histogram
}

// New creates and registers the metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TierAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytarr",
			Subsystem: "download",
			Name:      "tier_attempts_total",
			Help:      "Download tier attempts by tier and outcome.",
		}, []string{"tier", "outcome"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytarr",
			Subsystem: "download",
			Name:      "downloads_total",
			Help:      "Finished downloads by result.",
		}, []string{"result"}),
		MuxerAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytarr",
			Subsystem: "muxer",
			Name:      "acquisitions_total",
			Help:      "Muxer resolutions by source and outcome.",
		}, []string{"source", "outcome"}),
		ExtractorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytarr",
			Subsystem: "extractor",
			Name:      "runs_total",
			Help:      "Extractor invocations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		LimiterWaitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ytarr",
			Subsystem: "extractor",
			Name:      "limiter_wait_seconds",
			Help:      "Time spent waiting for an extractor slot.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}

	reg.MustRegister(
		m.TierAttempts,
		m.Downloads,
		m.MuxerAcquisitions,
		m.ExtractorRuns,
		m.LimiterWaitDuration,
	)

	return m
}

// ObserveTier records the outcome of one tier attempt
func (m *Metrics) ObserveTier(tier, outcome string) {
	m.TierAttempts.WithLabelValues(tier, outcome).Inc()
}

// ObserveDownload records a finished download
func (m *Metrics) ObserveDownload(result string) {
	m.Downloads.WithLabelValues(result).Inc()
}

// ObserveMuxer records a muxer resolution
func (m *Metrics) ObserveMuxer(source, outcome string) {
	m.MuxerAcquisitions.WithLabelValues(source, outcome).Inc()
}

// ObserveExtractorRun records an extractor invocation
func (m *Metrics) ObserveExtractorRun(operation, outcome string) {
	m.ExtractorRuns.WithLabelValues(operation, outcome).Inc()
}

// ObserveLimiterWait records how long a call waited for its slot
func (m *Metrics) ObserveLimiterWait(_ string, d time.Duration) {
	m.LimiterWaitDuration.Observe(d.Seconds())
}
