// Package metrics exposes node counters in Prometheus format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "blobnet"

// Metrics holds every collector the node reports. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	downloadsStarted  prometheus.Counter
	downloadsFinished prometheus.Counter
	downloadsErrored  *prometheus.CounterVec
	downloadsActive   prometheus.Gauge

	probeDuration prometheus.Histogram
	probedPeers   *prometheus.CounterVec

	blobFetches    *prometheus.CounterVec
	blobFetchBytes prometheus.Counter

	costEstimates *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors plus the
// node collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		downloadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "downloads", Name: "started_total",
			Help: "Download sessions started.",
		}),
		downloadsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "downloads", Name: "finished_total",
			Help: "Download sessions that produced a file.",
		}),
		downloadsErrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "downloads", Name: "errored_total",
			Help: "Download sessions that failed, by error category.",
		}, []string{"category"}),
		downloadsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "downloads", Name: "active",
			Help: "Download sessions currently registered.",
		}),

		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "availability", Name: "probe_duration_seconds",
			Help:    "Time spent probing peers for one blob.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		probedPeers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "availability", Name: "probed_peers_total",
			Help: "Peers probed, by outcome.",
		}, []string{"result"}),

		blobFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "blobs", Name: "fetches_total",
			Help: "Blob fetches, by source and outcome.",
		}, []string{"source", "result"}),
		blobFetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "blobs", Name: "fetched_bytes_total",
			Help: "Bytes of blob data fetched from peers.",
		}),

		costEstimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cost", Name: "estimates_total",
			Help: "Cost estimates, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.downloadsStarted,
		m.downloadsFinished,
		m.downloadsErrored,
		m.downloadsActive,
		m.probeDuration,
		m.probedPeers,
		m.blobFetches,
		m.blobFetchBytes,
		m.costEstimates,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DownloadStarted() {
	if m == nil {
		return
	}
	m.downloadsStarted.Inc()
	m.downloadsActive.Inc()
}

func (m *Metrics) DownloadFinished() {
	if m == nil {
		return
	}
	m.downloadsFinished.Inc()
	m.downloadsActive.Dec()
}

// DownloadErrored counts a failure under category, e.g. "timeout".
func (m *Metrics) DownloadErrored(category string) {
	if m == nil {
		return
	}
	m.downloadsErrored.WithLabelValues(category).Inc()
	m.downloadsActive.Dec()
}

// ObserveProbe records one probe's duration and per-peer outcomes.
func (m *Metrics) ObserveProbe(d time.Duration, reachable, unreachable int) {
	if m == nil {
		return
	}
	m.probeDuration.Observe(d.Seconds())
	m.probedPeers.WithLabelValues("reachable").Add(float64(reachable))
	m.probedPeers.WithLabelValues("unreachable").Add(float64(unreachable))
}

// BlobFetched counts one fetch; source is "local" or "network".
func (m *Metrics) BlobFetched(source string, size int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.blobFetches.WithLabelValues(source, result).Inc()
	if err == nil && source == "network" {
		m.blobFetchBytes.Add(float64(size))
	}
}

// CostEstimated counts one estimate; outcome is "ok", "degraded" or "unresolved".
func (m *Metrics) CostEstimated(outcome string) {
	if m == nil {
		return
	}
	m.costEstimates.WithLabelValues(outcome).Inc()
}
