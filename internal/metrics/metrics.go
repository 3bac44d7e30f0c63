// Package metrics exposes Prometheus metrics for the scan pipeline.
package metrics

import (
	"sync"

	"github.com/huangsam/reposcan/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for scans.
type Metrics struct {
	FilesScannedTotal *prometheus.CounterVec
	ScansTotal        *prometheus.CounterVec
	ScanFailuresTotal *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
	ActiveWorkers     prometheus.Gauge
	BatchSize         prometheus.Gauge
	MemoryBytes       prometheus.Gauge
	GovernorAdjusts   *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics once per process.
//
// Metrics:
//   - reposcan_files_scanned_total{status}
//   - reposcan_scans_total{tier,completeness}
//   - reposcan_scan_failures_total{kind}
//   - reposcan_batch_duration_seconds
//   - reposcan_active_workers
//   - reposcan_batch_size
//   - reposcan_memory_bytes
//   - reposcan_governor_adjustments_total{direction}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			FilesScannedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reposcan_files_scanned_total",
					Help: "Total number of files processed, by outcome",
				},
				[]string{"status"},
			),
			ScansTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reposcan_scans_total",
					Help: "Total number of finished scans",
				},
				[]string{"tier", "completeness"},
			),
			ScanFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reposcan_scan_failures_total",
					Help: "Total number of scans that ended with a fatal error",
				},
				[]string{"kind"},
			),
			BatchDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "reposcan_batch_duration_seconds",
					Help:    "Duration of batch processing in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
				},
			),
			ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "reposcan_active_workers",
				Help: "Current worker limit set by the memory governor",
			}),
			BatchSize: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "reposcan_batch_size",
				Help: "Current batch size set by the memory governor",
			}),
			MemoryBytes: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "reposcan_memory_bytes",
				Help: "Last sampled process memory usage",
			}),
			GovernorAdjusts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reposcan_governor_adjustments_total",
					Help: "Total number of memory governor adjustments",
				},
				[]string{"direction"}, // "shrink" or "grow"
			),
		}
	})
	return globalMetrics
}

// ObserveFile counts one file outcome.
func (m *Metrics) ObserveFile(status schema.FileStatus) {
	if m == nil {
		return
	}
	m.FilesScannedTotal.WithLabelValues(string(status)).Inc()
}

// ObserveScan counts one finished scan.
func (m *Metrics) ObserveScan(tier schema.ScanTier, completeness schema.Completeness) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(string(tier), string(completeness)).Inc()
}

// ObserveFailure counts one fatal scan error.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.ScanFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveGovernor records the governor parameters after a check.
func (m *Metrics) ObserveGovernor(workers, batchSize int, memory uint64) {
	if m == nil {
		return
	}
	m.ActiveWorkers.Set(float64(workers))
	m.BatchSize.Set(float64(batchSize))
	m.MemoryBytes.Set(float64(memory))
}

// ObserveAdjustment counts a governor shrink or grow.
func (m *Metrics) ObserveAdjustment(direction string) {
	if m == nil {
		return
	}
	m.GovernorAdjusts.WithLabelValues(direction).Inc()
}

// ObserveBatch records the duration of one batch in seconds.
func (m *Metrics) ObserveBatch(seconds float64) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(seconds)
}
