// Package pullmetrics implements pull.MetricsSink with Prometheus gauges
// and counters, following a promauto registry-constructor pattern
// (promauto.With(registry) constructors grouped in one struct; when
// metrics are disabled no Sink is built and pull.Request.Sink stays nil)
// applied to pull.Snapshot instead of S3 or
// cache operations.
package pullmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/ostreesync/pkg/pull"
)

// Sink is the Prometheus-backed pull.MetricsSink. Every tick's Snapshot
// is rendered into absolute gauges (outstanding work, byte totals) —
// matching the nature of the values pull.Reporter already computes as
// running totals rather than per-tick deltas.
type Sink struct {
	outstandingFetches prometheus.Gauge
	outstandingWrites  prometheus.Gauge
	scanIdle           prometheus.Gauge
	scannedMeta        prometheus.Gauge
	requestedMeta      prometheus.Gauge
	fetchedMeta        prometheus.Gauge
	fetchedContent     prometheus.Gauge
	bytesTransferred   prometheus.Gauge
}

// New registers the pull gauges against reg and returns a ready Sink.
// Pass prometheus.DefaultRegisterer for the global registry, or a
// dedicated registry in tests to avoid double-registration panics.
func New(reg prometheus.Registerer) *Sink {
	return &Sink{
		outstandingFetches: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_outstanding_fetches",
			Help: "Requested-but-not-yet-fetched objects in the current pull.",
		}),
		outstandingWrites: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_outstanding_writes",
			Help: "Fetched-but-not-yet-written objects in the current pull.",
		}),
		scanIdle: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_scan_idle",
			Help: "1 if the scan worker has confirmed scan_idle, 0 otherwise.",
		}),
		scannedMeta: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_scanned_metadata_total",
			Help: "Metadata objects the scan worker has visited so far.",
		}),
		requestedMeta: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_requested_metadata_total",
			Help: "Metadata objects requested from the remote so far.",
		}),
		fetchedMeta: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_fetched_metadata_total",
			Help: "Metadata objects fetched and written so far.",
		}),
		fetchedContent: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_fetched_content_total",
			Help: "File content objects fetched and written so far.",
		}),
		bytesTransferred: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ostreesync_pull_bytes_transferred_total",
			Help: "Bytes received from the remote so far.",
		}),
	}
}

// Observe implements pull.MetricsSink.
func (s *Sink) Observe(snap pull.Snapshot) {
	s.outstandingFetches.Set(float64(snap.OutstandingFetches))
	s.outstandingWrites.Set(float64(snap.OutstandingWrites))
	if snap.ScanIdle {
		s.scanIdle.Set(1)
	} else {
		s.scanIdle.Set(0)
	}
	s.scannedMeta.Set(float64(snap.ScannedMeta))
	s.requestedMeta.Set(float64(snap.RequestedMeta))
	s.fetchedMeta.Set(float64(snap.FetchedMeta))
	s.fetchedContent.Set(float64(snap.FetchedContent))
	s.bytesTransferred.Set(float64(snap.BytesTransferred))
}

var _ pull.MetricsSink = (*Sink)(nil)
