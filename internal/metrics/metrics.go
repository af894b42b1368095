// Package metrics provides Prometheus metrics for the browser model.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	directoryFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_directory_fetches_total",
			Help: "Total number of directory listing fetches",
		},
		[]string{"status"},
	)

	directoryFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filebrowser_directory_fetch_duration_seconds",
			Help:    "Directory listing fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_uploads_total",
			Help: "Total number of upload attempts",
		},
		[]string{"mode", "status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filebrowser_upload_bytes_total",
			Help: "Total bytes sent by the upload pipeline",
		},
	)

	uploadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filebrowser_uploads_in_flight",
			Help: "Number of uploads currently tracked",
		},
	)

	pollTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filebrowser_poll_ticks_total",
			Help: "Total poller ticks by trigger",
		},
		[]string{"trigger"},
	)

	pollStandbyTransitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filebrowser_poll_standby_transitions_total",
			Help: "Times the poller entered standby",
		},
	)

	sessionsRetained = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filebrowser_sessions_retained",
			Help: "Sessions retained after reconciliation",
		},
	)
)

// RecordDirectoryFetch records one listing fetch and its duration.
func RecordDirectoryFetch(duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	directoryFetchesTotal.WithLabelValues(status).Inc()
	directoryFetchDuration.Observe(duration.Seconds())
}

// RecordUpload records an upload attempt outcome.
func RecordUpload(mode string, bytes int64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	uploadsTotal.WithLabelValues(mode, status).Inc()
	if success && bytes > 0 {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// AddUploadBytes accumulates bytes as chunks complete.
func AddUploadBytes(n int64) {
	uploadBytesTotal.Add(float64(n))
}

// SetUploadsInFlight sets the tracked upload count.
func SetUploadsInFlight(n int) {
	uploadsInFlight.Set(float64(n))
}

// RecordPollTick records a poller tick ("auto" or "manual").
func RecordPollTick(trigger string) {
	pollTicksTotal.WithLabelValues(trigger).Inc()
}

// RecordStandby records a transition into standby.
func RecordStandby() {
	pollStandbyTransitions.Inc()
}

// SetSessionsRetained sets the reconciled session count.
func SetSessionsRetained(n int) {
	sessionsRetained.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
