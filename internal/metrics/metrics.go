// Package metrics exports the bridge's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PunchesIngested counts punches stored per terminal.
	PunchesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkbridge_punches_ingested_total",
		Help: "Attendance punches stored, by terminal.",
	}, []string{"terminal"})

	// DeviceErrors counts failed terminal operations.
	DeviceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkbridge_device_errors_total",
		Help: "Failed terminal operations, by terminal and operation.",
	}, []string{"terminal", "op"})

	// SyncDuration tracks how long one terminal sync cycle takes.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zkbridge_sync_duration_seconds",
		Help:    "Duration of a full sync+ingest cycle per terminal.",
		Buckets: prometheus.DefBuckets,
	}, []string{"terminal"})
)
