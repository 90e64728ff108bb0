// Package metrics holds the Prometheus collectors of the sync services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncChanges counts incoming client changes by outcome
	// (applied, conflicted, skipped).
	SyncChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_sync_changes_total",
		Help: "Client changes processed by delta sync, by outcome",
	}, []string{"outcome"})

	// SyncRequests counts delta and snapshot sync requests by kind and result.
	SyncRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskflow_sync_requests_total",
		Help: "Sync requests handled, by kind and result",
	}, []string{"kind", "result"})

	SyncPulledChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskflow_sync_pulled_changes_total",
		Help: "Server changes returned to clients by delta sync",
	})

	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskflow_sync_duration_seconds",
		Help:    "Duration of sync requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind"})

	CompactedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskflow_change_records_compacted_total",
		Help: "Change records removed by compaction",
	})
)

const (
	OutcomeApplied    = "applied"
	OutcomeConflicted = "conflicted"
	OutcomeSkipped    = "skipped"

	KindDelta    = "delta"
	KindUpload   = "upload"
	KindDownload = "download"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Result maps a success flag to its label value.
func Result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
