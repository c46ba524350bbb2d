// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_processed_total",
			Help: "Total number of webhook events processed by reconciliation outcome",
		},
		[]string{"gateway", "outcome"},
	)

	StatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_updates_total",
			Help: "Total number of transaction status overwrites by new canonical status",
		},
		[]string{"status"},
	)

	LookupAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transaction_lookup_attempts",
			Help:    "Number of attempts needed to resolve a transaction by gateway reference",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"found"},
	)

	LockAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_lock_acquisitions_total",
			Help: "Total number of dispatch lock acquisition attempts by result",
		},
		[]string{"result"},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of notification channel attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	NotificationsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_deduped_total",
			Help: "Total number of recipients skipped because a delivery log already existed",
		},
	)

	DispatchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "dispatch_run_duration_seconds",
			Help: "Duration of a full notification dispatch run in seconds",
		},
	)
)
