// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_scheduled_total",
			Help: "Total number of reminder timers registered",
		},
		[]string{"bucket"},
	)

	RemindersCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_cancelled_total",
			Help: "Total number of reminder timers cancelled before firing",
		},
	)

	RemindersFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_fired_total",
			Help: "Total number of reminder timers that fired",
		},
		[]string{"bucket"},
	)

	RemindersPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reminders_pending",
			Help: "Number of reminder timers currently pending",
		},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notifications delivered per channel",
		},
		[]string{"channel"},
	)

	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Total number of notifications suppressed before display",
		},
		[]string{"reason"},
	)

	RemoteSyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_sync_failures_total",
			Help: "Total number of best-effort remote sync failures",
		},
		[]string{"target"},
	)

	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_size",
			Help: "Number of notifications currently held in the in-app ledger",
		},
	)
)
