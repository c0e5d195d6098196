// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"type"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_published_total",
			Help: "Total realtime change events published",
		},
		[]string{"event_type"},
	)

	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_events_applied_total",
			Help: "Total realtime change events applied by the center",
		},
		[]string{"event_type"},
	)

	FallbackActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_store_fallback_total",
			Help: "Total operations served by the in-memory fallback store",
		},
		[]string{"operation"},
	)

	UnreadCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_unread_count",
			Help: "Current unread count held by the center",
		},
		[]string{"user_id"},
	)

	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_attempts_total",
			Help: "Out-of-band delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	AnnouncerChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "announcer_checks_total",
			Help: "Update announcer check runs by outcome",
		},
		[]string{"outcome"},
	)
)
