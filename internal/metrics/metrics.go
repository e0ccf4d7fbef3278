// Package metrics exposes prometheus instrumentation for the accountability
// flows: goals, tribes, check-ins, reactions and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GoalsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribes_goals_created_total",
			Help: "Goals created, by check-in frequency",
		},
		[]string{"frequency"},
	)

	GoalsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tribes_goals_completed_total",
			Help: "Goals marked complete",
		},
	)

	TribesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribes_tribes_created_total",
			Help: "Tribes created lazily for a frequency",
		},
		[]string{"frequency"},
	)

	MembershipsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tribes_memberships_created_total",
			Help: "Users joined to a tribe",
		},
	)

	CheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribes_check_ins_total",
			Help: "Check-ins recorded, by goal check-in type",
		},
		[]string{"type"},
	)

	Reactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribes_reactions_toggled_total",
			Help: "Reaction toggles, by reaction type and resulting action",
		},
		[]string{"type", "action"}, // action: added, removed
	)

	Deletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribes_deletions_total",
			Help: "Deleted goals, check-ins and users",
		},
		[]string{"entity"},
	)

	PushSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tribes_push_sends_total",
			Help: "Push notification attempts by result",
		},
		[]string{"result"}, // sent, failed, rejected, no_token
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tribes_websocket_connections",
			Help: "Open tribe feed websocket connections",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tribes_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
