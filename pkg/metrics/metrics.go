// Package metrics provides Prometheus metrics for gym sync, matching and roster refresh.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gymsync"

var (
	// SyncRunsTotal tracks federation sync runs by outcome (success, skipped, error)
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of federation gym sync runs by outcome",
		},
		[]string{"federation", "outcome"},
	)

	// SyncDuration tracks how long a federation sync takes
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of federation gym sync runs in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"federation"},
	)

	// GymsUpsertedTotal tracks source gyms written by syncs
	GymsUpsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "gyms_upserted_total",
			Help:      "Total number of source gyms upserted",
		},
		[]string{"federation"},
	)

	// MatchDecisionsTotal tracks match decisions by outcome
	MatchDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "decisions_total",
			Help:      "Total number of gym match decisions by outcome",
		},
		[]string{"outcome"},
	)

	// ReviewsTotal tracks admin decisions on pending matches
	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "reviews_total",
			Help:      "Total number of pending match reviews by decision",
		},
		[]string{"decision"},
	)

	// RosterFetchTotal tracks roster fetches per pair
	RosterFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "roster",
			Name:      "fetch_total",
			Help:      "Total number of roster fetches by outcome",
		},
		[]string{"federation", "outcome"},
	)

	// RosterBatchDuration tracks a full roster refresh run
	RosterBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "roster",
			Name:      "batch_duration_seconds",
			Help:      "Duration of roster refresh runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"strategy"},
	)

	// JobRunsTotal tracks scheduled job executions
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs by outcome",
		},
		[]string{"job", "outcome"},
	)

	// FederationRequestsTotal tracks outbound federation HTTP requests
	FederationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "requests_total",
			Help:      "Total number of outbound federation HTTP requests",
		},
		[]string{"federation", "status_code"},
	)

	// EventsPublishedTotal tracks kafka events by type and outcome
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of domain events published",
		},
		[]string{"event_type", "outcome"},
	)
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)
