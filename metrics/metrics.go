// Package metrics exposes Prometheus collectors for the tournament service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pong_tournaments"

var (
	ParticipantsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "participants_registered_total",
		Help:      "Participants registered to tournaments.",
	})

	TournamentsActivated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tournaments_activated_total",
		Help:      "Tournaments whose bracket was built.",
	})

	TournamentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tournaments_completed_total",
		Help:      "Tournaments that produced a winner.",
	})

	MatchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_results_total",
		Help:      "Submitted match results by outcome.",
	}, []string{"outcome"})

	ByesAdvanced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "byes_advanced_total",
		Help:      "Participants advanced without playing.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

// Outcome labels for MatchResults.
const (
	OutcomeAccepted        = "accepted"
	OutcomeAlreadyResolved = "already_resolved"
	OutcomeRejected        = "rejected"
)
