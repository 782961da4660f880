// Package metrics declares the Prometheus instruments shared across services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepRuns counts completion sweep executions by outcome.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_sweep_runs_total",
		Help: "Completion sweep executions partitioned by outcome.",
	}, []string{"outcome"})

	// SweepCompletedBookings counts bookings flipped to completed by the sweep.
	SweepCompletedBookings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staybook_sweep_completed_bookings_total",
		Help: "Bookings transitioned to completed by the sweep.",
	})

	// ModerationDecisions counts listing moderation decisions by outcome.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_moderation_decisions_total",
		Help: "Listing moderation decisions partitioned by outcome.",
	}, []string{"decision"})

	// HTTPRequests counts handled API requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_http_requests_total",
		Help: "Handled HTTP requests partitioned by route and status class.",
	}, []string{"route", "class"})
)
