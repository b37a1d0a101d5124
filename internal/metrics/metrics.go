// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_login_attempts_total",
			Help: "Login attempts by outcome kind",
		},
		[]string{"outcome"},
	)

	AccountLocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_account_locks_total",
			Help: "Transitions into a locked phase",
		},
		[]string{"kind"},
	)

	LockStateConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "approvals_lock_state_conflicts_total",
			Help: "Optimistic version conflicts while persisting login lock state",
		},
	)

	RecurrenceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_recurrence_runs_total",
			Help: "Recurrence ticks by result",
		},
		[]string{"result"},
	)

	RecurrenceTemplates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_recurrence_templates_total",
			Help: "Due templates processed by result",
		},
		[]string{"result"},
	)

	RecurrenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "approvals_recurrence_duration_seconds",
			Help:    "Duration of recurrence ticks",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30, 60},
		},
	)

	PaymentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_payment_requests_total",
			Help: "Payment request lifecycle transitions",
		},
		[]string{"status", "source"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
