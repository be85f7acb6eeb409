// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gastos"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	ExpensesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expenses_written_total",
		Help:      "Expense records written, by operation.",
	}, []string{"op"})

	RecordsQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_quarantined_total",
		Help:      "Stored records skipped on load because a field could not be parsed.",
	})

	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Sign-in attempts by method and outcome.",
	}, []string{"method", "outcome"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	SuspiciousRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "suspicious_requests_total",
		Help:      "Requests matching a known probing pattern.",
	})

	SheetMirrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sheet_mirror_runs_total",
		Help:      "Google Sheets mirror rebuilds by outcome.",
	}, []string{"outcome"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
