// Package metrics exposes Prometheus collectors for the fee API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolfees",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schoolfees",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	paymentsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolfees",
		Name:      "payments_recorded_total",
		Help:      "Payments written, by fee kind and operation (create, update, settle).",
	}, []string{"kind", "op"})

	paymentsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolfees",
		Name:      "payments_rejected_total",
		Help:      "Payments refused by ledger validation, by fee kind.",
	}, []string{"kind"})

	statusUpdatesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolfees",
		Name:      "status_updates_failed_total",
		Help:      "Fee status writes that failed, by fee kind.",
	}, []string{"kind"})

	lateFeesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "schoolfees",
		Name:      "late_fees_applied_total",
		Help:      "Late fee records created by rule application.",
	})
)

func init() {
	registry.MustRegister(
		requests,
		requestDuration,
		paymentsRecorded,
		paymentsRejected,
		statusUpdatesFailed,
		lateFeesApplied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(route string, code int, d time.Duration) {
	requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// PaymentRecorded counts a payment write.
func PaymentRecorded(kind, op string) {
	paymentsRecorded.WithLabelValues(kind, op).Inc()
}

// PaymentRejected counts a payment refused by validation.
func PaymentRejected(kind string) {
	paymentsRejected.WithLabelValues(kind).Inc()
}

// StatusUpdateFailed counts a fee status write that did not go through.
func StatusUpdateFailed(kind string) {
	statusUpdatesFailed.WithLabelValues(kind).Inc()
}

// LateFeesApplied counts late fee records created by a rule.
func LateFeesApplied(n int) {
	lateFeesApplied.Add(float64(n))
}
