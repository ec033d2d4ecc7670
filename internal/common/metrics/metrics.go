package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	// HTTPRequestDuration tracks request latency by method, path, and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Database metrics
var (
	// DBTransactionDuration tracks transaction duration by operation label.
	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_transaction_duration_seconds",
			Help:    "Duration of database transactions in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// DBOptimisticLockConflicts counts optimistic lock conflicts by repository.
	DBOptimisticLockConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_optimistic_lock_conflicts_total",
			Help: "Total number of optimistic lock conflicts",
		},
		[]string{"repository"},
	)
)

// Outbox metrics
var (
	// OutboxPendingEvents gauges the number of unpublished outbox messages seen by the relay.
	OutboxPendingEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Number of unpublished messages in outbox",
		},
	)

	// OutboxRelayed counts outbox messages handed to the broker by result.
	OutboxRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_relayed_total",
			Help: "Total number of outbox messages relayed to the broker",
		},
		[]string{"result"},
	)
)

// Business metrics
var (
	// PurchasesTotal counts ticket purchase attempts by outcome.
	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_purchases_total",
			Help: "Total number of ticket purchase attempts by outcome",
		},
		[]string{"outcome"},
	)

	// GatewayRequestDuration tracks bank service latency by result.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bank_gateway_request_duration_seconds",
			Help:    "Duration of bank service transaction calls in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"result"},
	)

	// DeferredPayments counts deferred payment hand-offs by result.
	DeferredPayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deferred_payments_total",
			Help: "Total number of deferred payments written to the outbox",
		},
		[]string{"result"},
	)

	// EventCacheLookups counts event cache lookups by result.
	EventCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_cache_lookups_total",
			Help: "Total number of event cache lookups",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns an HTTP middleware that records request metrics.
// Side effects: records Prometheus metrics and reads the current time.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		status := strconv.Itoa(rw.statusCode)
		path := NormalizePath(r.URL.Path)

		HTTPRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

// NormalizePath collapses identifiers in URL paths to keep label cardinality bounded.
func NormalizePath(path string) string {
	switch {
	case path == "/payments" || path == "/payments/":
		return "/payments/"
	case strings.HasPrefix(path, "/tickets/"):
		return "/tickets/{eventId}"
	default:
		return path
	}
}

// RecordOptimisticLockConflict increments the optimistic lock conflict counter.
// Side effects: records a Prometheus metric.
func RecordOptimisticLockConflict(repository string) {
	DBOptimisticLockConflicts.WithLabelValues(repository).Inc()
}

// RecordTransactionDuration records a transaction duration.
// Side effects: records a Prometheus metric.
func RecordTransactionDuration(operation string, duration time.Duration) {
	DBTransactionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPurchase increments the purchase counter for an outcome.
// Side effects: records a Prometheus metric.
func RecordPurchase(outcome string) {
	PurchasesTotal.WithLabelValues(outcome).Inc()
}

// RecordGatewayRequest records a bank service call.
// Side effects: records a Prometheus metric.
func RecordGatewayRequest(result string, duration time.Duration) {
	GatewayRequestDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordDeferredPayment increments the deferred payment counter.
// Side effects: records a Prometheus metric.
func RecordDeferredPayment(result string) {
	DeferredPayments.WithLabelValues(result).Inc()
}

// RecordOutboxRelay records one relay pass.
// Side effects: records Prometheus metrics.
func RecordOutboxRelay(pending, published, failed int) {
	OutboxPendingEvents.Set(float64(pending - published))
	OutboxRelayed.WithLabelValues("published").Add(float64(published))
	OutboxRelayed.WithLabelValues("failed").Add(float64(failed))
}

// RecordEventCacheLookup counts a cache hit or miss.
// Side effects: records a Prometheus metric.
func RecordEventCacheLookup(hit bool) {
	if hit {
		EventCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	EventCacheLookups.WithLabelValues("miss").Inc()
}
