package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parcel_delivery"

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "orders_created_total", Help: "Total orders created"})
	OrderTransitions   = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "order_status_transitions_total", Help: "Order status transitions by target status"},
		[]string{"status"},
	)
	RiderAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rider_assignments_total", Help: "Rider assignments by policy and outcome"},
		[]string{"policy", "result"},
	)
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "emails_sent_total", Help: "Emails handed to the transport by kind and result"},
		[]string{"kind", "result"},
	)
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Order events published by result"},
		[]string{"result"},
	)
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "payments_total", Help: "Payment operations by method, step and result"},
		[]string{"method", "step", "result"},
	)
	AdminFeedSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "admin_feed_sessions", Help: "Connected admin websocket sessions"})
	CacheLookups      = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_lookups_total", Help: "Cache lookups by cache and result"},
		[]string{"cache", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Result maps an error to the "ok"/"error" label used across counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
