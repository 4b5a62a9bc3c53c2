package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "food_order"

type Metrics struct {
	HTTPRequests           *prometheus.CounterVec
	HTTPDuration           *prometheus.HistogramVec
	CacheRequests          *prometheus.CounterVec
	CacheWriteFailures     prometheus.Counter
	NotificationsPublished *prometheus.CounterVec
	ActiveStreams          prometheus.Gauge
	OrdersCreated          prometheus.Counter
	StatusTransitions      *prometheus.CounterVec
}

// New registers the service metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so collectors never clash.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_cache_requests_total",
			Help:      "Restaurant status cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		CacheWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_cache_write_failures_total",
			Help:      "Restaurant status writes that reached the database but not the cache.",
		}),
		NotificationsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Order notifications handed to the bus by result (ok, failed).",
		}, []string{"result"}),
		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_streams_active",
			Help:      "Open notification streams.",
		}),
		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders persisted.",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Accepted order status transitions by target status.",
		}, []string{"to"}),
	}
}
