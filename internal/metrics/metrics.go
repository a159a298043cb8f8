package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealbox_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sealbox_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Handshake metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealbox_sessions_created_total",
			Help: "Total key-exchange sessions created",
		},
	)

	SessionsActivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealbox_sessions_activated_total",
			Help: "Total sessions that reached active (both keys present)",
		},
	)

	KeysSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealbox_keys_submitted_total",
			Help: "Total public values submitted",
		},
		[]string{"role"}, // "seller" or "buyer"
	)

	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealbox_messages_relayed_total",
			Help: "Total encrypted messages accepted by the relay",
		},
	)

	// Push metrics
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealbox_events_delivered_total",
			Help: "Total push events delivered to open subscriptions",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sealbox_events_dropped_total",
			Help: "Total push events with zero open subscriptions",
		},
	)

	// Sweeper metrics
	SessionsSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealbox_sessions_swept_total",
			Help: "Total sessions evicted by the sweeper",
		},
		[]string{"reason"}, // "expired" or "obsolete"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sealbox_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
