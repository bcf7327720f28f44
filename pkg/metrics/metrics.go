package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts dashboard API requests by route pattern and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendgraph_http_requests_total",
			Help: "Total number of dashboard API requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures dashboard API latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "friendgraph_http_request_duration_seconds",
			Help:    "Duration of dashboard API requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// BackendRequestsTotal counts calls to the REST backend. status is the
	// HTTP status code, "error" for transport failures or "open" when the
	// circuit breaker refused the call.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendgraph_backend_requests_total",
			Help: "Total number of requests issued to the backend",
		},
		[]string{"op", "status"},
	)

	// BackendRequestDuration measures backend round trips
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "friendgraph_backend_request_duration_seconds",
			Help:    "Duration of backend requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"op"},
	)

	// MutationsTotal counts orchestrated mutations by outcome
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendgraph_mutations_total",
			Help: "Mutations by operation and outcome category",
		},
		[]string{"op", "outcome"},
	)

	// RefreshTotal counts view refreshes (users, graph) by result
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendgraph_refresh_total",
			Help: "View refreshes by view and result",
		},
		[]string{"view", "result"},
	)

	// NoticesTotal counts notices pushed by level
	NoticesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friendgraph_notices_total",
			Help: "Notices pushed to the dashboard by level",
		},
		[]string{"level"},
	)

	// Users tracks the size of the canonical user list
	Users = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "friendgraph_users",
		Help: "Users in the canonical list after the last refresh",
	})

	// Edges tracks the number of projected edges
	Edges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "friendgraph_edges",
		Help: "Edges in the current graph projection",
	})
)
