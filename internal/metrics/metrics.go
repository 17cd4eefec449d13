// Package metrics holds the Prometheus collectors of the exporter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests tracks handled requests by route and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oft_eml_exporter_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks request handling duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oft_eml_exporter_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// SerializeDuration tracks how long each serializer takes
	SerializeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oft_eml_exporter_serialize_duration_seconds",
			Help:    "Message serialization duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)

	// ExportedFiles tracks produced files by format and outcome
	ExportedFiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oft_eml_exporter_files_total",
			Help: "Total number of exported files",
		},
		[]string{"format", "status"}, // ok, error
	)

	// TemplatesPublished tracks template publishing outcomes
	TemplatesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oft_eml_exporter_templates_published_total",
			Help: "Total number of published templates",
		},
		[]string{"status"},
	)

	// RateLimitExceeded tracks rejected requests
	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oft_eml_exporter_rate_limit_exceeded_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)
