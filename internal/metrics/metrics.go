// Package metrics регистрирует метрики Prometheus конвейера фото.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoapp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoapp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Pipeline metrics
var (
	// DerivativeGenerationsTotal считает генерации производных по качеству и результату
	DerivativeGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoapp_derivative_generations_total",
			Help: "Total number of derivative generation attempts",
		},
		[]string{"quality", "status"}, // "success", "failure"
	)

	DerivativeGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoapp_derivative_generation_duration_seconds",
			Help:    "Derivative resize, encode and upload duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"quality"},
	)

	CreateRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoapp_create_rejections_total",
			Help: "Total number of rejected photo uploads",
		},
		[]string{"reason"},
	)

	PhotosCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoapp_photos_created_total",
			Help: "Total number of photos ingested",
		},
	)

	// QualityFallbacksTotal считает отдачи Original вместо запрошенного качества
	QualityFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoapp_quality_fallbacks_total",
			Help: "Total number of reads served from Original instead of the requested quality",
		},
		[]string{"quality"},
	)

	RepairsScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoapp_repairs_scheduled_total",
			Help: "Total number of derivative repairs scheduled",
		},
		[]string{"dispatcher"}, // "queue", "pool"
	)
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)
