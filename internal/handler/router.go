package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig - параметры HTTP-маршрутизатора
type RouterConfig struct {
	RequestTimeout time.Duration
	ServiceTokens  []string
	Logger         *slog.Logger
}

// NewRouter собирает маршруты /api/v2 и /metrics.
func NewRouter(h *PhotoHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(Metrics)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	auth := ServiceAuth(cfg.ServiceTokens, cfg.Logger)

	r.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		r.Route("/photos", func(r chi.Router) {
			r.Get("/", h.ListPhotos)
			r.With(auth).Post("/", h.CreatePhoto)

			r.Get("/{id}", h.GetPhoto)
			r.Get("/{id}/metadata", h.GetPhotoMetadata)
			r.With(auth).Delete("/{id}", h.DeletePhoto)
			r.With(auth).Post("/{id}/report-broken", h.ReportBroken)
		})

		r.Post("/photos:batchGet", h.BatchGetPhotos)
		r.With(auth).Post("/photos:batchDelete", h.BatchDeletePhotos)

		r.With(auth).Post("/albums", h.CreateAlbum)
	})

	return r
}
