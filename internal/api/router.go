package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the handlers. metricsPath "" disables the metrics endpoint.
func NewRouter(h *Handler, mw *Middleware, metricsPath string) http.Handler {
	mux := chi.NewRouter()
	mux.Use(mw.Log, mw.Recover, mw.Cors)

	mux.Get("/", h.Index)
	mux.Get("/healthz", h.Health)
	if metricsPath != "" {
		mux.Handle(metricsPath, promhttp.Handler())
	}

	mux.Group(func(r chi.Router) {
		r.Use(mw.RateLimit, mw.MaxBody)
		r.Post("/preview", h.Preview)
		r.Post("/export", h.Export)
		r.Post("/templates", h.Templates)
	})

	return mux
}
