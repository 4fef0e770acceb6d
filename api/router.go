// Package api 是推荐服务的 HTTP 接口（chi 路由）。
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 注册全部路由
//
//	GET  /healthz
//	GET  /metrics
//	GET  /v1/recommendations?limit=N
//	POST /v1/interactions
//	POST /v1/relations
//	POST /v1/recompute
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(Metrics)
		r.Use(RequireUser)

		r.Get("/recommendations", h.Recommendations)
		r.Post("/interactions", h.Interactions)
		r.Post("/relations", h.Relations)
		r.Post("/recompute", h.Recompute)
	})
	return r
}
