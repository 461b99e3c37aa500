// Package httptransport exposes the journal over HTTP for the front end.
package httptransport

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AllowedOrigins []string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer  prometheus.Gatherer
	LogWriter io.Writer
}

func NewRouter(svc Journal, cfg RouterConfig) *chi.Mux {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := NewHandlers(svc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Group(func(r chi.Router) {
		r.Use(APILogMiddleware(cfg.LogWriter))
		r.Post("/update", h.Update())
		r.Post("/win", h.RecordWin())
		r.Post("/loss", h.RecordLoss())
		r.Post("/reset", h.Reset())
		r.Get("/dados", h.Snapshot())
		r.Get("/status", h.Status())
	})

	r.Get("/test", h.Test())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
