package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloo-solutions/draftgate/internal/api"
	"github.com/cloo-solutions/draftgate/internal/api/handlers"
	"github.com/cloo-solutions/draftgate/internal/api/middleware"
)

const defaultMaxBodyBytes int64 = 2 * 1024 * 1024

type RouterConfig struct {
	TokenValidator  middleware.TokenValidator
	GateHandler     *handlers.GateHandler
	RevisionHandler *handlers.RevisionHandler
	Logger          *zap.Logger
	MaxBodyBytes    int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// the v1 routes need a token validator; without one only health and
	// metrics are served
	if cfg.TokenValidator == nil {
		return r
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.TokenValidator))

		r.Post("/judge", cfg.GateHandler.Judge)
		r.Post("/evaluations", cfg.GateHandler.Evaluate)

		r.Route("/revisions", func(r chi.Router) {
			r.Post("/", cfg.RevisionHandler.Run)
			r.Post("/jobs", cfg.RevisionHandler.Enqueue)
		})

		r.Get("/runs/{runID}/artifacts", cfg.RevisionHandler.ListArtifacts)
	})

	return r
}
