// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the queue over HTTP: job submission and control,
// a server-sent event stream of queue updates, metrics and health.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/clipforge/internal/queue"
)

// Server holds the HTTP handler state. The queue manager does the work;
// handlers only translate requests and responses.
type Server struct {
	mgr      *queue.Manager
	validate *requestValidator
}

// NewServer returns a server bound to the queue manager.
func NewServer(mgr *queue.Manager) *Server {
	return &Server{mgr: mgr, validate: newRequestValidator()}
}

// Router builds the chi router with the full route set.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(
			600, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			}),
		))

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleSubmit)
			r.Get("/{id}", s.handleGetJob)
			r.Delete("/{id}", s.handleRemoveJob)
			r.Post("/{id}/retry", s.handleRetryJob)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleQueueStatus)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/cancel-current", s.handleCancelCurrent)
			r.Delete("/completed", s.handleClearCompleted)
			r.Delete("/", s.handleClearAll)
		})

		r.Get("/events", s.handleEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
