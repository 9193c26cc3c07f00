package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const evaluateTimeout = 10 * time.Second

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/mistake-analysis", s.handleSubmitMistakeAnalysis)
		r.Get("/tasks/{id}", s.handleTaskStatus)
		r.With(timeoutMiddleware(evaluateTimeout)).Get("/evaluate", s.handleEvaluatePosition)
		r.Get("/oracle/stats", s.handleOracleStats)
		r.Post("/oracle/stats/reset", s.handleResetOracleStats)
	})
	return r
}
