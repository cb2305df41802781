// Package api exposes the assistant over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/api/handlers"
	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/metrics"
)

// Server wires handlers into a chi router.
type Server struct {
	Assistant  handlers.Assistant
	Jobs       jobs.JobStore
	OperatorID int64
	Origins    []string
	Log        zerolog.Logger
}

// Handler returns the router with all routes mounted. Health and metrics
// are served without the operator check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.Log))
	r.Use(middleware.CORS(s.Origins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Handle("/metrics", metrics.Handler())

	ah := handlers.NewAssistantHandler(s.Assistant, s.Log)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(s.OperatorID))

		r.Post("/messages", ah.PostMessage)
		r.Post("/voice", ah.PostVoice)
		r.Post("/confirm", ah.Confirm)
		r.Post("/undo", ah.Undo)
		r.Post("/reset", ah.Reset)
		r.Post("/backup", ah.Backup)
		r.Post("/restore", ah.Restore)
		r.Get("/search", ah.Search)
		r.Get("/find", ah.Find)
		r.Get("/history", ah.History)
		r.Get("/reports/{command}", ah.Report)

		if s.Jobs != nil {
			jh := handlers.NewJobsHandler(s.Jobs, s.Log)
			r.Get("/jobs", jh.ListJobs)
			r.Get("/jobs/{id}", jh.GetJob)
		}
	})

	return r
}
