package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"canvascast/internal/domain/ports/repository"
	"canvascast/internal/pipeline"
	"canvascast/internal/usecase"
)

// Server is the admin/ops HTTP surface: project and job submission, status
// polling, credit administration, and dead-letter intervention. Everything
// under /api/v1 sits behind the admin session; health and metrics do not.
type Server struct {
	jobUC     usecase.JobUseCase
	creditsUC usecase.CreditsUseCase
	dlq       *pipeline.DLQManager
	projects  repository.ProjectRepository
	auth      *AuthManager
	log       *zerolog.Logger
}

func NewServer(
	jobUC usecase.JobUseCase,
	creditsUC usecase.CreditsUseCase,
	dlq *pipeline.DLQManager,
	projects repository.ProjectRepository,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		jobUC:     jobUC,
		creditsUC: creditsUC,
		dlq:       dlq,
		projects:  projects,
		auth:      auth,
		log:       logger,
	}
}

// Router builds the full route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(traceID)
	r.Use(requestLog(s.log))
	r.Use(recoverer(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/projects", s.createProject)
		r.Post("/jobs", s.submitJob)
		r.Get("/jobs/{id}", s.getJob)
		r.Post("/jobs/{id}/cancel", s.cancelJob)
		r.Get("/dlq", s.listDLQ)
		r.Post("/dlq/{id}/retry", s.retryDLQ)
		r.Get("/users/{id}/balance", s.getBalance)
		r.Post("/users/{id}/credits", s.grantCredits)
	})

	return r
}

// authMiddleware requires a valid admin session (bearer JWT or cookie) on
// every request under /api/v1.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
