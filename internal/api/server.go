package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dgallion1/pdfocr/internal/config"
	"github.com/dgallion1/pdfocr/internal/pipeline"
	"github.com/dgallion1/pdfocr/internal/stats"
)

// Server is the HTTP API server for pdfocr.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	pageStats    *stats.Pages
	engine       string
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. pageStats may be nil.
func NewServer(orch *pipeline.Orchestrator, pageStats *stats.Pages, engine string, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		pageStats:    pageStats,
		engine:       engine,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Get("/api/ocr", s.handleListJobs)
		r.Post("/api/ocr", s.handleSubmit)
		r.Post("/api/ocr/batch", s.handleBatchSubmit)
		r.Post("/api/ocr/sync", s.handleSyncSubmit)
		r.Get("/api/ocr/{jobID}/status", s.handleJobStatus)
		r.Get("/api/ocr/{jobID}/result", s.handleJobResult)
		r.Delete("/api/ocr/{jobID}", s.handleDeleteJob)
		r.Get("/api/stats/ocr", s.handleOCRStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
