// Package api exposes classification, conversion, editing sessions and
// imports over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/lessonsync/internal/config"
	"github.com/dgallion1/lessonsync/internal/heading"
	"github.com/dgallion1/lessonsync/internal/imports"
	"github.com/dgallion1/lessonsync/internal/session"
	"github.com/dgallion1/lessonsync/internal/sse"
	"github.com/dgallion1/lessonsync/internal/upload"
)

// Deps are the services behind the API. Uploads and Events may be nil.
type Deps struct {
	Sessions   *session.Registry
	Imports    *imports.Orchestrator
	Uploads    *upload.Client
	Events     *sse.Broker
	Classifier *heading.Classifier
}

// Server is the HTTP API server for lessonsync.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/classify", s.handleClassify)
		r.Post("/api/convert", s.handleConvert)

		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleCloseSession)
				r.Put("/content", s.handleSetContent)
				r.Put("/identity", s.handleSetIdentity)
				r.Put("/focus", s.handleFocus)
				r.Post("/commands", s.handleCommand)
				r.Get("/outline", s.handleOutline)
				r.Get("/chunks", s.handleChunks)
				r.Get("/diff", s.handleDiff)
				r.Post("/images", s.handleImage)
			})
		})

		r.Post("/api/imports", s.handleImport)
		r.Get("/api/imports/{jobID}", s.handleImportStatus)

		r.Get("/api/stats/uploads", s.handleUploadStats)

		if s.deps.Events != nil {
			r.Get("/api/events", s.deps.Events.ServeHTTP)
		}
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
