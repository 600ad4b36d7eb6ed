// Package api provides the HTTP API server and handlers for book ingestion.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/service"
	"github.com/listenupapp/listenup-ingest/internal/sse"
	"github.com/listenupapp/listenup-ingest/internal/store"
)

// Services groups the business logic used by the API server.
type Services struct {
	Ingest    *service.IngestService
	Book      *service.BookService
	Status    *service.StatusTracker
	Synthesis *service.SynthesisService
	Search    *service.SearchService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store         store.Store
	services      *Services
	sseManager    *sse.Manager
	sseHandler    *sse.Handler
	router        *chi.Mux
	api           huma.API
	config        config.ServerConfig
	uploadDir     string
	uploadLimiter *RateLimiter
	logger        *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st store.Store, services *Services, sseManager *sse.Manager, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	uploadDir := os.TempDir()
	if cfg.Storage.MediaPath != "" {
		uploadDir = filepath.Join(cfg.Storage.MediaPath, "uploads")
	}

	s := &Server{
		store:         st,
		services:      services,
		sseManager:    sseManager,
		router:        chi.NewRouter(),
		config:        cfg.Server,
		uploadDir:     uploadDir,
		uploadLimiter: NewRateLimiter(UploadsPerMinute, time.Minute, UploadBurst),
		logger:        logger,
	}
	if sseManager != nil {
		var status sse.StatusFunc
		if services.Status != nil {
			status = services.Status.Status
		}
		s.sseHandler = sse.NewHandler(sseManager, status, logger)
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("ListenUp Ingest API", "1.0.0")
	humaConfig.Info.Description = "Ingests chapter bundles, manuscripts and EPUBs into playable chapter manifests."
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.uploadLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Range", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "Content-Range", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerBookRoutes()
	s.registerChapterRoutes()
	s.registerSearchRoutes()

	// Plain chi routes: multipart upload, byte-range files and the event stream.
	s.router.With(RateLimitMiddleware(s.uploadLimiter, s.logger)).Post("/api/v1/books", s.handleCreateBook)
	s.router.Get("/api/v1/books/{id}/chapters/{chapterID}/audio", s.handleStreamAudio)
	s.router.Get("/api/v1/books/{id}/cover", s.handleServeCover)
	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}
