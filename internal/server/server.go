// Package server provides the HTTP API for docflow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/docflow/internal/config"
	"github.com/hyperjump/docflow/internal/ingest"
	"github.com/hyperjump/docflow/internal/models"
)

// UserHeader carries the caller identity. Authentication happens upstream.
const UserHeader = "X-User-ID"

// DocumentService is the part of the ingestion service the API exposes.
type DocumentService interface {
	Upload(ctx context.Context, owner, fileName string, content []byte, contentType string) (*models.UploadResult, error)
	Get(ctx context.Context, id string) (*models.DocumentRecord, error)
	List(ctx context.Context, f ingest.ListFilter) ([]*models.DocumentRecord, error)
	Download(ctx context.Context, id string) (*models.Download, error)
	Edit(ctx context.Context, id string, patch *models.DocumentPatch) (*models.DocumentRecord, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error)
	Stats(ctx context.Context) (*models.Stats, error)
	UploadChatFile(ctx context.Context, threadID, userID, fileName string, content []byte) (*models.ChatUploadResult, error)
	SearchChat(ctx context.Context, threadID string, q *models.SearchQuery) (*models.SearchResponse, error)
}

// Server is the HTTP server for the docflow API.
type Server struct {
	svc     DocumentService
	config  *config.ServerConfig
	maxBody int64
	logger  *zap.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxBody bounds the size of a request body. Uploads are validated by the
// service; this only keeps a runaway body out of memory.
func WithMaxBody(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// NewServer creates a server backed by svc.
func NewServer(svc DocumentService, cfg *config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		config:  cfg,
		maxBody: config.DefaultMaxUploadBytes + 1<<20,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := []string{"*"}
	if s.config != nil && len(s.config.CORSOrigins) > 0 {
		origins = s.config.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Route("/documents", func(docs chi.Router) {
			docs.Post("/", s.handleUpload)
			docs.Get("/", s.handleList)
			docs.Get("/{id}", s.handleGet)
			docs.Get("/{id}/download", s.handleDownload)
			docs.Patch("/{id}", s.handleEdit)
			docs.Delete("/{id}", s.handleDelete)
		})
		api.Post("/search", s.handleSearch)
		api.Get("/stats", s.handleStats)
		api.Post("/chat/{threadID}/files", s.handleChatUpload)
		api.Post("/chat/{threadID}/search", s.handleChatSearch)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
