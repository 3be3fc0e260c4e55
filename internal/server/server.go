// Package server provides the HTTP API for the ingredient safety analyzer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/anshimlab/anshim/internal/config"
	"github.com/anshimlab/anshim/internal/imagestore"
	"github.com/anshimlab/anshim/internal/ocr"
	"github.com/anshimlab/anshim/internal/storage"
)

// Analyzer produces a verdict text for an ingredient list.
type Analyzer interface {
	Analyze(ctx context.Context, ingredients []string, useRAG bool) (string, error)
}

// CorpusStatus exposes the retrieval pipeline's readiness for the status
// endpoint.
type CorpusStatus interface {
	IsInitialized() bool
	ChunkCount() int
}

// Server is the HTTP server for the analyzer API.
type Server struct {
	extractor ocr.TextExtractor
	analyzer  Analyzer
	corpus    CorpusStatus
	store     storage.Storage
	images    *imagestore.Store
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. images may be nil;
// uploads are then analyzed without being kept.
func NewServer(
	extractor ocr.TextExtractor,
	analyzer Analyzer,
	corpus CorpusStatus,
	store storage.Storage,
	images *imagestore.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		extractor: extractor,
		analyzer:  analyzer,
		corpus:    corpus,
		store:     store,
		images:    images,
		cfg:       cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/analyze/ocr/", s.handleAnalyzeOCR)
	r.Post("/analyze/chatbot/", s.handleAnalyzeChatbot)
	r.Get("/users/{user_id}/logs", s.handleUserLogs)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
