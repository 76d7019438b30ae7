// Package server provides the HTTP API for Bayan.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/bayan/internal/config"
	"github.com/hyperjump/bayan/internal/rag"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

const defaultTimeout = 60 * time.Second

// Server is the HTTP server for the Bayan API.
type Server struct {
	pipeline  *rag.Pipeline
	config    *config.ServerConfig
	indexDir  string
	diskPaths []string
	version   string
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithIndexDir sets where POST /index saves the rebuilt index.
func WithIndexDir(dir string) Option {
	return func(s *Server) { s.indexDir = dir }
}

// WithDiskPaths sets the files and directories whose size is reported by the status endpoint.
func WithDiskPaths(paths ...string) Option {
	return func(s *Server) { s.diskPaths = paths }
}

// WithVersion sets the version reported by GET /.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server over pipeline.
func NewServer(pipeline *rag.Pipeline, cfg *config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		pipeline: pipeline,
		config:   cfg,
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.LoggerOrNop(s.logger)
	return s
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	timeout := defaultTimeout
	if s.config != nil && s.config.TimeoutSeconds > 0 {
		timeout = time.Duration(s.config.TimeoutSeconds) * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.Compress(5))
		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)
		r.Post("/chat", s.handleChat)
		r.Get("/api/v1/status", s.handleStatus)
	})

	// Streams deliver incrementally and index builds can outlast the request
	// timeout, so neither runs under it.
	r.Post("/chat/stream", s.handleChatStream)
	r.Post("/index", s.handleIndex)
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
