// Package server exposes the synthesis pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fireblade2534/kokoro-serve/internal/core"
	"github.com/fireblade2534/kokoro-serve/internal/synth"
)

// Options configures the HTTP server.
type Options struct {
	Addr                string
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int
	DefaultFormat       string
	Version             string
}

// Server owns the gin router and the underlying http.Server.
type Server struct {
	opts          Options
	pipeline      *synth.Pipeline
	voices        core.VoiceCatalog
	defaultFormat string
	version       string
	log           *logger.Logger
	zlog          zerolog.Logger
	ready         atomic.Bool

	httpServer *http.Server
}

// New builds the server. It starts reporting ready once MarkReady is
// called after model runtime validation.
func New(
	opts Options,
	pipeline *synth.Pipeline,
	voices core.VoiceCatalog,
	log *logger.Logger,
	zlog zerolog.Logger,
) *Server {
	srv := &Server{
		opts:          opts,
		pipeline:      pipeline,
		voices:        voices,
		defaultFormat: opts.DefaultFormat,
		version:       opts.Version,
		log:           log,
		zlog:          zlog,
	}

	srv.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      srv.router(),
		ReadTimeout:  time.Duration(opts.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(opts.WriteTimeoutSeconds) * time.Second,
	}

	return srv
}

// MarkReady flips the readiness probe to serving.
func (s *Server) MarkReady() {
	s.ready.Store(true)
}

// router assembles all routes.
func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.zlog))

	router.GET("/healthz", s.handleLiveness)
	router.GET("/readyz", s.handleReadiness)
	router.GET("/version", s.handleVersion)

	apiGroup := router.Group("/v1")

	audioGroup := apiGroup.Group("/audio")
	audioGroup.POST("/speech", s.handleSpeech)
	audioGroup.GET("/voices", s.handleVoices)

	return router
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully within the
// given grace period.
func (s *Server) Run(ctx context.Context, shutdownGrace time.Duration) error {
	errChan := make(chan error, 1)

	go func() {
		s.log.System("HTTP server listening on %s", s.opts.Addr)

		serveErr := s.httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}

		close(errChan)
	}()

	select {
	case serveErr, ok := <-errChan:
		if ok && serveErr != nil {
			return fmt.Errorf("HTTP server failed: %w", serveErr)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	shutdownErr := s.httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", shutdownErr)
	}

	return nil
}
