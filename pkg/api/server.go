// Package api provides the HTTP API for starting runs, polling their
// status, and retrieving synthesized reports.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/orchestrator"
	"github.com/arborcode/profilescope/pkg/queue"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	store        canonicalstore.Store
	orchestrator *orchestrator.Orchestrator
	pool         *queue.Pool
}

// NewServer builds a Server and registers its routes.
func NewServer(store canonicalstore.Store, orch *orchestrator.Orchestrator, pool *queue.Pool, ginMode string) *Server {
	gin.SetMode(ginMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders())

	s := &Server{
		router:       router,
		store:        store,
		orchestrator: orch,
		pool:         pool,
	}
	s.setupRoutes()
	return s
}

// Router returns the underlying HTTP handler, for tests that want to drive
// the API with an httptest.Server rather than a real listener.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	v1 := s.router.Group("/api/v1")
	v1.POST("/runs", s.startRunHandler)
	v1.GET("/runs/:id", s.getRunHandler)
	v1.GET("/runs/:id/report", s.getReportHandler)
	v1.POST("/runs/:id/cancel", s.cancelRunHandler)
}

// Start runs the HTTP server on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
