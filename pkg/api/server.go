// Package api serves archived run reports over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"harvester/pkg/api/middleware"
	"harvester/pkg/auth"
	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/storage"
)

// Server encapsulates the HTTP API server and its dependencies.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	log        *zap.Logger

	runs        storage.RunStore
	transcripts storage.TranscriptStore
}

// Config holds API server configuration.
type Config struct {
	Port        string
	ServiceName string
	Runs        storage.RunStore
	Transcripts storage.TranscriptStore // optional
	JWT         *auth.JWTService
}

// NewServer creates a new API server with all dependencies.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Runs == nil {
		return nil, errors.New("run store is required")
	}
	if cfg.JWT == nil {
		return nil, errors.New("jwt service is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "harvester"
	}

	gin.SetMode(gin.ReleaseMode)
	log := logger.Named("api")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(log))

	s := &Server{
		router:      router,
		log:         log,
		runs:        cfg.Runs,
		transcripts: cfg.Transcripts,
	}
	s.registerRoutes(cfg.JWT)

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.log.Info("Starting server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(jwt *auth.JWTService) {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1", middleware.AuthMiddleware(jwt, auth.RoleViewer))
	{
		runs := v1.Group("/runs")
		{
			runs.GET("", s.listRuns)
			runs.GET("/:id", s.getRun)
			runs.GET("/:id/transcript", s.getTranscript)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"dependencies": gin.H{
			"runs":        s.runs != nil,
			"transcripts": s.transcripts != nil,
		},
		"timestamp": time.Now().UTC(),
	})
}
