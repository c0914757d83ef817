// Package http assembles the registration API server and its middleware.
package http

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/registrations/internal/config"
	"github.com/allisson/registrations/internal/metrics"
	registrationHTTP "github.com/allisson/registrations/internal/registration/http"
)

// Server is the registration API HTTP server.
type Server struct {
	server *http.Server
	logger *slog.Logger
	db     *sql.DB
}

// NewServer builds the API server with its full middleware chain and routes.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	entryHandler *registrationHTTP.EntryHandler,
	metricsProvider *metrics.Provider,
) (*Server, error) {
	s := &Server{
		logger: logger,
		db:     db,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)

	v1 := router.Group("/v1")

	if len(cfg.APIKeyHashes) > 0 {
		authMiddleware, err := APIKeyAuthMiddleware(cfg.APIKeyHashes, logger)
		if err != nil {
			return nil, err
		}
		v1.Use(authMiddleware)

		if cfg.RateLimitEnabled {
			v1.Use(RateLimitMiddleware(
				context.Background(),
				cfg.RateLimitRequestsPerSec,
				cfg.RateLimitBurst,
				logger,
			))
		}
	} else {
		logger.Warn("no API key hashes configured - API endpoints are unauthenticated")
	}

	v1.POST("/registrations", entryHandler.CreateHandler)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports overall service health including record store
// connectivity.
func (s *Server) healthHandler(c *gin.Context) {
	components := gin.H{}
	status := http.StatusOK
	overall := "healthy"

	if s.db != nil {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			components["database"] = "error"
			overall = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			components["database"] = "ok"
		}
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"components": components,
	})
}
