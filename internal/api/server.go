// Package api exposes case generation, draft editing and simulator exports over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/middleware"
	"github.com/medcase-generator/internal/service"
)

const defaultShutdownTimeout = 30 * time.Second

// Version is reported by the root and health endpoints.
var Version = "1.0.0"

// Dependencies are the services and backends the HTTP API serves.
type Dependencies struct {
	Cases    *service.CaseService
	Exports  *service.ExportService
	Repo     domain.CaseRepository
	Sessions domain.SessionStore
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(cors.New(corsConfig(cfg.CORS)))
	router.Use(middleware.RequestLogger(logger))
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerSecond > 0 {
		router.Use(middleware.NewRateLimiter(cfg.RateLimit).Middleware())
	}

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes(cfg.Auth)

	return server
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(auth domain.AuthConfig) {
	requireAuth := middleware.BasicAuth(auth, s.logger)

	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/preview-case", requireAuth, s.handlePreviewCase)
	s.router.PUT("/edit-case", s.handleEditCase)
	s.router.GET("/session/:session_id", s.handleGetSession)
	s.router.POST("/finalize-case", s.handleFinalizeCase)
	s.router.POST("/generate-case", requireAuth, s.handleGenerateCase)

	s.router.GET("/cases", s.handleListCases)

	c := s.router.Group("/case/:case_id")
	{
		c.GET("/output-files", s.handleOutputFiles)
		c.GET("/simulator-exports", s.handleExportInfo)
		c.GET("/debug-lr-data", s.handleDebugLRData)

		exports := c.Group("/simulator-export")
		{
			exports.GET("/lr-matrix-csv", s.handleMatrixCSV)
			exports.GET("/lr-matrix-excel", s.handleMatrixSpreadsheet)
			exports.GET("/prior-probabilities", s.handlePriors)
			exports.GET("/case-summary", s.handleCaseSummary)
			exports.GET("/bundle", s.handleBundle)
		}
	}
}

func corsConfig(cfg domain.CORSConfig) cors.Config {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	config.ExposeHeaders = []string{"Content-Disposition", "Content-Length", middleware.RequestIDHeader}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			config.AllowAllOrigins = true
			return config
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return config
}
