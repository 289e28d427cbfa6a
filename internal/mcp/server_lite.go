// Package mcp provides the MCP server implementation.
// This file contains the lightweight server that reads stored cases from a local SQLite file.
package mcp

import (
	"context"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	litecfg "github.com/medcase-generator/internal/config"
	"github.com/medcase-generator/internal/domain"
	"github.com/medcase-generator/internal/logging"
	"github.com/medcase-generator/internal/repository"
	"github.com/medcase-generator/internal/service"
)

// ServerName and ServerVersion identify the server during the MCP handshake.
const (
	ServerName    = "medcase-generator-lite"
	ServerVersion = "v0.1.0"
)

// LiteServer is a lightweight MCP server that requires no external services.
// It exposes the simulator exports of cases in a SQLite case store as tools.
type LiteServer struct {
	config    *litecfg.LiteConfig
	mcpServer *mcp.Server
	repo      domain.CaseRepository
	exports   *service.ExportService
	logger    *logrus.Logger
	logCloser io.Closer
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithRepository sets a custom case repository.
func WithRepository(repo domain.CaseRepository) LiteServerOption {
	return func(s *LiteServer) error {
		s.repo = repo
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		logger, closer, err := logging.New(cfg.Logging())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		server.logger = logger
		server.logCloser = closer
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if server.repo == nil {
		repo, err := repository.NewSQLiteCaseRepository(cfg.CaseDBPath(), server.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open case store: %w", err)
		}
		server.repo = repo
	}

	server.exports = service.NewExportService(server.logger, cfg.Matching())

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"db_path":    cfg.CaseDBPath(),
		"export_dir": cfg.ExportDir(),
		"strict":     cfg.StrictMatching,
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting case generator MCP server (lite)")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close case store")
		}
	}
	if s.logCloser != nil {
		return s.logCloser.Close()
	}
	return nil
}
