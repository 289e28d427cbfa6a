package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/api"
	"github.com/medcase-generator/internal/config"
	"github.com/medcase-generator/internal/llm"
	"github.com/medcase-generator/internal/logging"
	"github.com/medcase-generator/internal/repository"
	"github.com/medcase-generator/internal/service"
	"github.com/medcase-generator/internal/session"
)

func main() {
	// Variables from .env fill in anything the environment does not set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to read .env file: %v", err)
	}

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open case store")
	}
	defer repo.Close()

	sessions, err := session.New(cfg.Session, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create session store")
	}
	defer sessions.Close()

	generator := llm.NewClient(cfg.LLM, logger)
	exports := service.NewExportService(logger, cfg.Matching)
	cases := service.NewCaseService(logger, generator, sessions, repo, exports, cfg.Session.TTL)

	server := api.NewServer(configManager, api.Dependencies{
		Cases:    cases,
		Exports:  exports,
		Repo:     repo,
		Sessions: sessions,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
		"storage":     cfg.Storage.Driver,
		"sessions":    cfg.Session.Backend,
	}).Info("Starting case generator API")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
