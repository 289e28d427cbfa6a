// Package main provides the lightweight MCP entry point for the case generator.
// It serves the simulator exports of cases stored in a local SQLite file over stdio.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/medcase-generator/internal/config"
	"github.com/medcase-generator/internal/mcp"
)

func main() {
	// MCP owns stdout
	log.SetOutput(os.Stderr)

	cfg := config.LoadLiteConfig()

	log.Printf("Starting case generator MCP server (lite)")
	log.Printf("Case store: %s", cfg.CaseDBPath())

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("Case generator MCP server (lite) stopped")
}
