// Package main provides the MCP server entry point for course discussion
// retrieval.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/studyloop/edsync/internal/config"
	"github.com/studyloop/edsync/internal/edapi"
	"github.com/studyloop/edsync/internal/embedding"
	mcpserver "github.com/studyloop/edsync/internal/mcp"
	"github.com/studyloop/edsync/internal/orchestrator"
	"github.com/studyloop/edsync/internal/syncstate"
	"github.com/studyloop/edsync/internal/vectorstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg := config.Load()
	if cfg.APIToken == "" {
		log.Fatal("EDSYNC_API_TOKEN not set")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	api := edapi.NewClient(cfg.APIBaseURL, edapi.StaticToken(cfg.APIToken))

	embeddingClient, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0)

	index, err := vectorstore.NewIndex(cfg.QdrantHost, cfg.QdrantPort, embedder, logger)
	if err != nil {
		log.Fatalf("failed to connect to vector store: %v", err)
	}
	defer index.Close()

	states, err := syncstate.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open sync state store: %v", err)
	}
	defer states.Close()

	orch := orchestrator.New(api, index, states, logger)

	server := mcpserver.NewServer(&mcpserver.Config{
		Index:        index,
		API:          api,
		Orchestrator: orch,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(orch))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	if cfg.ServerMode {
		// HTTP mode: serve MCP for remote clients.
		addr := "0.0.0.0:" + cfg.Port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		// Stdio mode for local clients, with the health endpoint served in
		// the background.
		go func() {
			addr := "0.0.0.0:" + cfg.Port
			log.Printf("Starting health server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("Health server error: %v", err)
			}
		}()

		log.Println("Starting course discussion MCP server (stdio mode)...")
		if err := server.Run(ctx); err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}
}
