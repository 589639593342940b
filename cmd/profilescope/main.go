// profilescope orchestrator server - runs the scrape/extract/verify/
// synthesize pipeline over HTTP and a background worker pool.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arborcode/profilescope/pkg/api"
	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/config"
	"github.com/arborcode/profilescope/pkg/extractor"
	"github.com/arborcode/profilescope/pkg/harvester"
	"github.com/arborcode/profilescope/pkg/llmclient"
	"github.com/arborcode/profilescope/pkg/orchestrator"
	"github.com/arborcode/profilescope/pkg/queue"
	"github.com/arborcode/profilescope/pkg/scraper"
	"github.com/arborcode/profilescope/pkg/synthesizer"
	"github.com/arborcode/profilescope/pkg/vectorstore"
	"github.com/arborcode/profilescope/pkg/verifier"
	"github.com/arborcode/profilescope/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	log.Printf("Starting %s", version.Full())
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(filepath.Join(*configDir, ".env"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := canonicalstore.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("Connected to PostgreSQL database")

	vector := buildVectorStore(ctx, cfg)
	if vector != nil {
		defer func() {
			if err := vector.Close(); err != nil {
				log.Printf("Error closing vector store: %v", err)
			}
		}()
	}

	llm := llmclient.NewClient(cfg.LLM)
	if llm == nil {
		slog.Warn("main: no LLM configured, extraction/synthesis fall back to deterministic heuristics")
	}

	scraperClient := scraper.NewClient(cfg.Scraper)

	h := harvester.New(scraperClient)
	e := extractor.New(llm)
	v := verifier.New(llm)
	s := synthesizer.New(llm)

	var orch *orchestrator.Orchestrator
	if vector != nil {
		orch = orchestrator.New(store, vector, vector, h, e, v, s)
	} else {
		orch = orchestrator.New(store, nil, nil, h, e, v, s)
	}

	pool := queue.NewPool(store, orch, cfg.Queue)
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}
	defer pool.Stop()
	log.Printf("Worker pool started with %d workers", cfg.Queue.WorkerCount)

	server := api.NewServer(store, orch, pool, cfg.GinMode)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := server.Start(":" + cfg.HTTPPort); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during HTTP shutdown: %v", err)
	}
	log.Println("Shutdown complete")
}

// buildVectorStore wires the best-effort embedding index. Any failure to
// build it (missing API key, unreadable path) degrades to nil rather than
// aborting startup: the orchestrator's upsert stage treats a nil vector
// store as "skip indexing", not an error.
func buildVectorStore(ctx context.Context, cfg *config.Config) *vectorstore.Store {
	if cfg.VectorStore.Path == "" {
		return nil
	}

	embedder, err := vectorstore.NewGenAIEmbedder(ctx, os.Getenv("GENAI_API_KEY"), os.Getenv("GENAI_EMBED_MODEL"))
	if err != nil {
		slog.Warn("main: failed to build embedder, vector store disabled", "error", err)
		return nil
	}
	if embedder == nil {
		slog.Warn("main: no GENAI_API_KEY set, vector store disabled")
		return nil
	}

	store, err := vectorstore.NewStore(cfg.VectorStore.Path, embedder)
	if err != nil {
		slog.Warn("main: failed to open vector store, continuing without it", "path", cfg.VectorStore.Path, "error", err)
		return nil
	}
	return store
}
