// Package config loads profilescope's runtime configuration from
// environment variables (optionally seeded from a .env file), the same
// env-first approach cmd/tarsy's entrypoint uses, generalized into one
// aggregate Config rather than scattering getenv calls across main.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/arborcode/profilescope/pkg/canonicalstore"
	"github.com/arborcode/profilescope/pkg/llmclient"
	"github.com/arborcode/profilescope/pkg/queue"
	"github.com/arborcode/profilescope/pkg/scraper"
)

// Config aggregates every component's configuration for a single process.
type Config struct {
	HTTPPort string
	GinMode  string

	Database    canonicalstore.Config
	VectorStore VectorStoreConfig
	Scraper     scraper.Config
	LLM         llmclient.Config
	Queue       *queue.Config
}

// VectorStoreConfig configures the best-effort vector store.
type VectorStoreConfig struct {
	// Path is the sqlite-vec database file. Empty disables the vector store
	// entirely: the orchestrator's upsert stage then skips indexing.
	Path string
}

// Load reads .env (if present at envPath) and then builds Config from the
// environment. A missing .env file is not fatal: a deployment may supply
// everything via real environment variables instead.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("config: no .env file loaded, continuing with process environment", "path", envPath, "error", err)
		} else {
			slog.Info("config: loaded environment file", "path", envPath)
		}
	}

	db, err := canonicalstore.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config: database: %w", err)
	}

	scraperCfg, err := loadScraperConfig()
	if err != nil {
		return nil, fmt.Errorf("config: scraper: %w", err)
	}

	cfg := &Config{
		HTTPPort:    getEnvOrDefault("HTTP_PORT", "8080"),
		GinMode:     getEnvOrDefault("GIN_MODE", "release"),
		Database:    db,
		VectorStore: VectorStoreConfig{Path: getEnvOrDefault("VECTOR_STORE_PATH", "./data/vectors.db")},
		Scraper:     scraperCfg,
		LLM:         loadLLMConfig(),
		Queue:       loadQueueConfig(),
	}
	return cfg, nil
}

func loadScraperConfig() (scraper.Config, error) {
	baseURL := os.Getenv("SCRAPER_BASE_URL")
	token := resolveSecret(os.Getenv("SCRAPER_TOKEN"))
	datasetID := os.Getenv("SCRAPER_DATASET_ID")

	var missing []string
	if baseURL == "" {
		missing = append(missing, "SCRAPER_BASE_URL")
	}
	if token == "" {
		missing = append(missing, "SCRAPER_TOKEN")
	}
	if datasetID == "" {
		missing = append(missing, "SCRAPER_DATASET_ID")
	}
	if len(missing) > 0 {
		return scraper.Config{}, &ValidationError{Field: fmt.Sprint(missing), Err: ErrMissingRequiredField}
	}

	return scraper.Config{
		BaseURL:      baseURL,
		Token:        token,
		DatasetID:    datasetID,
		InitialDelay: getEnvDuration("SCRAPER_INITIAL_DELAY", scraper.DefaultInitialDelay),
		PollInterval: getEnvDuration("SCRAPER_POLL_INTERVAL", scraper.DefaultPollInterval),
		PollBudget:   getEnvDuration("SCRAPER_POLL_BUDGET", scraper.DefaultPollBudget),
	}, nil
}

// loadLLMConfig never errors: an absent or partial LLM configuration is a
// valid deployment. llmclient.NewClient returns nil in that case, and every
// caller (extractor, synthesizer) has a deterministic fallback.
func loadLLMConfig() llmclient.Config {
	return llmclient.Config{
		BaseURL: os.Getenv("LLM_BASE_URL"),
		APIKey:  resolveSecret(os.Getenv("LLM_API_KEY")),
		Model:   getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
	}
}

func loadQueueConfig() *queue.Config {
	cfg := queue.DefaultConfig()
	if n, err := strconv.Atoi(os.Getenv("QUEUE_WORKER_COUNT")); err == nil && n > 0 {
		cfg.WorkerCount = n
	}
	if d := getEnvDuration("QUEUE_RUN_TIMEOUT", 0); d > 0 {
		cfg.RunTimeout = d
	}
	return cfg
}

// resolveSecret expands ${VAR} references inside an env var's own value, so
// an operator can point a secret at another variable (e.g. one injected by
// a secrets manager under a different name) without a second config knob.
func resolveSecret(v string) string {
	if v == "" {
		return v
	}
	return string(ExpandEnv([]byte(v)))
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config: invalid duration, using default", "key", key, "value", v, "default", defaultVal)
		return defaultVal
	}
	return d
}
