package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborcode/profilescope/pkg/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	vars := map[string]string{
		"DB_PASSWORD":       "secret",
		"SCRAPER_BASE_URL":  "https://scraper.example.com",
		"SCRAPER_TOKEN":     "tok-123",
		"SCRAPER_DATASET_ID": "ds-1",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_MissingScraperConfig_ReturnsError(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	os.Unsetenv("SCRAPER_BASE_URL")
	os.Unsetenv("SCRAPER_TOKEN")
	os.Unsetenv("SCRAPER_DATASET_ID")

	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_WithRequiredEnv_Succeeds(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "https://scraper.example.com", cfg.Scraper.BaseURL)
	assert.Equal(t, "tok-123", cfg.Scraper.Token)
	assert.NotNil(t, cfg.Queue)
	assert.Greater(t, cfg.Queue.WorkerCount, 0)
}

func TestLoad_SecretIndirection_ExpandsReferencedVar(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VAULT_SCRAPER_TOKEN", "from-vault")
	t.Setenv("SCRAPER_TOKEN", "${VAULT_SCRAPER_TOKEN}")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-vault", cfg.Scraper.Token)
}

func TestLoad_QueueWorkerCountOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("QUEUE_WORKER_COUNT", "7")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Queue.WorkerCount)
}
