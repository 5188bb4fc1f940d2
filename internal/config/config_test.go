package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.8, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, "women", cfg.Pipeline.DefaultGender)
	assert.Equal(t, 3, cfg.Marketplace.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Marketplace.BaseBackoff)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  backend: ollama
  endpoint: http://localhost:11434
pipeline:
  message_timeout: 45s
  category_mode: concept
marketplace:
  base_backoff: 250ms
`), 0o600))

	t.Setenv("WHA7_PIPELINE_WORKERS", "9")
	t.Setenv("EBAY_AFFILIATE_ID", "5338000000")
	t.Setenv("CLARIFAI_PAT", "pat-123")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Models.Backend)
	assert.Equal(t, "http://localhost:11434", cfg.Models.Endpoint)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.MessageTimeout)
	assert.Equal(t, "concept", cfg.Pipeline.CategoryMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Marketplace.BaseBackoff)
	assert.Equal(t, 9, cfg.Pipeline.Workers)
	assert.Equal(t, "5338000000", cfg.Marketplace.AffiliateID)
	assert.Equal(t, "pat-123", cfg.Models.APIKey)

	// untouched keys keep their defaults
	assert.Equal(t, 0.8, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, "apparel-detection", cfg.Models.Detection)
}

func TestLoadPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("WHA7_MARKETPLACE_AFFILIATE_ID", "new")
	t.Setenv("EBAY_AFFILIATE_ID", "old")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Marketplace.AffiliateID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("WHA7_PIPELINE_DEFAULT_GENDER", "unisex")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Marketplace.AffiliateID = "AFF1"
	cfg.Pipeline.MessageTimeout = 30 * time.Second
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AFF1", loaded.Marketplace.AffiliateID)
	assert.Equal(t, 30*time.Second, loaded.Pipeline.MessageTimeout)
	assert.Equal(t, cfg.Models, loaded.Models)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Models.Backend = "openai" }},
		{"threshold", func(c *Config) { c.Pipeline.ConfidenceThreshold = 1 }},
		{"zero threshold", func(c *Config) { c.Pipeline.ConfidenceThreshold = 0 }},
		{"negative threshold", func(c *Config) { c.Pipeline.ConfidenceThreshold = -0.1 }},
		{"gender", func(c *Config) { c.Pipeline.DefaultGender = "" }},
		{"category mode", func(c *Config) { c.Pipeline.CategoryMode = "fuzzy" }},
		{"workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"attempts", func(c *Config) { c.Marketplace.MaxAttempts = 0 }},
		{"limit", func(c *Config) { c.Marketplace.Limit = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/shopper")
	assert.Equal(t, filepath.Join("/home/shopper", ".config", "wha7", "config.json"), GetConfigPath())
}
