package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Models      ModelsConfig      `json:"models" mapstructure:"models"`
	Pipeline    PipelineConfig    `json:"pipeline" mapstructure:"pipeline"`
	Marketplace MarketplaceConfig `json:"marketplace" mapstructure:"marketplace"`
	Storage     StorageConfig     `json:"storage" mapstructure:"storage"`
	Store       StoreConfig       `json:"store" mapstructure:"store"`
	Server      ServerConfig      `json:"server" mapstructure:"server"`
	Telegram    TelegramConfig    `json:"telegram" mapstructure:"telegram"`
	Log         LogConfig         `json:"log" mapstructure:"log"`
}

// ModelsConfig selects the vision backend and the model used for each task
type ModelsConfig struct {
	Backend  string        `json:"backend" mapstructure:"backend"`
	Endpoint string        `json:"endpoint" mapstructure:"endpoint"`
	APIKey   string        `json:"api_key" mapstructure:"api_key"`
	UserID   string        `json:"user_id" mapstructure:"user_id"`
	AppID    string        `json:"app_id" mapstructure:"app_id"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`

	Detection string `json:"detection" mapstructure:"detection"`
	Tagging   string `json:"tagging" mapstructure:"tagging"`
	Face      string `json:"face" mapstructure:"face"`
	Gender    string `json:"gender" mapstructure:"gender"`
}

// PipelineConfig holds per-message processing settings
type PipelineConfig struct {
	ConfidenceThreshold float64       `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	DefaultGender       string        `json:"default_gender" mapstructure:"default_gender"`
	CategoryMode        string        `json:"category_mode" mapstructure:"category_mode"`
	Workers             int           `json:"workers" mapstructure:"workers"`
	MessageTimeout      time.Duration `json:"message_timeout" mapstructure:"message_timeout"`
	StyleTerms          bool          `json:"style_terms" mapstructure:"style_terms"`
	DedupeDistance      int           `json:"dedupe_distance" mapstructure:"dedupe_distance"`
	MaxModelDim         int           `json:"max_model_dim" mapstructure:"max_model_dim"`
	MinImageSize        int           `json:"min_image_size" mapstructure:"min_image_size"`
	// AllowPrivateURLs lets image URLs resolve to loopback and private networks.
	AllowPrivateURLs bool `json:"allow_private_urls" mapstructure:"allow_private_urls"`
}

// MarketplaceConfig holds eBay search settings
type MarketplaceConfig struct {
	Endpoint      string        `json:"endpoint" mapstructure:"endpoint"`
	ClientID      string        `json:"client_id" mapstructure:"client_id"`
	ClientSecret  string        `json:"client_secret" mapstructure:"client_secret"`
	TokenURL      string        `json:"token_url" mapstructure:"token_url"`
	Scope         string        `json:"scope" mapstructure:"scope"`
	AccessToken   string        `json:"access_token" mapstructure:"access_token"`
	MarketplaceID string        `json:"marketplace_id" mapstructure:"marketplace_id"`
	AffiliateID   string        `json:"affiliate_id" mapstructure:"affiliate_id"`
	MaxAttempts   int           `json:"max_attempts" mapstructure:"max_attempts"`
	BaseBackoff   time.Duration `json:"base_backoff" mapstructure:"base_backoff"`
	Limit         int           `json:"limit" mapstructure:"limit"`
	MaxInFlight   int64         `json:"max_in_flight" mapstructure:"max_in_flight"`
}

// StorageConfig holds S3 settings. An empty bucket disables uploads.
type StorageConfig struct {
	Bucket          string        `json:"bucket" mapstructure:"bucket"`
	Region          string        `json:"region" mapstructure:"region"`
	Endpoint        string        `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string        `json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key" mapstructure:"secret_access_key"`
	UsePathStyle    bool          `json:"use_path_style" mapstructure:"use_path_style"`
	PublicBaseURL   string        `json:"public_base_url" mapstructure:"public_base_url"`
	PresignTTL      time.Duration `json:"presign_ttl" mapstructure:"presign_ttl"`
}

// StoreConfig holds the result database settings. An empty DSN disables recording.
type StoreConfig struct {
	DSN string `json:"dsn" mapstructure:"dsn"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr        string `json:"addr" mapstructure:"addr"`
	MaxUploadMB int64  `json:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// TelegramConfig holds bot settings. An empty token disables the bot.
type TelegramConfig struct {
	Token       string `json:"token" mapstructure:"token"`
	PollTimeout int    `json:"poll_timeout" mapstructure:"poll_timeout"`
	Debug       bool   `json:"debug" mapstructure:"debug"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `json:"level" mapstructure:"level"`
	Development bool   `json:"development" mapstructure:"development"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			Backend:   "clarifai",
			Endpoint:  "https://api.clarifai.com",
			UserID:    "clarifai",
			AppID:     "main",
			Timeout:   60 * time.Second,
			Detection: "apparel-detection",
			Tagging:   "apparel-classification-v2",
			Face:      "face-detection",
			Gender:    "gender-demographics-recognition",
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.8,
			DefaultGender:       "women",
			CategoryMode:        "gendered",
			Workers:             4,
			MessageTimeout:      2 * time.Minute,
			StyleTerms:          false,
			DedupeDistance:      4,
			MaxModelDim:         1200,
			MinImageSize:        64,
		},
		Marketplace: MarketplaceConfig{
			Endpoint:      "https://api.ebay.com/buy/browse/v1/item_summary/search_by_image",
			TokenURL:      "https://api.ebay.com/identity/v1/oauth2/token",
			Scope:         "https://api.ebay.com/oauth/api_scope",
			MarketplaceID: "EBAY_US",
			MaxAttempts:   3,
			BaseBackoff:   time.Second,
			Limit:         3,
			MaxInFlight:   8,
		},
		Storage: StorageConfig{
			Region:     "us-east-1",
			PresignTTL: 0,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 20,
		},
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// legacyEnv maps keys to the environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"models.api_key":            "CLARIFAI_PAT",
	"marketplace.endpoint":      "EBAY_API_ENDPOINT",
	"marketplace.client_id":     "EBAY_APP_ID",
	"marketplace.client_secret": "EBAY_CERT_ID",
	"marketplace.affiliate_id":  "EBAY_AFFILIATE_ID",
	"storage.bucket":            "S3_BUCKET_NAME",
	"storage.access_key_id":     "AWS_ACCESS_KEY_ID",
	"storage.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"store.dsn":                 "DATABASE_URL",
}

// Load builds the configuration from defaults, an optional JSON/YAML file and the
// environment (WHA7_ prefix, "." replaced by "_"). A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("WHA7")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "WHA7_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the defaults,
// ignoring the environment.
func LoadFromFile(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetConfigFile(filename)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Models.Backend {
	case "clarifai", "ollama", "llamacpp", "gemini":
	default:
		return fmt.Errorf("models.backend must be one of clarifai, ollama, llamacpp, gemini")
	}

	if c.Pipeline.ConfidenceThreshold <= 0 || c.Pipeline.ConfidenceThreshold >= 1 {
		return fmt.Errorf("pipeline.confidence_threshold must be in (0, 1)")
	}

	if c.Pipeline.DefaultGender != "men" && c.Pipeline.DefaultGender != "women" {
		return fmt.Errorf("pipeline.default_gender must be men or women")
	}

	if c.Pipeline.CategoryMode != "gendered" && c.Pipeline.CategoryMode != "concept" {
		return fmt.Errorf("pipeline.category_mode must be gendered or concept")
	}

	if c.Pipeline.MinImageSize < 0 {
		return fmt.Errorf("pipeline.min_image_size must not be negative")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be positive")
	}

	if c.Marketplace.MaxAttempts < 1 {
		return fmt.Errorf("marketplace.max_attempts must be positive")
	}

	if c.Marketplace.Limit < 1 {
		return fmt.Errorf("marketplace.limit must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "wha7", "config.json")
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("models.backend", d.Models.Backend)
	v.SetDefault("models.endpoint", d.Models.Endpoint)
	v.SetDefault("models.api_key", d.Models.APIKey)
	v.SetDefault("models.user_id", d.Models.UserID)
	v.SetDefault("models.app_id", d.Models.AppID)
	v.SetDefault("models.timeout", d.Models.Timeout)
	v.SetDefault("models.detection", d.Models.Detection)
	v.SetDefault("models.tagging", d.Models.Tagging)
	v.SetDefault("models.face", d.Models.Face)
	v.SetDefault("models.gender", d.Models.Gender)

	v.SetDefault("pipeline.confidence_threshold", d.Pipeline.ConfidenceThreshold)
	v.SetDefault("pipeline.default_gender", d.Pipeline.DefaultGender)
	v.SetDefault("pipeline.category_mode", d.Pipeline.CategoryMode)
	v.SetDefault("pipeline.workers", d.Pipeline.Workers)
	v.SetDefault("pipeline.message_timeout", d.Pipeline.MessageTimeout)
	v.SetDefault("pipeline.style_terms", d.Pipeline.StyleTerms)
	v.SetDefault("pipeline.dedupe_distance", d.Pipeline.DedupeDistance)
	v.SetDefault("pipeline.max_model_dim", d.Pipeline.MaxModelDim)
	v.SetDefault("pipeline.min_image_size", d.Pipeline.MinImageSize)
	v.SetDefault("pipeline.allow_private_urls", d.Pipeline.AllowPrivateURLs)

	v.SetDefault("marketplace.endpoint", d.Marketplace.Endpoint)
	v.SetDefault("marketplace.client_id", d.Marketplace.ClientID)
	v.SetDefault("marketplace.client_secret", d.Marketplace.ClientSecret)
	v.SetDefault("marketplace.token_url", d.Marketplace.TokenURL)
	v.SetDefault("marketplace.scope", d.Marketplace.Scope)
	v.SetDefault("marketplace.access_token", d.Marketplace.AccessToken)
	v.SetDefault("marketplace.marketplace_id", d.Marketplace.MarketplaceID)
	v.SetDefault("marketplace.affiliate_id", d.Marketplace.AffiliateID)
	v.SetDefault("marketplace.max_attempts", d.Marketplace.MaxAttempts)
	v.SetDefault("marketplace.base_backoff", d.Marketplace.BaseBackoff)
	v.SetDefault("marketplace.limit", d.Marketplace.Limit)
	v.SetDefault("marketplace.max_in_flight", d.Marketplace.MaxInFlight)

	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.endpoint", d.Storage.Endpoint)
	v.SetDefault("storage.access_key_id", d.Storage.AccessKeyID)
	v.SetDefault("storage.secret_access_key", d.Storage.SecretAccessKey)
	v.SetDefault("storage.use_path_style", d.Storage.UsePathStyle)
	v.SetDefault("storage.public_base_url", d.Storage.PublicBaseURL)
	v.SetDefault("storage.presign_ttl", d.Storage.PresignTTL)

	v.SetDefault("store.dsn", d.Store.DSN)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)

	v.SetDefault("telegram.token", d.Telegram.Token)
	v.SetDefault("telegram.poll_timeout", d.Telegram.PollTimeout)
	v.SetDefault("telegram.debug", d.Telegram.Debug)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}
