package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/radar/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig     `mapstructure:"server"`
	Log         LogConfig        `mapstructure:"log"`
	Storage     StorageConfig    `mapstructure:"storage"`
	MarketData  MarketDataConfig `mapstructure:"marketdata"`
	News        NewsConfig       `mapstructure:"news"`
	Polymarket  PolymarketConfig `mapstructure:"polymarket"`
	Fetcher     FetcherConfig    `mapstructure:"fetcher"`
	Scoring     ScoringConfig    `mapstructure:"scoring"`
	LLM         LLMConfig        `mapstructure:"llm"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
	Notifiers   []NotifierConfig `mapstructure:"notifiers"`
	CatalogPath string           `mapstructure:"catalog_path"` // empty uses the embedded catalog
	LexiconPath string           `mapstructure:"lexicon_path"` // empty uses the embedded lexicon
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

type StorageConfig struct {
	Quotes  QuoteStorageConfig   `mapstructure:"quotes"`
	Archive ArchiveStorageConfig `mapstructure:"archive"`
}

type QuoteStorageConfig struct {
	Type string `mapstructure:"type"` // "sqlite" or "memory"
	Path string `mapstructure:"path"` // sqlite database file
}

type ArchiveStorageConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Type          string   `mapstructure:"type"` // "localfs" or "s3"
	Path          string   `mapstructure:"path"` // For localfs
	S3            S3Config `mapstructure:"s3"`   // For S3
	RetentionDays int      `mapstructure:"retention_days"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MarketDataConfig tunes the quote provider client.
type MarketDataConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxJitter   time.Duration `mapstructure:"max_jitter"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type NewsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	MaxItems int           `mapstructure:"max_items"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PolymarketConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// FetcherConfig controls the daily cycle.
type FetcherConfig struct {
	Workers      int     `mapstructure:"workers"`
	DefaultFX    float64 `mapstructure:"default_fx"`
	HistoryRange string  `mapstructure:"history_range"`
	Schedule     string  `mapstructure:"schedule"` // cron spec with seconds
	ReportDir    string  `mapstructure:"report_dir"`
}

type ScoringConfig struct {
	MinScore   float64 `mapstructure:"min_score"`
	AvoidScore float64 `mapstructure:"avoid_score"`
	MaxItems   int     `mapstructure:"max_items"`
}

type LLMConfig struct {
	Provider    string       `mapstructure:"provider"`
	Language    string       `mapstructure:"language"`
	MaxTokens   int          `mapstructure:"max_tokens"`
	Temperature float64      `mapstructure:"temperature"`
	Claude      ClaudeConfig `mapstructure:"claude"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
	Ollama      OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotifierConfig enables one channel for cycle summaries.
type NotifierConfig struct {
	Type   string         `mapstructure:"type"` // telegram, webhook or email
	Params map[string]any `mapstructure:"params"`
}

// Load reads configuration from file over the defaults. Keys absent from
// the file keep their default value.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("RADAR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
	}

	// Expand ${VAR} string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Quotes: QuoteStorageConfig{
				Type: "sqlite",
				Path: "data/radar.db",
			},
			Archive: ArchiveStorageConfig{
				Type:          "localfs",
				Path:          "data/archive",
				RetentionDays: 90,
			},
		},
		MarketData: MarketDataConfig{
			Timeout:     15 * time.Second,
			MaxRetries:  5,
			BaseDelay:   time.Second,
			MaxJitter:   250 * time.Millisecond,
			MinInterval: 500 * time.Millisecond,
		},
		News: NewsConfig{
			Enabled:  true,
			MaxItems: 10,
			Timeout:  10 * time.Second,
		},
		Polymarket: PolymarketConfig{
			Enabled: true,
			Timeout: 15 * time.Second,
		},
		Fetcher: FetcherConfig{
			Workers:      1,
			DefaultFX:    6.20,
			HistoryRange: "max",
			Schedule:     "0 0 19 * * 1-5",
			ReportDir:    "exports",
		},
		Scoring: ScoringConfig{
			MinScore:   3,
			AvoidScore: -2,
			MaxItems:   12,
		},
		LLM: LLMConfig{
			Language:  "pt-BR",
			MaxTokens: 1500,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

var historyRanges = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true, "1y": true, "5y": true, "max": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Storage.Quotes.Type {
	case "memory":
	case "sqlite":
		if c.Storage.Quotes.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.quotes.path required for sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown quote storage %q", c.Storage.Quotes.Type))
	}

	if c.Storage.Archive.Enabled {
		switch c.Storage.Archive.Type {
		case "localfs":
			if c.Storage.Archive.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.archive.path required for localfs"))
			}
		case "s3":
			if c.Storage.Archive.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("storage.archive.s3.bucket required for s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown archive storage %q", c.Storage.Archive.Type))
		}
	}

	if c.MarketData.MaxRetries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("marketdata.max_retries cannot be negative, got %d", c.MarketData.MaxRetries))
	}
	if c.MarketData.MinInterval < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("marketdata.min_interval cannot be negative"))
	}

	if c.Fetcher.Workers < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fetcher.workers must be at least 1, got %d", c.Fetcher.Workers))
	}
	if c.Fetcher.DefaultFX <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fetcher.default_fx must be positive, got %f", c.Fetcher.DefaultFX))
	}
	if !historyRanges[c.Fetcher.HistoryRange] {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fetcher.history_range %q is not a chart range", c.Fetcher.HistoryRange))
	}

	if c.Scoring.MaxItems < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("scoring.max_items must be at least 1, got %d", c.Scoring.MaxItems))
	}
	if c.Scoring.AvoidScore >= c.Scoring.MinScore {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("scoring.avoid_score must be below min_score"))
	}

	seen := map[string]bool{}
	for _, n := range c.Notifiers {
		switch n.Type {
		case "telegram", "webhook", "email":
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown notifier %q", n.Type))
		}
		if seen[n.Type] {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("notifier %q configured twice", n.Type))
		}
		seen[n.Type] = true
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
		}
	}

	return nil
}
