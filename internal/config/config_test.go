package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/radar/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090

storage:
  quotes:
    type: sqlite
    path: "/tmp/radar/radar.db"
  archive:
    enabled: true
    type: s3
    s3:
      bucket: radar-snapshots
      prefix: daily

marketdata:
  min_interval: 750ms
  max_retries: 3

fetcher:
  workers: 4

notifiers:
  - type: telegram
    params:
      bot_token: "abc"
      chat_id: "42"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Archive.Type != "s3" || cfg.Storage.Archive.S3.Bucket != "radar-snapshots" {
		t.Errorf("unexpected archive config %+v", cfg.Storage.Archive)
	}
	if cfg.MarketData.MinInterval != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.MarketData.MinInterval)
	}
	if cfg.Fetcher.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Fetcher.Workers)
	}

	if len(cfg.Notifiers) != 1 || cfg.Notifiers[0].Type != "telegram" {
		t.Errorf("unexpected notifiers %+v", cfg.Notifiers)
	} else if cfg.Notifiers[0].Params["chat_id"] != "42" {
		t.Errorf("expected chat_id param, got %v", cfg.Notifiers[0].Params)
	}

	// untouched keys keep their defaults
	if cfg.Fetcher.DefaultFX != 6.20 {
		t.Errorf("expected default fx 6.20, got %f", cfg.Fetcher.DefaultFX)
	}
	if cfg.MarketData.BaseDelay != time.Second {
		t.Errorf("expected base delay 1s, got %v", cfg.MarketData.BaseDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("RADAR_TEST_CLAUDE_KEY", "sk-test")
	path := writeConfig(t, `
llm:
  provider: claude
  claude:
    api_key: "${RADAR_TEST_CLAUDE_KEY}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.LLM.Claude.APIKey != "sk-test" {
		t.Errorf("expected expanded key, got %q", cfg.LLM.Claude.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.MarketData.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.MarketData.MaxRetries)
	}
	if cfg.Scoring.MinScore != 3 || cfg.Scoring.MaxItems != 12 {
		t.Errorf("unexpected scoring defaults %+v", cfg.Scoring)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"invalid port - zero", func(c *Config) { c.Server.Port = 0 }, core.ErrConfigInvalid},
		{"invalid port - too high", func(c *Config) { c.Server.Port = 70000 }, core.ErrConfigInvalid},
		{"unknown quote store", func(c *Config) { c.Storage.Quotes.Type = "postgres" }, core.ErrConfigInvalid},
		{"sqlite without path", func(c *Config) { c.Storage.Quotes.Path = "" }, core.ErrConfigMissing},
		{"memory without path", func(c *Config) {
			c.Storage.Quotes.Type = "memory"
			c.Storage.Quotes.Path = ""
		}, nil},
		{"s3 archive without bucket", func(c *Config) {
			c.Storage.Archive.Enabled = true
			c.Storage.Archive.Type = "s3"
		}, core.ErrConfigMissing},
		{"disabled archive is not checked", func(c *Config) { c.Storage.Archive.Type = "ftp" }, nil},
		{"negative retries", func(c *Config) { c.MarketData.MaxRetries = -1 }, core.ErrConfigInvalid},
		{"zero workers", func(c *Config) { c.Fetcher.Workers = 0 }, core.ErrConfigInvalid},
		{"non-positive fx", func(c *Config) { c.Fetcher.DefaultFX = 0 }, core.ErrConfigInvalid},
		{"bad history range", func(c *Config) { c.Fetcher.HistoryRange = "2y" }, core.ErrConfigInvalid},
		{"avoid above min", func(c *Config) { c.Scoring.AvoidScore = 4 }, core.ErrConfigInvalid},
		{"claude without key", func(c *Config) { c.LLM.Provider = "claude" }, core.ErrConfigMissing},
		{"ollama needs nothing", func(c *Config) { c.LLM.Provider = "ollama" }, nil},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }, core.ErrConfigInvalid},
		{"unknown notifier", func(c *Config) {
			c.Notifiers = []NotifierConfig{{Type: "pager"}}
		}, core.ErrConfigInvalid},
		{"duplicate notifier", func(c *Config) {
			c.Notifiers = []NotifierConfig{{Type: "webhook"}, {Type: "webhook"}}
		}, core.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
