package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entropybeacon.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoader_LoadValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
log_level: debug

data:
  dir: /var/lib/beacon

hash_iterations: 1000
timeout: 3s
retry:
  attempts: 2
  delay: 100ms

public_key_url: https://keys.example.com/beacon

sources:
  - name: drand
    kind: http
    url: https://api.drand.sh/public/latest
    extract: randomness
    expect: "size(payload) == 64"
    essential: true
  - name: ticker
    kind: websocket
    url: wss://stream.example.com/ws
    subscribe: '{"op":"subscribe"}'
    headers:
      Authorization: Bearer abc

publish:
  driver: http
  url: https://kv.example.com/values
  ttl: 48h
`)

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	cfg := loader.Get()

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want \"debug\"", cfg.LogLevel)
	}
	if cfg.HashIterations != 1000 {
		t.Errorf("HashIterations = %d, want 1000", cfg.HashIterations)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.Retry.Attempts != 2 || cfg.Retry.Delay != 100*time.Millisecond {
		t.Errorf("Retry = %+v", cfg.Retry)
	}

	// Unset data fields keep their defaults.
	if cfg.Data.Dir != "/var/lib/beacon" {
		t.Errorf("Data.Dir = %q", cfg.Data.Dir)
	}
	if cfg.Data.RecordFile != "entropy.json" {
		t.Errorf("Data.RecordFile = %q, want default", cfg.Data.RecordFile)
	}
	if got := cfg.DataPath(cfg.Data.PayloadDir); got != "/var/lib/beacon/entropy" {
		t.Errorf("DataPath(payload) = %q", got)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("Sources length = %d, want 2", len(cfg.Sources))
	}
	if s := cfg.Sources[0]; s.Name != "drand" || s.Kind != "http" || !s.Essential || s.Extract != "randomness" {
		t.Errorf("Sources[0] = %+v", s)
	}
	if s := cfg.Sources[1]; s.Subscribe == "" || s.Headers["Authorization"] != "Bearer abc" {
		t.Errorf("Sources[1] = %+v", s)
	}

	if cfg.Publish.Driver != "http" || cfg.Publish.TTL != 48*time.Hour {
		t.Errorf("Publish = %+v", cfg.Publish)
	}
	if loader.Path() != configPath {
		t.Errorf("Path() = %q, want %q", loader.Path(), configPath)
	}
}

func TestLoader_DefaultConfig(t *testing.T) {
	loader := NewLoader()
	cfg := loader.Get()

	if cfg.HashIterations != 500000 {
		t.Errorf("default HashIterations = %d, want 500000", cfg.HashIterations)
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.Delay != 2*time.Second {
		t.Errorf("default Retry = %+v", cfg.Retry)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("default Timeout = %v", cfg.Timeout)
	}
	if cfg.Publish.TTL != 7*24*time.Hour {
		t.Errorf("default Publish.TTL = %v", cfg.Publish.TTL)
	}
	if got := cfg.DataPath(cfg.Data.RecordFile); got != filepath.Join("data", "entropy.json") {
		t.Errorf("default record path = %q", got)
	}
	if got := cfg.DataPath(cfg.Data.PreviousRecord); got != filepath.Join("data", "entropy_previous.json") {
		t.Errorf("default previous record path = %q", got)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "sources: [unterminated\n")

	loader := NewLoader()
	if err := loader.Load(configPath); err == nil {
		t.Error("Load() should fail on invalid YAML")
	}
	if loader.Get().HashIterations != 500000 {
		t.Error("failed Load() should keep the previous config")
	}
}

func TestLoader_MissingFile(t *testing.T) {
	if err := NewLoader().Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero iterations", func(c *Config) { c.HashIterations = 0 }, "hash_iterations"},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }, "retry.attempts"},
		{"unknown driver", func(c *Config) { c.Publish.Driver = "s3" }, "publish.driver"},
		{"http driver without url", func(c *Config) { c.Publish.Driver = "http" }, "publish.url"},
		{"unknown kind", func(c *Config) { c.Sources = []SourceConfig{{Name: "x", Kind: "ftp"}} }, "unknown kind"},
		{"duplicate names", func(c *Config) {
			c.Sources = []SourceConfig{{Name: "t", Kind: "timestamp"}, {Name: "t", Kind: "timestamp"}}
		}, "duplicate name"},
		{"path in name", func(c *Config) { c.Sources = []SourceConfig{{Name: "../x", Kind: "timestamp"}} }, "plain file name"},
		{"http without url", func(c *Config) { c.Sources = []SourceConfig{{Name: "x", Kind: "http"}} }, "url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("ENTROPY_SIGNING_KEY", "abcd")
	t.Setenv("ENTROPY_EXTERNAL_ID", "0123456789abcdef0123456789abcdef01234567")
	t.Setenv("ENTROPY_WEBHOOK_SECRET", "shh")

	cfg := DefaultConfig()
	if err := LoadSecrets(cfg); err != nil {
		t.Fatalf("LoadSecrets() error: %v", err)
	}
	if cfg.Secrets.SigningKey != "abcd" {
		t.Errorf("SigningKey = %q", cfg.Secrets.SigningKey)
	}
	if cfg.Secrets.ExternalID != "0123456789abcdef0123456789abcdef01234567" {
		t.Errorf("ExternalID = %q", cfg.Secrets.ExternalID)
	}
	if cfg.Secrets.WebhookSecret != "shh" {
		t.Errorf("WebhookSecret = %q", cfg.Secrets.WebhookSecret)
	}
}

func TestLoader_SecretsNotReadFromYAML(t *testing.T) {
	configPath := writeConfig(t, "secrets:\n  signingkey: fromfile\n")

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := loader.Get().Secrets.SigningKey; got == "fromfile" {
		t.Error("signing key must not come from the config file")
	}
}

func TestGenerateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "entropybeacon.yaml")

	if err := GenerateDefault(configPath); err != nil {
		t.Fatalf("GenerateDefault() error: %v", err)
	}

	loader := NewLoader()
	if err := loader.Load(configPath); err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}

	cfg := loader.Get()
	if cfg.HashIterations != 500000 {
		t.Errorf("generated config iterations = %d, want 500000", cfg.HashIterations)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Kind != "timestamp" {
		t.Errorf("generated config sources = %+v", cfg.Sources)
	}
}
