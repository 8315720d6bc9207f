package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded config fails validation.
var ErrInvalidConfig = errors.New("config: invalid")

// Loader reads a YAML config file, overlays environment secrets and
// validates the result.
type Loader struct {
	mu     sync.RWMutex
	config *Config
	path   string
}

// NewLoader returns a Loader holding DefaultConfig until Load is called.
func NewLoader() *Loader {
	return &Loader{config: DefaultConfig()}
}

// Load parses path over the defaults. Fields absent from the file keep
// their default values.
func (l *Loader) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := LoadSecrets(cfg); err != nil {
		return err
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.config = cfg
	l.path = path
	return nil
}

// Get returns the current config.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Path returns the file the config was loaded from, if any.
func (l *Loader) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

// LoadSecrets overlays environment secrets onto cfg.
func LoadSecrets(cfg *Config) error {
	if err := env.Parse(&cfg.Secrets); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

var knownKinds = map[string]bool{"http": true, "websocket": true, "timestamp": true}

// Validate checks cfg for values the pipeline cannot run with.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.HashIterations <= 0 {
		problems = append(problems, "hash_iterations must be positive")
	}
	if cfg.Retry.Attempts < 1 {
		problems = append(problems, "retry.attempts must be at least 1")
	}
	if cfg.Retry.Delay < 0 {
		problems = append(problems, "retry.delay must not be negative")
	}
	if cfg.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if cfg.Data.PayloadDir == "" || cfg.Data.RecordFile == "" || cfg.Data.PreviousRecord == "" || cfg.Data.IndexDir == "" {
		problems = append(problems, "data paths must not be empty")
	}

	seen := make(map[string]bool)
	for i, s := range cfg.Sources {
		switch {
		case s.Name == "":
			problems = append(problems, fmt.Sprintf("sources[%d]: name is required", i))
		case strings.ContainsAny(s.Name, `/\`) || s.Name == "." || s.Name == "..":
			problems = append(problems, fmt.Sprintf("sources[%d]: name %q is not a plain file name", i, s.Name))
		case seen[s.Name]:
			problems = append(problems, fmt.Sprintf("sources[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true

		if !knownKinds[s.Kind] {
			problems = append(problems, fmt.Sprintf("sources[%d]: unknown kind %q", i, s.Kind))
		}
		if (s.Kind == "http" || s.Kind == "websocket") && s.URL == "" {
			problems = append(problems, fmt.Sprintf("sources[%d]: url is required for kind %q", i, s.Kind))
		}
	}

	switch cfg.Publish.Driver {
	case "":
	case "http":
		if cfg.Publish.URL == "" {
			problems = append(problems, "publish.url is required for the http driver")
		}
	case "sqlite":
		if cfg.Publish.Path == "" {
			problems = append(problems, "publish.path is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("publish.driver %q is not one of http, sqlite", cfg.Publish.Driver))
	}
	if cfg.Publish.Driver != "" && cfg.Publish.TTL <= 0 {
		problems = append(problems, "publish.ttl must be positive")
	}

	if cfg.Ledger.Enabled && cfg.Ledger.Path == "" {
		problems = append(problems, "ledger.path is required when the ledger is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// GenerateDefault writes a starter config file to path.
func GenerateDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultYAML), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

const defaultYAML = `# entropybeacon configuration
log_level: info

data:
  dir: ./data
  payload_dir: entropy
  record_file: entropy.json
  previous_record_file: entropy_previous.json
  index_dir: index

hash_iterations: 500000
timeout: 10s
retry:
  attempts: 5
  delay: 2s

# URL serving {"key": "<hex ed25519 public key>"}; ENTROPY_PUBLIC_KEY is
# used when this is empty.
public_key_url: ""

sources:
  - name: timestamp
    kind: timestamp
  # - name: drand
  #   kind: http
  #   url: https://api.drand.sh/public/latest
  #   expect: "has(payload.randomness)"
  #   essential: true

publish:
  driver: ""   # http or sqlite
  url: ""
  path: ./data/published.db
  ttl: 168h

ledger:
  enabled: true
  path: ./data/ledger.db

alerts:
  webhook:
    url: ""

watch:
  settle: 500ms
`
