package config

import (
	"path/filepath"
	"time"
)

// Config is the top-level entropy beacon configuration.
type Config struct {
	LogLevel       string         `yaml:"log_level"`
	Data           DataConfig     `yaml:"data"`
	HashIterations int            `yaml:"hash_iterations"`
	Timeout        time.Duration  `yaml:"timeout"`
	Retry          RetryConfig    `yaml:"retry"`
	PublicKeyURL   string         `yaml:"public_key_url"`
	Sources        []SourceConfig `yaml:"sources"`
	Publish        PublishConfig  `yaml:"publish"`
	Ledger         LedgerConfig   `yaml:"ledger"`
	Alerts         AlertsConfig   `yaml:"alerts"`
	Watch          WatchConfig    `yaml:"watch"`

	// Secrets are only ever read from the environment.
	Secrets Secrets `yaml:"-"`
}

// DataConfig lays out the working directory. Relative names resolve
// against Dir.
type DataConfig struct {
	Dir            string `yaml:"dir"`
	PayloadDir     string `yaml:"payload_dir"`
	RecordFile     string `yaml:"record_file"`
	PreviousRecord string `yaml:"previous_record_file"`
	IndexDir       string `yaml:"index_dir"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

type SourceConfig struct {
	Name      string            `yaml:"name"`
	Kind      string            `yaml:"kind"` // http, websocket, timestamp
	URL       string            `yaml:"url"`
	Headers   map[string]string `yaml:"headers"`
	Subscribe string            `yaml:"subscribe"` // websocket only
	Extract   string            `yaml:"extract"`   // gjson path
	Expect    string            `yaml:"expect"`    // CEL over payload
	Essential bool              `yaml:"essential"`
}

type PublishConfig struct {
	Driver string        `yaml:"driver"` // "http" or "sqlite"; empty disables publishing
	URL    string        `yaml:"url"`
	Path   string        `yaml:"path"`
	TTL    time.Duration `yaml:"ttl"`
}

type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type AlertsConfig struct {
	Webhook WebhookAlertConfig `yaml:"webhook"`
}

type WebhookAlertConfig struct {
	URL string `yaml:"url"`
}

type WatchConfig struct {
	Settle time.Duration `yaml:"settle"`
}

// Secrets holds credentials supplied through environment variables.
type Secrets struct {
	SigningKey    string `env:"ENTROPY_SIGNING_KEY"`
	PublicKey     string `env:"ENTROPY_PUBLIC_KEY"`
	ExternalID    string `env:"ENTROPY_EXTERNAL_ID"`
	StoreToken    string `env:"ENTROPY_STORE_TOKEN"`
	HeartbeatURL  string `env:"ENTROPY_HEARTBEAT_URL"`
	WebhookSecret string `env:"ENTROPY_WEBHOOK_SECRET"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Data: DataConfig{
			Dir:            "./data",
			PayloadDir:     "entropy",
			RecordFile:     "entropy.json",
			PreviousRecord: "entropy_previous.json",
			IndexDir:       "index",
		},
		HashIterations: 500000,
		Timeout:        10 * time.Second,
		Retry: RetryConfig{
			Attempts: 5,
			Delay:    2 * time.Second,
		},
		Sources: []SourceConfig{
			{Name: "timestamp", Kind: "timestamp"},
		},
		Publish: PublishConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "./data/ledger.db",
		},
		Watch: WatchConfig{
			Settle: 500 * time.Millisecond,
		},
	}
}

// DataPath resolves a name from DataConfig against the data directory.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Data.Dir, name)
}
