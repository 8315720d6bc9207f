package main

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/entropybeacon/entropybeacon/internal/beacon"
	"github.com/entropybeacon/entropybeacon/internal/blobstore"
	"github.com/entropybeacon/entropybeacon/internal/collect"
	"github.com/entropybeacon/entropybeacon/internal/config"
	"github.com/entropybeacon/entropybeacon/internal/ledger"
	"github.com/entropybeacon/entropybeacon/internal/notify"
	"github.com/entropybeacon/entropybeacon/internal/pipeline"
	"github.com/entropybeacon/entropybeacon/internal/publish"
	"github.com/entropybeacon/entropybeacon/internal/retry"
	"github.com/entropybeacon/entropybeacon/internal/signing"
)

func findConfigFile() string {
	candidates := []string{
		"entropybeacon.yaml",
		"entropybeacon.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "entropybeacon", "config.yaml"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// loadConfig reads the config file if one is found and always overlays the
// environment secrets, so a bare environment is enough to run.
func loadConfig(configFile string) (*config.Config, error) {
	loader := config.NewLoader()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loader.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return loader.Get(), nil
	}

	cfg := loader.Get()
	if err := config.LoadSecrets(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})).
		With("run_id", ulid.Make().String())
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay}
}

// buildDeps wires every configured collaborator. The returned cleanup
// closes any databases that were opened.
func buildDeps(cfg *config.Config, logger *slog.Logger) (pipeline.Deps, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	fail := func(err error) (pipeline.Deps, func(), error) {
		cleanup()
		return pipeline.Deps{}, func() {}, err
	}

	policy := retryPolicy(cfg)
	deps := pipeline.Deps{
		Store: blobstore.NewFSStore(cfg.Data.Dir),
		Layout: pipeline.Layout{
			PayloadDir:     cfg.Data.PayloadDir,
			RecordFile:     cfg.Data.RecordFile,
			PreviousRecord: cfg.Data.PreviousRecord,
			IndexDir:       cfg.Data.IndexDir,
		},
		Iterations: cfg.HashIterations,
		Retry:      policy,
		ExternalID: cfg.Secrets.ExternalID,
		Out:        os.Stdout,
		Logger:     logger,
	}

	for _, sc := range cfg.Sources {
		src, err := collect.New(collect.Spec{
			Name:      sc.Name,
			Kind:      sc.Kind,
			URL:       sc.URL,
			Headers:   sc.Headers,
			Subscribe: sc.Subscribe,
			Extract:   sc.Extract,
			Expect:    sc.Expect,
			Essential: sc.Essential,
		}, collect.Options{Timeout: cfg.Timeout})
		if err != nil {
			return fail(fmt.Errorf("%w: %w", beacon.ErrConfiguration, err))
		}
		deps.Sources = append(deps.Sources, src)
	}

	if cfg.Secrets.SigningKey != "" {
		key, err := signing.ParsePrivateKey(cfg.Secrets.SigningKey)
		if err != nil {
			return fail(fmt.Errorf("%w: ENTROPY_SIGNING_KEY: %w", beacon.ErrConfiguration, err))
		}
		deps.SigningKey = key
	}

	switch {
	case cfg.PublicKeyURL != "":
		deps.Keys = signing.NewHTTPKeySource(cfg.PublicKeyURL, cfg.Timeout, policy, logger)
	case cfg.Secrets.PublicKey != "":
		pub, err := signing.ParsePublicKey(cfg.Secrets.PublicKey)
		if err != nil {
			return fail(fmt.Errorf("%w: ENTROPY_PUBLIC_KEY: %w", beacon.ErrConfiguration, err))
		}
		deps.Keys = signing.StaticKey(pub)
	case deps.SigningKey != nil:
		logger.Warn("no public_key_url or ENTROPY_PUBLIC_KEY set, verifying against the local signing key")
		deps.Keys = signing.StaticKey(deps.SigningKey.Public().(ed25519.PublicKey))
	}

	switch cfg.Publish.Driver {
	case "http":
		store := publish.NewHTTPStore(cfg.Publish.URL, cfg.Secrets.StoreToken, cfg.Timeout, policy, logger)
		deps.Publisher = publish.NewPublisher(store, cfg.Publish.TTL, logger)
	case "sqlite":
		if err := ensureDir(cfg.Publish.Path); err != nil {
			return fail(err)
		}
		store, err := publish.NewSQLiteStore(cfg.Publish.Path)
		if err != nil {
			return fail(fmt.Errorf("failed to open publish store: %w", err))
		}
		closers = append(closers, store.Close)
		deps.Publisher = publish.NewPublisher(store, cfg.Publish.TTL, logger)
	}

	if cfg.Secrets.HeartbeatURL != "" {
		deps.Heartbeat = notify.NewHeartbeat(cfg.Secrets.HeartbeatURL, cfg.Timeout, policy, logger)
	}

	var senders []notify.Sender
	if cfg.Alerts.Webhook.URL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Alerts.Webhook.URL, cfg.Secrets.WebhookSecret, cfg.Timeout, policy, logger))
	}
	deps.Alerts = notify.NewManager(logger, senders...)

	if cfg.Ledger.Enabled {
		store, err := openLedger(cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, store.Close)
		deps.Ledger = ledger.New(store, logger)
	}

	return deps, cleanup, nil
}

func openLedger(cfg *config.Config) (*ledger.SQLiteStore, error) {
	if err := ensureDir(cfg.Ledger.Path); err != nil {
		return nil, err
	}
	store, err := ledger.NewSQLiteStore(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := store.Initialize(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	return store, nil
}

func ensureDir(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", file, err)
	}
	return nil
}

// recordMatcher matches writes to the record file only. Payload and
// previous record writes happen mid-cycle, before the record they belong to
// exists, so they must not trigger verification.
func recordMatcher(cfg *config.Config) func(path string) bool {
	recordPath := filepath.Clean(cfg.DataPath(cfg.Data.RecordFile))
	return func(path string) bool {
		return filepath.Clean(path) == recordPath
	}
}

var errLedgerDisabled = errors.New("ledger is disabled in config")
