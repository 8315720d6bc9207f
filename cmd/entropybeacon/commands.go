package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/entropybeacon/entropybeacon/internal/config"
	"github.com/entropybeacon/entropybeacon/internal/ledger"
	"github.com/entropybeacon/entropybeacon/internal/pipeline"
	"github.com/entropybeacon/entropybeacon/internal/signing"
	"github.com/entropybeacon/entropybeacon/internal/watch"
)

type runOptions struct {
	collect, generate, verify, index, publish, all bool
}

func (o runOptions) phases() []pipeline.Phase {
	if o.all {
		return pipeline.Phases
	}
	var phases []pipeline.Phase
	for _, sel := range []struct {
		on    bool
		phase pipeline.Phase
	}{
		{o.collect, pipeline.PhaseCollect},
		{o.generate, pipeline.PhaseGenerate},
		{o.verify, pipeline.PhaseVerify},
		{o.index, pipeline.PhaseIndex},
		{o.publish, pipeline.PhasePublish},
	} {
		if sel.on {
			phases = append(phases, sel.phase)
		}
	}
	return phases
}

func runPipeline(ctx context.Context, configFile string, verbose bool, opts runOptions) error {
	phases := opts.phases()
	if len(phases) == 0 {
		return errors.New("no phase selected, pass at least one of --collect --generate --verify --index --publish or --all")
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, verbose)

	deps, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return pipeline.Run(ctx, deps, phases)
}

func runWatch(ctx context.Context, configFile string, verbose bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, verbose)

	deps, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recordPath := filepath.Clean(cfg.DataPath(cfg.Data.RecordFile))

	w, err := watch.NewWatcher(watch.Options{
		Dirs:   []string{filepath.Dir(recordPath)},
		Settle: cfg.Watch.Settle,
		Match:  recordMatcher(cfg),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.OnChange(func(path, op string) {
		logger.Info("change detected, verifying", "path", path, "op", op)
		if _, err := pipeline.Verify(ctx, deps); err != nil {
			logger.Error("verification failed", "error", err)
		}
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	logger.Info("watching for changes", "dir", cfg.Data.Dir)
	<-ctx.Done()
	logger.Info("shutting down...")
	return nil
}

func runLedgerList(configFile string, verbose bool, limit int) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if !cfg.Ledger.Enabled {
		return errLedgerDisabled
	}
	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, total, err := store.List(ledger.Filter{Limit: limit})
	if err != nil {
		return fmt.Errorf("failed to list ledger: %w", err)
	}

	fmt.Printf("%-26s  %-20s  %-5s  %-64s\n", "ID", "RECORDED", "FILES", "HASH")
	for _, e := range entries {
		fmt.Printf("%-26s  %-20s  %-5d  %-64s\n", e.ID, e.RecordedAt.Format("2006-01-02 15:04:05"), e.FileCount, e.Hash)
	}
	fmt.Printf("\n  %d of %d records\n", len(entries), total)
	return nil
}

func runLedgerVerify(configFile string, verbose bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if !cfg.Ledger.Enabled {
		return errLedgerDisabled
	}
	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	valid, brokenAt, count, err := ledger.New(store, newLogger(cfg, verbose)).Verify()
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("ledger chain broken at record %d of %d", brokenAt+1, count)
	}
	fmt.Printf("✓ Ledger chain intact (%d records)\n", count)
	return nil
}

func runKeygen(out io.Writer) error {
	return signing.WriteKeyPair(out, rand.Reader)
}

func runInit(configFile string) error {
	path := configFile
	if path == "" {
		path = "entropybeacon.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.GenerateDefault(path); err != nil {
		return err
	}
	fmt.Printf("✓ Created %s\n", path)
	return nil
}
