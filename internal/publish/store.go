// Package publish pushes finished records to a remote keyed store.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrNotFound = errors.New("publish: key not found")

// Store is a key-value store whose entries expire after a TTL.
type Store interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Pruner is implemented by stores that expire entries locally and need
// expired rows removed.
type Pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// LatestKey always points at the newest record.
const LatestKey = "latest"

// Publisher writes a record under LatestKey and under its own hash.
type Publisher struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewPublisher(store Store, ttl time.Duration, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "publish.Publisher"),
	}
}

// Publish stores the encoded record. The hash key is written first so
// "latest" never points at a record that is not also addressable by hash.
func (p *Publisher) Publish(ctx context.Context, hash string, record []byte) error {
	for _, key := range []string{hash, LatestKey} {
		if err := p.store.Put(ctx, key, record, p.ttl); err != nil {
			return fmt.Errorf("failed to publish %s: %w", key, err)
		}
	}
	p.logger.Info("record published", "hash", hash, "ttl", p.ttl)

	if pruner, ok := p.store.(Pruner); ok {
		removed, err := pruner.PruneExpired(ctx)
		if err != nil {
			p.logger.Warn("failed to prune expired records", "error", err)
		} else if removed > 0 {
			p.logger.Debug("pruned expired records", "count", removed)
		}
	}
	return nil
}
