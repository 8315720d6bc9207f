package beacon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/blobstore"
	"github.com/entropybeacon/entropybeacon/internal/signing"
)

// Verifier checks that a persisted record is both signed and reproducible
// from the current payload directory.
type Verifier struct {
	store      blobstore.Store
	payloadDir string
	iterations int
	keys       signing.KeySource
	logger     *slog.Logger
	now        func() time.Time
}

// NewVerifier creates a Verifier that recomputes records from payloadDir in
// store with the given iteration count.
func NewVerifier(store blobstore.Store, payloadDir string, iterations int, keys signing.KeySource, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		store:      store,
		payloadDir: payloadDir,
		iterations: iterations,
		keys:       keys,
		logger:     logger.With("component", "beacon.Verifier"),
		now:        time.Now,
	}
}

// Verify checks persisted against the fetched public key and against a
// fresh record built from the payload directory, linked to previous. It
// returns the recomputed record on success.
func (v *Verifier) Verify(ctx context.Context, persisted, previous *SignedRecord) (Record, error) {
	if persisted == nil {
		return Record{}, ErrMissingRecord
	}

	pub, err := v.keys.PublicKey(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	if len(pub) == 0 {
		return Record{}, ErrKeyUnavailable
	}

	if persisted.Signature == "" {
		return Record{}, fmt.Errorf("%w: record is unsigned", ErrInvalidSignature)
	}
	if !signing.Verify(pub, persisted.Hash, persisted.Signature) {
		return Record{}, fmt.Errorf("%w: signature does not match hash %s", ErrInvalidSignature, persisted.Hash)
	}
	v.logger.Debug("signature valid", "hash", persisted.Hash)

	computed, err := Build(v.store, v.payloadDir, v.iterations, previous, v.now())
	if err != nil {
		return Record{}, err
	}
	if diff := persisted.Record.Diff(computed); diff != "" {
		return computed, fmt.Errorf("%w: %s", ErrRecordMismatch, diff)
	}

	v.logger.Info("record verified",
		"hash", computed.Hash,
		"files", len(computed.Files),
		"iterations", computed.HashIterations,
	)
	return computed, nil
}
