package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/beacon"
	"github.com/oklog/ulid/v2"
)

// Ledger records signed records into a Store.
type Ledger struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  store,
		logger: logger.With("component", "ledger.Ledger"),
		now:    time.Now,
	}
}

// Record appends r to the ledger and returns the stored entry.
func (l *Ledger) Record(r beacon.SignedRecord) (*Entry, error) {
	data, err := beacon.EncodeRecord(r)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		ID:         ulid.Make().String(),
		Hash:       r.Hash,
		PrevHash:   r.PrevHash,
		Iterations: r.HashIterations,
		FileCount:  len(r.Files),
		Signed:     r.Signature != "",
		RecordedAt: l.now().UTC(),
		Record:     data,
	}
	if err := l.store.Append(e); err != nil {
		return nil, err
	}
	l.logger.Debug("ledger entry appended", "id", e.ID, "hash", e.Hash)
	return e, nil
}

// Verify loads the full chain and checks it with VerifyChain.
func (l *Ledger) Verify() (valid bool, brokenAt int, count int, err error) {
	entries, err := l.store.Chain()
	if err != nil {
		return false, -1, 0, fmt.Errorf("failed to load ledger chain: %w", err)
	}
	valid, brokenAt = VerifyChain(entries)
	if !valid {
		l.logger.Warn("ledger chain broken", "index", brokenAt, "id", entries[brokenAt].ID)
	}
	return valid, brokenAt, len(entries), nil
}
