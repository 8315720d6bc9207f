package pipeline

import (
	"crypto/ed25519"
	"io"
	"log/slog"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/blobstore"
	"github.com/entropybeacon/entropybeacon/internal/collect"
	"github.com/entropybeacon/entropybeacon/internal/ledger"
	"github.com/entropybeacon/entropybeacon/internal/notify"
	"github.com/entropybeacon/entropybeacon/internal/publish"
	"github.com/entropybeacon/entropybeacon/internal/retry"
	"github.com/entropybeacon/entropybeacon/internal/signing"
)

// Layout names the blobs a cycle reads and writes.
type Layout struct {
	PayloadDir     string
	RecordFile     string
	PreviousRecord string
	IndexDir       string
}

// DefaultLayout matches the default data directory layout.
var DefaultLayout = Layout{
	PayloadDir:     "entropy",
	RecordFile:     "entropy.json",
	PreviousRecord: "entropy_previous.json",
	IndexDir:       "index",
}

// Deps is everything a phase may touch. Optional collaborators are nil
// when not configured; the phases that need them skip or fail accordingly.
type Deps struct {
	Store      blobstore.Store
	Layout     Layout
	Iterations int
	// Retry defaults to retry.DefaultPolicy when Attempts is zero.
	Retry retry.Policy

	Sources    []collect.Source
	SigningKey ed25519.PrivateKey
	Keys       signing.KeySource
	ExternalID string

	Publisher *publish.Publisher
	Heartbeat *notify.Heartbeat
	Alerts    *notify.Manager
	Ledger    *ledger.Ledger

	// Out receives the printed record. Nil discards it.
	Out    io.Writer
	Logger *slog.Logger
	Now    func() time.Time
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) retry() retry.Policy {
	if d.Retry.Attempts == 0 {
		return retry.DefaultPolicy
	}
	return d.Retry
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) out() io.Writer {
	if d.Out == nil {
		return io.Discard
	}
	return d.Out
}
