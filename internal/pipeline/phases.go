package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/entropybeacon/entropybeacon/internal/beacon"
	"github.com/entropybeacon/entropybeacon/internal/blobstore"
	"github.com/entropybeacon/entropybeacon/internal/chainindex"
	"github.com/entropybeacon/entropybeacon/internal/collect"
	"github.com/entropybeacon/entropybeacon/internal/notify"
	"github.com/entropybeacon/entropybeacon/internal/signing"
)

// Run executes the selected phases in cycle order and stops at the first
// error.
func Run(ctx context.Context, deps Deps, selected []Phase) error {
	logger := deps.logger().With("component", "pipeline.Run")
	for _, phase := range Ordered(selected) {
		logger.Info("phase starting", "phase", phase.String())
		var err error
		switch phase {
		case PhaseCollect:
			_, err = Collect(ctx, deps)
		case PhaseGenerate:
			_, err = Generate(ctx, deps)
		case PhaseVerify:
			_, err = Verify(ctx, deps)
		case PhaseIndex:
			_, err = Index(ctx, deps)
		case PhasePublish:
			err = Publish(ctx, deps)
		}
		if err != nil {
			if phase == PhaseGenerate {
				generationAlert(ctx, deps, err)
			}
			return fmt.Errorf("%s: %w", phase, err)
		}
	}
	return nil
}

// Collect fetches every source and replaces the payload directory with the
// successful payloads. Failed non-essential sources are logged and left
// out. A failed essential source aborts before anything is written.
func Collect(ctx context.Context, deps Deps) ([]collect.Result, error) {
	logger := deps.logger().With("component", "pipeline.Collect")

	results := collect.NewCollector(deps.Sources, deps.retry(), deps.Logger).Collect(ctx)
	if failed, ok := collect.EssentialFailure(results); ok {
		return results, fmt.Errorf("essential source %s: %w", failed.Source, failed.Err)
	}

	succeeded, failed := collect.Partition(results)
	for _, r := range failed {
		logger.Warn("source failed, continuing without it",
			"source", r.Source,
			"attempts", deps.retry().Attempts,
			"error", r.Err,
		)
	}

	if err := clearPayloads(deps.Store, deps.Layout.PayloadDir); err != nil {
		return results, err
	}
	for _, r := range succeeded {
		name := path.Join(deps.Layout.PayloadDir, r.Source+beacon.PayloadExtension)
		if err := deps.Store.Write(name, r.Payload); err != nil {
			return results, fmt.Errorf("%w: %w", beacon.ErrIO, err)
		}
	}

	logger.Info("sources collected", "succeeded", len(succeeded), "failed", len(failed))
	return results, nil
}

func clearPayloads(store blobstore.Store, dir string) error {
	names, err := store.List(dir)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", beacon.ErrIO, err)
	}
	for _, name := range names {
		if err := store.Remove(path.Join(dir, name)); err != nil {
			return fmt.Errorf("%w: %w", beacon.ErrIO, err)
		}
	}
	return nil
}

// Generate commits to the payload directory, chains to the current record
// and signs the result. Only once the new record is signed is the current
// record copied to the previous record slot and replaced. The new record is
// then appended to the ledger and printed.
func Generate(ctx context.Context, deps Deps) (beacon.SignedRecord, error) {
	logger := deps.logger().With("component", "pipeline.Generate")

	if len(deps.SigningKey) == 0 {
		return beacon.SignedRecord{}, fmt.Errorf("%w: %w", beacon.ErrConfiguration, signing.ErrNoPrivateKey)
	}

	files, err := beacon.HashFiles(deps.Store, deps.Layout.PayloadDir)
	if err != nil {
		return beacon.SignedRecord{}, err
	}
	if len(files) == 0 {
		return beacon.SignedRecord{}, fmt.Errorf("%w: %s", beacon.ErrEmptyPayloadSet, deps.Layout.PayloadDir)
	}

	currentData, previous, err := readCurrent(deps.Store, deps.Layout)
	if err != nil {
		return beacon.SignedRecord{}, err
	}

	record := beacon.NewDraft(files, deps.Iterations, previous).Commit(deps.now())
	signed, err := record.Sign(deps.SigningKey)
	if err != nil {
		return beacon.SignedRecord{}, err
	}
	if err := replaceRecord(deps.Store, deps.Layout, currentData, signed); err != nil {
		return beacon.SignedRecord{}, err
	}
	logger.Info("record generated",
		"hash", signed.Hash,
		"prev_hash", signed.PrevHash,
		"files", len(signed.Files),
		"iterations", signed.HashIterations,
	)

	if deps.Ledger != nil {
		if _, err := deps.Ledger.Record(signed); err != nil {
			return signed, fmt.Errorf("failed to append to ledger: %w", err)
		}
	}

	return signed, printRecord(deps, signed)
}

// readCurrent returns the current record's raw bytes and its decoded form,
// or nil, nil when there is no current record.
func readCurrent(store blobstore.Store, layout Layout) ([]byte, *beacon.SignedRecord, error) {
	data, err := store.Read(layout.RecordFile)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", beacon.ErrIO, err)
	}
	current, err := beacon.DecodeRecord(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", layout.RecordFile, err)
	}
	return data, current, nil
}

// replaceRecord moves currentData byte for byte into the previous record
// slot and writes next as the current record. If writing next fails the
// previous slot is restored, so the untouched current record still links
// to it. With no current record the previous slot is cleared.
func replaceRecord(store blobstore.Store, layout Layout, currentData []byte, next beacon.SignedRecord) error {
	oldPrevious, err := store.Read(layout.PreviousRecord)
	if errors.Is(err, blobstore.ErrNotFound) {
		oldPrevious = nil
	} else if err != nil {
		return fmt.Errorf("%w: %w", beacon.ErrIO, err)
	}

	if currentData == nil {
		err = store.Remove(layout.PreviousRecord)
	} else {
		err = store.Write(layout.PreviousRecord, currentData)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", beacon.ErrIO, err)
	}

	saveErr := beacon.SaveRecord(store, layout.RecordFile, next)
	if saveErr == nil {
		return nil
	}

	var restoreErr error
	if oldPrevious == nil {
		restoreErr = store.Remove(layout.PreviousRecord)
	} else {
		restoreErr = store.Write(layout.PreviousRecord, oldPrevious)
	}
	if restoreErr != nil {
		return errors.Join(saveErr, fmt.Errorf("%w: failed to restore %s: %w", beacon.ErrIO, layout.PreviousRecord, restoreErr))
	}
	return saveErr
}

// Verify checks the current record's signature and recomputes it from the
// payload directory, linked to the previous record copy. Integrity failures
// raise an alert before the error is returned.
func Verify(ctx context.Context, deps Deps) (beacon.SignedRecord, error) {
	logger := deps.logger().With("component", "pipeline.Verify")

	persisted, err := beacon.LoadRecord(deps.Store, deps.Layout.RecordFile)
	if err != nil {
		alert(ctx, deps, err, "")
		return beacon.SignedRecord{}, err
	}
	previous, err := beacon.LoadOptionalRecord(deps.Store, deps.Layout.PreviousRecord)
	if err != nil {
		return beacon.SignedRecord{}, err
	}
	if deps.Keys == nil {
		return beacon.SignedRecord{}, fmt.Errorf("%w: no public key source configured", beacon.ErrConfiguration)
	}

	verifier := beacon.NewVerifier(deps.Store, deps.Layout.PayloadDir, deps.Iterations, deps.Keys, deps.Logger)
	if _, err := verifier.Verify(ctx, persisted, previous); err != nil {
		alert(ctx, deps, err, persisted.Hash)
		return beacon.SignedRecord{}, err
	}

	logger.Info("verification passed", "hash", persisted.Hash)
	return *persisted, printRecord(deps, *persisted)
}

// integrityFailure reports whether err means the record cannot be trusted,
// as opposed to an environmental failure.
func integrityFailure(err error) bool {
	return errors.Is(err, beacon.ErrMissingRecord) ||
		errors.Is(err, beacon.ErrMalformedRecord) ||
		errors.Is(err, beacon.ErrInvalidSignature) ||
		errors.Is(err, beacon.ErrRecordMismatch)
}

func alert(ctx context.Context, deps Deps, err error, hash string) {
	if deps.Alerts == nil || !deps.Alerts.HasSenders() || !integrityFailure(err) {
		return
	}
	a := notify.Alert{
		Type:     notify.AlertVerificationFailed,
		Severity: "critical",
		Title:    "Entropy record failed verification",
		Message:  err.Error(),
		Hash:     hash,
	}
	if sendErr := deps.Alerts.Send(ctx, a); sendErr != nil {
		deps.logger().Warn("alert delivery failed", "error", sendErr)
	}
}

func generationAlert(ctx context.Context, deps Deps, err error) {
	if deps.Alerts == nil || !deps.Alerts.HasSenders() {
		return
	}
	a := notify.Alert{
		Type:     notify.AlertGenerationFailed,
		Severity: "warning",
		Title:    "Entropy record generation failed",
		Message:  err.Error(),
	}
	if sendErr := deps.Alerts.Send(ctx, a); sendErr != nil {
		deps.logger().Warn("alert delivery failed", "error", sendErr)
	}
}

// Index maps the previous record's hash to the external identifier that
// published the current one. With no previous record there is nothing to
// index; that is logged and not treated as an error.
func Index(_ context.Context, deps Deps) (chainindex.Entry, error) {
	logger := deps.logger().With("component", "pipeline.Index")

	previous, err := beacon.LoadOptionalRecord(deps.Store, deps.Layout.PreviousRecord)
	if err != nil {
		return chainindex.Entry{}, err
	}
	prevHash := ""
	if previous != nil {
		prevHash = previous.Hash
	}

	entry, err := chainindex.NewIndexer(deps.Store, deps.Layout.IndexDir).Index(prevHash, deps.ExternalID)
	if errors.Is(err, chainindex.ErrNoPreviousRecord) {
		logger.Info("no previous record, skipping index")
		return chainindex.Entry{}, nil
	}
	if err != nil {
		return chainindex.Entry{}, err
	}

	logger.Info("chain indexed", "hash", entry.KeyedBy, "id", entry.ExternalID)
	return entry, nil
}

// Publish pushes the current record to the keyed store and then pings the
// heartbeat. Either collaborator may be absent.
func Publish(ctx context.Context, deps Deps) error {
	logger := deps.logger().With("component", "pipeline.Publish")

	if deps.Publisher != nil {
		record, err := beacon.LoadRecord(deps.Store, deps.Layout.RecordFile)
		if err != nil {
			return err
		}
		data, err := beacon.EncodeRecord(*record)
		if err != nil {
			return err
		}
		if err := deps.Publisher.Publish(ctx, record.Hash, data); err != nil {
			return err
		}
	} else {
		logger.Info("no publish store configured, skipping upload")
	}

	if deps.Heartbeat != nil {
		if err := deps.Heartbeat.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func printRecord(deps Deps, r beacon.SignedRecord) error {
	data, err := beacon.EncodeRecord(r)
	if err != nil {
		return err
	}
	if _, err := deps.out().Write(data); err != nil {
		return fmt.Errorf("failed to print record: %w", err)
	}
	return nil
}
