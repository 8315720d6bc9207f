package beacon

import (
	"errors"
	"fmt"

	"github.com/entropybeacon/entropybeacon/internal/blobstore"
)

// LoadRecord reads and decodes the record stored under name. A missing
// blob is reported as ErrMissingRecord.
func LoadRecord(store blobstore.Store, name string) (*SignedRecord, error) {
	data, err := store.Read(name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingRecord, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	r, err := DecodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return r, nil
}

// LoadOptionalRecord is LoadRecord that returns nil, nil when the record
// does not exist.
func LoadOptionalRecord(store blobstore.Store, name string) (*SignedRecord, error) {
	r, err := LoadRecord(store, name)
	if errors.Is(err, ErrMissingRecord) {
		return nil, nil
	}
	return r, err
}

// SaveRecord encodes r and writes it under name.
func SaveRecord(store blobstore.Store, name string, r SignedRecord) error {
	data, err := EncodeRecord(r)
	if err != nil {
		return err
	}
	if err := store.Write(name, data); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}
