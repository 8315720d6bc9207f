// Package chainindex writes content-addressed pointers from a record's
// commitment hash to the external identifier (for example a VCS commit) that
// published the following record.
package chainindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"

	"github.com/entropybeacon/entropybeacon/internal/blobstore"
	"github.com/entropybeacon/entropybeacon/internal/digest"
)

var (
	ErrInvalidInput     = errors.New("chainindex: invalid input")
	ErrNoPreviousRecord = errors.New("chainindex: no previous record to index")
)

// externalIDPattern matches a full 40-character hex revision id.
var externalIDPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Entry is one index file, stored under the hash it is keyed by.
type Entry struct {
	KeyedBy    string `json:"-"`
	ExternalID string `json:"id"`
}

// Indexer writes entries below dir in a blob store.
type Indexer struct {
	store blobstore.Store
	dir   string
}

func NewIndexer(store blobstore.Store, dir string) *Indexer {
	return &Indexer{store: store, dir: dir}
}

// Name returns the blob name an entry keyed by hash is stored under.
func (ix *Indexer) Name(hash string) string {
	return path.Join(ix.dir, hash+".json")
}

// Validate checks the shape of both inputs.
func Validate(previousHash, externalID string) error {
	if !digest.IsHexDigest(previousHash) {
		return fmt.Errorf("%w: previous hash %q is not a %s hex digest", ErrInvalidInput, previousHash, digest.Algorithm)
	}
	if !externalIDPattern.MatchString(externalID) {
		return fmt.Errorf("%w: external id %q is not a 40-character hex revision", ErrInvalidInput, externalID)
	}
	return nil
}

// Index writes an entry mapping previousHash to externalID. An empty
// previousHash means there is nothing to index yet and yields
// ErrNoPreviousRecord. Nothing is written when validation fails.
func (ix *Indexer) Index(previousHash, externalID string) (Entry, error) {
	if previousHash == "" {
		return Entry{}, ErrNoPreviousRecord
	}
	if err := Validate(previousHash, externalID); err != nil {
		return Entry{}, err
	}

	entry := Entry{KeyedBy: previousHash, ExternalID: externalID}
	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode index entry: %w", err)
	}
	if err := ix.store.Write(ix.Name(previousHash), append(data, '\n')); err != nil {
		return Entry{}, fmt.Errorf("failed to write index entry: %w", err)
	}
	return entry, nil
}

// Lookup reads the entry keyed by hash.
func (ix *Indexer) Lookup(hash string) (Entry, error) {
	if !digest.IsHexDigest(hash) {
		return Entry{}, fmt.Errorf("%w: %q is not a hex digest", ErrInvalidInput, hash)
	}
	data, err := ix.store.Read(ix.Name(hash))
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to decode index entry %s: %w", hash, err)
	}
	e.KeyedBy = hash
	return e, nil
}
