package beacon

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/entropybeacon/entropybeacon/internal/blobstore"
	"github.com/entropybeacon/entropybeacon/internal/digest"
	"github.com/entropybeacon/entropybeacon/internal/signing"
)

// DefaultIterations is the number of digest rounds in a commitment.
const DefaultIterations = 500000

// createdAtLayout matches millisecond-precision UTC ISO-8601 timestamps.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Draft is a sorted file set and chain link awaiting its commitment hash.
type Draft struct {
	Files          []FileRecord
	HashType       string
	HashIterations int
	PrevHash       string
}

// NewDraft sorts files and links the draft to previous, which may be nil
// for the first record of a chain.
func NewDraft(files []FileRecord, iterations int, previous *SignedRecord) Draft {
	d := Draft{
		Files:          SortFiles(files),
		HashType:       digest.Algorithm,
		HashIterations: iterations,
	}
	if previous != nil {
		d.PrevHash = previous.Hash
	}
	return d
}

// Commit runs the iterated hash and stamps the record with now.
func (d Draft) Commit(now time.Time) Record {
	return Record{
		Files:          d.Files,
		HashType:       d.HashType,
		HashIterations: d.HashIterations,
		Hash:           ChainHash(d.Files, d.HashIterations),
		PrevHash:       d.PrevHash,
		CreatedAt:      now.UTC().Format(createdAtLayout),
	}
}

// Sign signs the record's commitment hash. Only the hash string is signed,
// never the serialized record.
func (r Record) Sign(key ed25519.PrivateKey) (SignedRecord, error) {
	if len(key) == 0 {
		return SignedRecord{}, fmt.Errorf("%w: %w", ErrConfiguration, signing.ErrNoPrivateKey)
	}
	sig, err := signing.Sign(key, r.Hash)
	if err != nil {
		return SignedRecord{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return SignedRecord{Record: r, Signature: sig}, nil
}

// Build hashes the payload directory and commits to it.
func Build(store blobstore.Store, payloadDir string, iterations int, previous *SignedRecord, now time.Time) (Record, error) {
	files, err := HashFiles(store, payloadDir)
	if err != nil {
		return Record{}, err
	}
	return NewDraft(files, iterations, previous).Commit(now), nil
}
