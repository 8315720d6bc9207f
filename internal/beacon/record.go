// Package beacon builds, signs and verifies entropy records: deterministic,
// chained commitments over a directory of collected payload files.
//
// A cycle moves a file set through three stages. A Draft holds the sorted
// file digests and the chain link. Committing a Draft runs the iterated hash
// and yields a Record. Signing a Record yields a SignedRecord, which is what
// gets persisted. Verification recomputes a Record from the payload
// directory and compares it with the persisted one.
package beacon

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FileRecord is the digest of one payload file.
type FileRecord struct {
	Name     string `json:"name"`
	Hash     string `json:"hash"`
	HashType string `json:"hashType"`
}

// Record is a committed but unsigned entropy record.
type Record struct {
	Files          []FileRecord `json:"files"`
	HashType       string       `json:"hashType"`
	HashIterations int          `json:"hashIterations"`
	Hash           string       `json:"hash"`
	PrevHash       string       `json:"prevHash,omitempty"`
	CreatedAt      string       `json:"createdAt,omitempty"`
}

// SignedRecord is a Record plus a signature over its Hash.
type SignedRecord struct {
	Record
	Signature string `json:"signature,omitempty"`
}

// Diff describes the first difference between r and other, ignoring
// CreatedAt. It returns "" when the records are equal.
func (r Record) Diff(other Record) string {
	switch {
	case r.HashType != other.HashType:
		return fmt.Sprintf("hashType: persisted %q, computed %q", r.HashType, other.HashType)
	case r.HashIterations != other.HashIterations:
		return fmt.Sprintf("hashIterations: persisted %d, computed %d", r.HashIterations, other.HashIterations)
	case r.PrevHash != other.PrevHash:
		return fmt.Sprintf("prevHash: persisted %q, computed %q", r.PrevHash, other.PrevHash)
	}

	if d := diffFiles(r.Files, other.Files); d != "" {
		return d
	}
	if r.Hash != other.Hash {
		return fmt.Sprintf("hash: persisted %s, computed %s", r.Hash, other.Hash)
	}
	return ""
}

// Equal reports whether r and other match in every field except CreatedAt.
func (r Record) Equal(other Record) bool {
	return r.Diff(other) == ""
}

func diffFiles(persisted, computed []FileRecord) string {
	seen := make(map[string]bool, len(computed))
	for _, f := range computed {
		seen[f.Name] = true
	}
	var missing []string
	for _, f := range persisted {
		if !seen[f.Name] {
			missing = append(missing, f.Name)
		}
		delete(seen, f.Name)
	}
	if len(missing) > 0 {
		return "files: missing from payload directory: " + strings.Join(missing, ", ")
	}
	var extra []string
	for _, f := range computed {
		if seen[f.Name] {
			extra = append(extra, f.Name)
		}
	}
	if len(extra) > 0 {
		return "files: not in persisted record: " + strings.Join(extra, ", ")
	}
	if len(persisted) != len(computed) {
		return fmt.Sprintf("files: persisted %d entries, computed %d", len(persisted), len(computed))
	}

	for i := range persisted {
		p, c := persisted[i], computed[i]
		switch {
		case p.Name != c.Name:
			return fmt.Sprintf("files[%d]: persisted name %q, computed %q", i, p.Name, c.Name)
		case p.HashType != c.HashType:
			return fmt.Sprintf("files[%d] %s: persisted hashType %q, computed %q", i, p.Name, p.HashType, c.HashType)
		case p.Hash != c.Hash:
			return fmt.Sprintf("files[%d] %s: persisted hash %s, computed %s", i, p.Name, p.Hash, c.Hash)
		}
	}
	return ""
}

// EncodeRecord renders a record as indented JSON with a trailing newline.
func EncodeRecord(r SignedRecord) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeRecord parses a persisted record.
func DecodeRecord(data []byte) (*SignedRecord, error) {
	var r SignedRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if r.Hash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrMalformedRecord)
	}
	return &r, nil
}
