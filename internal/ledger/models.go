// Package ledger keeps an append-only local history of every signed record
// the beacon has generated, so the whole chain can be audited after the
// working record files have been overwritten.
package ledger

import (
	"encoding/json"
	"time"
)

// Entry is one generated record as stored in the ledger.
type Entry struct {
	ID         string          `json:"id" db:"id"`
	Hash       string          `json:"hash" db:"hash"`
	PrevHash   string          `json:"prev_hash,omitempty" db:"prev_hash"`
	Iterations int             `json:"iterations" db:"iterations"`
	FileCount  int             `json:"file_count" db:"file_count"`
	Signed     bool            `json:"signed" db:"signed"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
	Record     json.RawMessage `json:"record" db:"record"`
}

// Filter narrows a ledger listing.
type Filter struct {
	Since  time.Time
	Limit  int
	Offset int
}
