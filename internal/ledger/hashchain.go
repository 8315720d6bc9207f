package ledger

import (
	"github.com/entropybeacon/entropybeacon/internal/beacon"
)

// VerifyChain walks entries oldest first and checks that each stored record
// decodes, matches its indexed columns, reproduces its commitment hash from
// its own file list, and links to the entry before it.
// Returns (valid, brokenAtIndex). If valid is true, all entries check out.
func VerifyChain(entries []*Entry) (bool, int) {
	for i, e := range entries {
		r, err := beacon.DecodeRecord(e.Record)
		if err != nil {
			return false, i
		}
		if r.Hash != e.Hash || r.PrevHash != e.PrevHash {
			return false, i
		}
		if beacon.ChainHash(r.Files, r.HashIterations) != r.Hash {
			return false, i
		}
		// Check chain linkage
		if i > 0 && e.PrevHash != entries[i-1].Hash {
			return false, i
		}
	}
	return true, -1
}
