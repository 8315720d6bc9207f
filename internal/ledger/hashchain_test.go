package ledger

import (
	"testing"

	"github.com/entropybeacon/entropybeacon/internal/beacon"
)

// buildChain commits n linked records with a tiny iteration count and wraps
// each in a ledger entry.
func buildChain(t *testing.T, n int) []*Entry {
	t.Helper()
	var entries []*Entry
	var prev *beacon.SignedRecord
	for i := range n {
		files := []beacon.FileRecord{
			{Name: "a.json", Hash: string(rune('a'+i)) + "0", HashType: "sha256"},
			{Name: "b.json", Hash: "ff", HashType: "sha256"},
		}
		r := beacon.NewDraft(files, 3, prev).Commit(testNow)
		signed := beacon.SignedRecord{Record: r, Signature: "00"}
		data, err := beacon.EncodeRecord(signed)
		if err != nil {
			t.Fatalf("EncodeRecord: %v", err)
		}
		entries = append(entries, &Entry{
			ID:         string(rune('A' + i)),
			Hash:       r.Hash,
			PrevHash:   r.PrevHash,
			Iterations: r.HashIterations,
			FileCount:  len(r.Files),
			Record:     data,
		})
		prev = &signed
	}
	return entries
}

func TestVerifyChain_Valid(t *testing.T) {
	valid, brokenAt := VerifyChain(buildChain(t, 4))
	if !valid || brokenAt != -1 {
		t.Errorf("VerifyChain() = (%v, %d), want (true, -1)", valid, brokenAt)
	}
}

func TestVerifyChain_Empty(t *testing.T) {
	valid, brokenAt := VerifyChain(nil)
	if !valid || brokenAt != -1 {
		t.Errorf("VerifyChain(nil) = (%v, %d), want (true, -1)", valid, brokenAt)
	}
}

func TestVerifyChain_BrokenLink(t *testing.T) {
	entries := buildChain(t, 3)
	entries = []*Entry{entries[0], entries[2]}

	valid, brokenAt := VerifyChain(entries)
	if valid || brokenAt != 1 {
		t.Errorf("VerifyChain() = (%v, %d), want (false, 1)", valid, brokenAt)
	}
}

func TestVerifyChain_ColumnMismatch(t *testing.T) {
	entries := buildChain(t, 3)
	entries[1].Hash = "0000000000000000000000000000000000000000000000000000000000000000"

	valid, brokenAt := VerifyChain(entries)
	if valid || brokenAt != 1 {
		t.Errorf("VerifyChain() = (%v, %d), want (false, 1)", valid, brokenAt)
	}
}

func TestVerifyChain_TamperedRecord(t *testing.T) {
	entries := buildChain(t, 2)
	r, err := beacon.DecodeRecord(entries[1].Record)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	r.Files[0].Hash = "ee"
	entries[1].Record, _ = beacon.EncodeRecord(*r)

	valid, brokenAt := VerifyChain(entries)
	if valid || brokenAt != 1 {
		t.Errorf("VerifyChain() = (%v, %d), want (false, 1)", valid, brokenAt)
	}
}

func TestVerifyChain_UndecodableRecord(t *testing.T) {
	entries := buildChain(t, 2)
	entries[0].Record = []byte("{not json")

	valid, brokenAt := VerifyChain(entries)
	if valid || brokenAt != 0 {
		t.Errorf("VerifyChain() = (%v, %d), want (false, 0)", valid, brokenAt)
	}
}
