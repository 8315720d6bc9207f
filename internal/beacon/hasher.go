package beacon

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/entropybeacon/entropybeacon/internal/blobstore"
	"github.com/entropybeacon/entropybeacon/internal/digest"
)

// PayloadExtension is the extension of files collected into the payload
// directory. Other files in the directory are ignored.
const PayloadExtension = ".json"

// HashFiles digests every payload file directly inside dir. The result is in
// store listing order; use SortFiles before committing. Any unreadable file
// fails the whole call, since skipping one would silently change the
// commitment.
func HashFiles(store blobstore.Store, dir string) ([]FileRecord, error) {
	names, err := store.List(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list payload directory %s: %w", ErrIO, dir, err)
	}

	files := make([]FileRecord, 0, len(names))
	for _, name := range names {
		if !strings.EqualFold(path.Ext(name), PayloadExtension) {
			continue
		}
		data, err := store.Read(path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read payload %s: %w", ErrIO, name, err)
		}
		files = append(files, FileRecord{
			Name:     name,
			Hash:     digest.Sum(data),
			HashType: digest.Algorithm,
		})
	}
	return files, nil
}

// SortFiles returns a copy of files ordered by upper-cased name. Names are
// upper-cased with full special casing ("ß" becomes "SS") and compared by
// UTF-16 code units. The sort is stable, so names that collate equal keep
// their input order.
func SortFiles(files []FileRecord) []FileRecord {
	upper := cases.Upper(language.Und)
	keys := make(map[string][]uint16, len(files))
	for _, f := range files {
		if _, ok := keys[f.Name]; !ok {
			keys[f.Name] = utf16.Encode([]rune(upper.String(f.Name)))
		}
	}

	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b FileRecord) int {
		return slices.Compare(keys[a.Name], keys[b.Name])
	})
	return sorted
}

// ChainHash concatenates the file digests in order and applies the digest
// iterations times to the running hex string.
func ChainHash(files []FileRecord, iterations int) string {
	var b strings.Builder
	b.Grow(len(files) * digest.HexLen)
	for _, f := range files {
		b.WriteString(f.Hash)
	}
	return digest.Iterate([]byte(b.String()), iterations)
}
