package archive

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Index provides suffix-based lookup over a read archive. The export's root
// directory name is unpredictable, so callers locate files by the tail of the
// path they care about. The index is read-only and safe for concurrent use.
type Index struct {
	entries []Entry
}

// NewIndex builds an index over the given entries.
func NewIndex(entries []Entry) *Index {
	return &Index{entries: entries}
}

// Find returns the first entry whose path ends with the given suffix.
func (x *Index) Find(suffix string) (*Entry, bool) {
	for i := range x.entries {
		if strings.HasSuffix(x.entries[i].Path, suffix) {
			return &x.entries[i], true
		}
	}
	return nil, false
}

// LoadJSON locates an entry by suffix and decodes it into v. A missing file is
// a normal condition and returns (false, nil); a file that exists but fails to
// decode returns an error.
func (x *Index) LoadJSON(suffix string, v any) (bool, error) {
	e, ok := x.Find(suffix)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", suffix, err)
	}
	return true, nil
}

// Filter returns every entry whose path satisfies pred, in index order.
func (x *Index) Filter(pred func(path string) bool) []*Entry {
	var out []*Entry
	for i := range x.entries {
		if pred(x.entries[i].Path) {
			out = append(out, &x.entries[i])
		}
	}
	return out
}

// Len returns the number of indexed entries.
func (x *Index) Len() int { return len(x.entries) }

// TotalBytes returns the summed decompressed size of all entries.
func (x *Index) TotalBytes() int64 {
	var n int64
	for i := range x.entries {
		n += int64(len(x.entries[i].Data))
	}
	return n
}
