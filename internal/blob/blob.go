// Package blob stores binary media extracted from the archive behind one
// contract with two backends: a streamed filesystem store (preferred) and a
// batched embedded key-value fallback. The backend is selected once by a
// capability probe before any normalizer runs.
package blob

import (
	"io"
	"regexp"
	"strings"
	"time"

	"igarchive/internal/model"
)

// Store is the blob storage contract shared by both backends. Implementations
// serialize their own writes; callers need no external locking.
type Store interface {
	// Put stores the bytes from r under the flattened form of uri and
	// returns the storage key. Storing the same uri twice is safe.
	Put(uri string, ts time.Time, kind model.MediaKind, r io.Reader) (string, error)

	// Get writes the blob identified by key to w.
	Get(key string, w io.Writer) error

	// Flush commits any batched writes.
	Flush() error

	// Clear discards all stored blobs. Runs before every ingestion.
	Clear() error

	Close() error
}

var reservedChars = regexp.MustCompile(`[<>:"|?*]`)

// FlattenURI turns a logical archive URI into a filesystem-safe storage key:
// leading slashes stripped, path separators and reserved characters replaced
// with underscores.
func FlattenURI(uri string) string {
	key := strings.TrimLeft(uri, "/")
	key = strings.ReplaceAll(key, "/", "_")
	return reservedChars.ReplaceAllString(key, "_")
}
