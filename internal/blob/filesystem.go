package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"igarchive/internal/model"
)

// fsBatchSize caps how many blob files may be open for writing at once.
const fsBatchSize = 150

// FSStore streams blobs into a per-application media directory without
// buffering whole blobs in memory. Writes go through a temp file and rename so
// a crashed run never leaves a half-written blob under its final key.
type FSStore struct {
	root string
	sem  chan struct{}
}

// NewFSStore creates (if needed) and opens a filesystem blob store rooted at
// the given directory.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &FSStore{
		root: root,
		sem:  make(chan struct{}, fsBatchSize),
	}, nil
}

func (s *FSStore) Put(uri string, ts time.Time, kind model.MediaKind, r io.Reader) (string, error) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	key := FlattenURI(uri)
	destPath := filepath.Join(s.root, key)

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("renaming blob into place: %w", err)
	}
	if !ts.IsZero() {
		// Best effort; the authoritative timestamp lives in media metadata.
		os.Chtimes(destPath, ts, ts)
	}

	success = true
	return key, nil
}

func (s *FSStore) Get(key string, w io.Writer) error {
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob not found: %s", key)
		}
		return fmt.Errorf("opening blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("reading blob: %w", err)
	}
	return nil
}

// Flush is a no-op: filesystem writes are committed on rename.
func (s *FSStore) Flush() error { return nil }

func (s *FSStore) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("clearing media directory: %w", err)
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("recreating media directory: %w", err)
	}
	return nil
}

func (s *FSStore) Close() error { return nil }

var _ Store = (*FSStore)(nil)
