package archive

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ReadDir produces entries from a pre-expanded export directory, equivalent to
// reading the same files out of a zip. Entry paths are slash-separated and
// include the root directory's own name, so suffix lookups behave the same as
// for archive input. Unreadable files are logged and skipped.
func ReadDir(ctx context.Context, root string, logger *slog.Logger) ([]Entry, error) {
	root = filepath.Clean(root)
	base := filepath.Dir(root)

	var entries []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(base, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}

		data, err := os.ReadFile(p)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", p, "error", err)
			return nil
		}

		name := filepath.ToSlash(rel)
		entries = append(entries, Entry{
			Path:        name,
			Data:        data,
			ContentType: ContentTypeFor(name),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking export directory: %w", err)
	}
	return entries, nil
}
