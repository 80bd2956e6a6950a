package blob

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Probe checks whether the filesystem media area is usable by creating,
// writing and removing a probe file in it. Selection happens once per
// ingestion run, before any normalizer starts, and is stable for the run.
func Probe(mediaRoot string) bool {
	if err := os.MkdirAll(mediaRoot, 0755); err != nil {
		return false
	}
	probePath := filepath.Join(mediaRoot, ".probe")
	if err := os.WriteFile(probePath, []byte{}, 0644); err != nil {
		return false
	}
	os.Remove(probePath)
	return true
}

// New selects and opens a blob store. storeType is "auto", "filesystem" or
// "badger"; "auto" probes the filesystem area and falls back to the embedded
// store when the probe fails.
func New(storeType, mediaRoot, kvRoot string, logger *slog.Logger) (Store, error) {
	switch storeType {
	case "filesystem":
		return NewFSStore(mediaRoot)
	case "badger":
		return NewBadgerStore(kvRoot, logger)
	case "auto", "":
		if Probe(mediaRoot) {
			logger.Debug("blob store selected", "backend", "filesystem", "root", mediaRoot)
			return NewFSStore(mediaRoot)
		}
		logger.Warn("filesystem media area unavailable, using embedded store", "root", mediaRoot)
		return NewBadgerStore(kvRoot, logger)
	default:
		return nil, fmt.Errorf("unknown media store type: %s", storeType)
	}
}
