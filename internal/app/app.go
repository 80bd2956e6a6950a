// Package app is the layer between the CLI and the ingestion pipeline. It
// constructs all dependencies from config and manages their lifecycle on
// Close.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"igarchive/internal/blob"
	"igarchive/internal/config"
	"igarchive/internal/ingest"
	"igarchive/internal/progress"
	"igarchive/internal/store"
)

// App owns the store, the blob backend and the logger.
type App struct {
	cfg     *config.Config
	store   *store.Store
	blobs   blob.Store
	logger  *slog.Logger
	logFile *os.File
}

// New creates a fully wired App from the given config. The caller must call
// Close when done.
func New(cfg *config.Config) (*App, error) {
	runTag := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runTag)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	st, err := newStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := st.CheckMigrations(); err != nil {
		logger.Info("database schema not current, migrating", "reason", err)
		if err := st.Migrate(); err != nil {
			st.Close()
			logFile.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	blobs, err := blob.New(cfg.Media.Type, cfg.Media.MediaDir, cfg.Media.KVDir, logger)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	return &App{
		cfg:     cfg,
		store:   st,
		blobs:   blobs,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// newStoreFromConfig creates a Store based on the database config type.
func newStoreFromConfig(cfg config.DatabaseConfig) (*store.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return store.Open(filepath.Join(cfg.DataDir, "iga.db"))
	case "memory":
		return store.Open(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// Import runs a full ingestion of the archive at path. onProgress may be nil.
func (a *App) Import(ctx context.Context, path string, onProgress progress.Func) (*ingest.Summary, error) {
	p := ingest.New(a.store, a.blobs, a.logger, ingest.RealClock{}, ingest.UUIDGenerator{}, onProgress)
	return p.Run(ctx, path)
}

// History returns the most recent import runs, newest first.
func (a *App) History(ctx context.Context, limit int) ([]store.ImportRun, error) {
	return a.store.ListImportRuns(ctx, limit)
}

// Stats returns row counts for the imported entities.
func (a *App) Stats(ctx context.Context) (store.Stats, error) {
	return a.store.Stats(ctx)
}

// Close releases all resources. The first error wins; later closes still run.
func (a *App) Close() error {
	var firstErr error
	if err := a.blobs.Close(); err != nil {
		firstErr = fmt.Errorf("closing blob store: %w", err)
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
