// Package ingest runs a complete archive import: read, index, normalize,
// persist. One Pipeline.Run is one import run; each run starts from a clean
// store and records itself in the run history.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"igarchive/internal/archive"
	"igarchive/internal/blob"
	"igarchive/internal/model"
	"igarchive/internal/normalize"
	"igarchive/internal/progress"
	"igarchive/internal/store"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock uses the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts run ID generation for testability.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.New().String() }

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	store      *store.Store
	blobs      blob.Store
	logger     *slog.Logger
	clock      Clock
	ids        IDGenerator
	onProgress progress.Func
}

// New creates a Pipeline. onProgress may be nil.
func New(st *store.Store, blobs blob.Store, logger *slog.Logger, clock Clock, ids IDGenerator, onProgress progress.Func) *Pipeline {
	return &Pipeline{
		store:      st,
		blobs:      blobs,
		logger:     logger,
		clock:      clock,
		ids:        ids,
		onProgress: onProgress,
	}
}

// Summary describes a completed run.
type Summary struct {
	RunID    string
	Entries  int
	Bytes    int64
	Duration time.Duration
	Steps    map[string]time.Duration
	Stats    store.Stats
}

// Normalizer step weights. Messages dominate real archives, so their step
// gets the largest share of the overall percentage.
const (
	weightUsers        = 1
	weightMessages     = 4
	weightContent      = 2
	weightInteractions = 1
	weightProfile      = 1
)

// Run imports the archive at path, which may be a .zip file or an already
// extracted directory. The previous import's entities and blobs are discarded
// first; run history survives. A missing identity document aborts the run
// before anything is cleared.
func (p *Pipeline) Run(ctx context.Context, path string) (*Summary, error) {
	runID := p.ids.NewID()
	started := p.clock.Now()
	p.logger.Info("starting import", "run", runID, "path", path)

	if err := p.store.CreateImportRun(ctx, runID, started, path); err != nil {
		return nil, err
	}

	summary, err := p.run(ctx, path)
	finished := p.clock.Now()
	if err != nil {
		if ferr := p.store.FinishImportRun(ctx, runID, store.RunFailed, finished, 0, 0, err.Error()); ferr != nil {
			p.logger.Error("recording failed run", "run", runID, "error", ferr)
		}
		p.logger.Error("import failed", "run", runID, "error", err)
		return nil, err
	}

	summary.RunID = runID
	summary.Duration = finished.Sub(started)
	err = p.store.FinishImportRun(ctx, runID, store.RunSucceeded,
		finished, int64(summary.Entries), summary.Bytes, "")
	if err != nil {
		return nil, err
	}
	p.recordRunMetadata(ctx, summary)
	p.logger.Info("import finished", "run", runID,
		"entries", summary.Entries, "bytes", summary.Bytes, "duration", summary.Duration)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, path string) (*Summary, error) {
	tracker := progress.NewTracker(p.onProgress)
	readRep := tracker.Register("read", 2)

	steps := make(map[string]time.Duration)
	var stepsMu sync.Mutex
	timed := func(name string, fn func() error) func() error {
		return func() error {
			start := p.clock.Now()
			err := fn()
			stepsMu.Lock()
			steps[name] = p.clock.Now().Sub(start)
			stepsMu.Unlock()
			return err
		}
	}

	var entries []archive.Entry
	err := timed("read", func() (err error) {
		entries, err = p.readInput(ctx, path, readRep)
		return err
	})()
	if err != nil {
		return nil, err
	}
	idx := archive.NewIndex(entries)
	readRep.Done(fmt.Sprintf("%d entries read", idx.Len()))

	// Refuse to touch existing data unless the input looks like a real
	// export.
	if _, ok := idx.Find(normalize.IdentityFile); !ok {
		return nil, normalize.ErrMissingIdentity
	}

	if err := p.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("resetting store: %w", err)
	}
	if err := p.blobs.Clear(); err != nil {
		return nil, fmt.Errorf("clearing blob store: %w", err)
	}

	usersRep := tracker.Register("users", weightUsers)
	messagesRep := tracker.Register("messages", weightMessages)
	contentRep := tracker.Register("content", weightContent)
	interactionsRep := tracker.Register("interactions", weightInteractions)
	profileRep := tracker.Register("profile", weightProfile)

	var (
		users        []model.User
		messages     normalize.MessagesResult
		content      normalize.ContentResult
		interactions normalize.InteractionsResult
		profile      normalize.ProfileResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(timed("users", func() (err error) {
		users, err = normalize.Users(gctx, idx, p.logger, usersRep)
		return err
	}))
	g.Go(timed("messages", func() (err error) {
		messages, err = normalize.Messages(gctx, idx, p.blobs, p.logger, messagesRep)
		return err
	}))
	g.Go(timed("content", func() (err error) {
		content, err = normalize.Content(gctx, idx, p.blobs, p.logger, contentRep)
		return err
	}))
	g.Go(timed("interactions", func() (err error) {
		interactions, err = normalize.Interactions(gctx, idx, p.logger, interactionsRep)
		return err
	}))
	g.Go(timed("profile", func() (err error) {
		profile, err = normalize.Profile(gctx, idx, p.blobs, p.logger, profileRep)
		return err
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := p.blobs.Flush(); err != nil {
		return nil, fmt.Errorf("flushing blob store: %w", err)
	}

	if err := p.persist(ctx, users, messages, content, interactions, profile); err != nil {
		return nil, err
	}

	stats, err := p.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Entries: idx.Len(),
		Bytes:   idx.TotalBytes(),
		Steps:   steps,
		Stats:   stats,
	}, nil
}

// recordRunMetadata stores the latest successful run's summary in the
// settings area. Best effort: the import_runs row is the durable record.
func (p *Pipeline) recordRunMetadata(ctx context.Context, summary *Summary) {
	meta, err := json.Marshal(summary)
	if err == nil {
		err = p.store.SetSetting(ctx, "last_import", string(meta))
	}
	if err != nil {
		p.logger.Warn("recording run metadata", "error", err)
	}
}

// readInput reads either a zip archive or an extracted directory.
func (p *Pipeline) readInput(ctx context.Context, path string, rep *progress.Reporter) ([]archive.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if info.IsDir() {
		rep.Report(0, "walking "+path)
		return archive.ReadDir(ctx, path, p.logger)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".zip") {
		p.logger.Warn("input has no .zip extension, reading as zip anyway", "path", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	// The compressed size is only a lower bound on the decompressed total,
	// so the percentage is clamped below done until the read returns.
	total := float64(len(data))
	return archive.ReadArchive(ctx, data, p.logger, func(entry string, totalBytes int64) {
		rep.Report(min(float64(totalBytes)/total*100, 99), "reading "+entry)
	})
}

// persist writes each entity group in its own transaction. Groups are
// independent: one failing is logged and the rest still land. Messages are
// the exception, they need their conversations in place first.
func (p *Pipeline) persist(ctx context.Context, users []model.User,
	messages normalize.MessagesResult, content normalize.ContentResult,
	interactions normalize.InteractionsResult, profile normalize.ProfileResult) error {

	var errs []error
	fail := func(group string, err error) {
		p.logger.Error("persisting entity group failed", "group", group, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", group, err))
	}

	if err := p.store.WriteUsers(ctx, users); err != nil {
		fail("users", err)
	}

	media := mergeMedia(messages.Media, content.Media, profile.Media)
	if err := p.store.WriteMedia(ctx, media); err != nil {
		fail("media", err)
	}

	if err := p.store.WriteConversations(ctx, messages.Conversations); err != nil {
		fail("conversations", err)
	} else if err := p.store.WriteMessages(ctx, messages.Messages); err != nil {
		fail("messages", err)
	}

	if err := p.store.WriteContent(ctx, content.Posts, content.Stories); err != nil {
		fail("content", err)
	}
	if err := p.store.WriteInteractions(ctx, interactions.Liked, interactions.Saved, interactions.Comments); err != nil {
		fail("interactions", err)
	}
	if err := p.store.WriteProfile(ctx, profile.Profile, profile.Changes); err != nil {
		fail("profile", err)
	}
	return errors.Join(errs...)
}

// mergeMedia deduplicates media metadata from all normalizers by URI. First
// occurrence wins.
func mergeMedia(lists ...[]model.MediaMetadata) []model.MediaMetadata {
	seen := make(map[string]bool)
	var out []model.MediaMetadata
	for _, list := range lists {
		for _, m := range list {
			if !seen[m.URI] {
				seen[m.URI] = true
				out = append(out, m)
			}
		}
	}
	return out
}
