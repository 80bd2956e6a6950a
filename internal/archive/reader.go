// Package archive turns a personal-data export — a zip buffer or a
// pre-expanded directory — into a flat list of entries, and indexes those
// entries for suffix-based lookup.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// readConcurrency bounds how many entry streams are drained at once.
const readConcurrency = 4

// copyChunkSize is the per-chunk read size while draining an entry stream.
const copyChunkSize = 32 * 1024

// ChunkFunc is called after every decompressed chunk with the entry's path and
// the number of bytes delivered so far across all entries. It may be nil.
type ChunkFunc func(path string, totalBytes int64)

// readState reconciles the race between entry discovery and entry completion.
// Discovery can finish while opened streams are still draining, so completion
// of the whole read is signaled only when discovery has finished and the
// completed count has caught up with the discovered count. The check runs from
// both the discovery-finished event and every per-entry completion.
type readState struct {
	mu            sync.Mutex
	discovered    int
	completed     int
	discoveryDone bool
	done          chan struct{}
}

func newReadState() *readState {
	return &readState{done: make(chan struct{})}
}

func (s *readState) entryDiscovered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discovered++
}

func (s *readState) entryCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	s.check()
}

func (s *readState) finishDiscovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discoveryDone = true
	s.check()
}

// check must be called with mu held.
func (s *readState) check() {
	if s.discoveryDone && s.completed == s.discovered {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
}

func (s *readState) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// ReadArchive decompresses a zip buffer into entries. Entries are drained
// incrementally with bounded concurrency; a corrupt entry is logged and
// skipped without aborting its siblings. Only an unreadable central directory
// fails the whole read. Directory-only entries are discarded.
func ReadArchive(ctx context.Context, data []byte, logger *slog.Logger, onChunk ChunkFunc) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading archive framing: %w", err)
	}

	state := newReadState()
	results := make([]*Entry, len(zr.File))
	var totalBytes int64
	var byteMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)

	for i, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			continue
		}
		state.entryDiscovered()

		i, f := i, f
		g.Go(func() error {
			defer state.entryCompleted()

			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := drainEntry(f, func(n int) {
				if onChunk == nil {
					return
				}
				byteMu.Lock()
				totalBytes += int64(n)
				total := totalBytes
				byteMu.Unlock()
				onChunk(f.Name, total)
			})
			if err != nil {
				logger.Warn("skipping corrupt archive entry", "path", f.Name, "error", err)
				return nil
			}

			results[i] = &Entry{
				Path:        f.Name,
				Data:        data,
				ContentType: ContentTypeFor(f.Name),
			}
			return nil
		})
	}

	state.finishDiscovery()

	if err := g.Wait(); err != nil {
		return nil, err
	}
	<-state.done

	entries := make([]Entry, 0, len(results))
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

// drainEntry opens one entry's decompression stream and reads it chunk by
// chunk until the final marker (EOF).
func drainEntry(f *zip.File, onChunk func(n int)) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry stream: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if size := f.FileInfo().Size(); size > 0 {
		buf.Grow(int(size))
	}
	chunk := make([]byte, copyChunkSize)
	for {
		n, err := rc.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			onChunk(n)
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("decompressing entry: %w", err)
		}
	}
}
