package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"igarchive/internal/model"
)

// kvBatchSize is how many blobs accumulate in one write batch before it is
// flushed. Smaller than the filesystem store's limit: the embedded store holds
// whole values in the batch until commit.
const kvBatchSize = 50

// BadgerStore is the transactional fallback backend, used when the filesystem
// store's capability probe fails. Blobs are batched into an embedded Badger
// database under the same key-flattening scheme.
type BadgerStore struct {
	db *badger.DB

	mu      sync.Mutex
	batch   *badger.WriteBatch
	pending int
}

// badgerLogger adapts slog to Badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.logger.Error(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.logger.Warn(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Infof(format string, args ...any)    { l.logger.Debug(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Debugf(format string, args ...any)   { l.logger.Debug(fmt.Sprintf(format, args...)) }

// NewBadgerStore opens (creating if needed) a Badger-backed blob store at the
// given directory. An empty path opens an in-memory store, used in tests.
func NewBadgerStore(path string, logger *slog.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening blob database: %w", err)
	}
	return &BadgerStore{db: db, batch: db.NewWriteBatch()}, nil
}

func (s *BadgerStore) Put(uri string, ts time.Time, kind model.MediaKind, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading blob bytes: %w", err)
	}
	key := FlattenURI(uri)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.batch.Set([]byte(key), data); err != nil {
		return "", fmt.Errorf("batching blob %s: %w", key, err)
	}
	s.pending++
	if s.pending >= kvBatchSize {
		if err := s.flushLocked(); err != nil {
			return "", err
		}
	}
	return key, nil
}

func (s *BadgerStore) Get(key string, w io.Writer) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			_, werr := io.Copy(w, bytes.NewReader(val))
			return werr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("blob not found: %s", key)
	}
	if err != nil {
		return fmt.Errorf("reading blob: %w", err)
	}
	return nil
}

func (s *BadgerStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked commits the current write batch and starts a new one. Callers
// must hold mu.
func (s *BadgerStore) flushLocked() error {
	if err := s.batch.Flush(); err != nil {
		return fmt.Errorf("flushing blob batch: %w", err)
	}
	s.batch = s.db.NewWriteBatch()
	s.pending = 0
	return nil
}

func (s *BadgerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch.Cancel()
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clearing blob database: %w", err)
	}
	s.batch = s.db.NewWriteBatch()
	s.pending = 0
	return nil
}

func (s *BadgerStore) Close() error {
	if err := s.Flush(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
