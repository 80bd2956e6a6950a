// Package store persists normalized entities in SQLite. Writes are grouped
// into one transaction per entity family so a failure in one family never
// poisons the others.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"igarchive/internal/model"
	"igarchive/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store wraps the SQLite connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) a SQLite database at path and configures it.
// path may be ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// OpenConnection opens and configures a raw SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a matching
// connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite ships with foreign keys off.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}

// Migrate brings the schema to the latest version.
func (s *Store) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is up to date.
func (s *Store) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Path returns the database file path (":memory:" for in-memory stores).
func (s *Store) Path() string { return s.path }

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// entityTables lists every table holding normalized archive data, in an order
// that respects foreign keys when deleting. Run history and settings survive a
// reset.
var entityTables = []string{
	"messages",
	"conversations",
	"users",
	"media",
	"posts",
	"stories",
	"comments",
	"liked_posts",
	"saved_posts",
	"profile",
	"profile_changes",
}

// Reset discards all previously imported entities so a new run starts clean.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range entityTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Stats reports row counts per entity table.
type Stats struct {
	Users         int
	Conversations int
	Messages      int
	Media         int
	Posts         int
	Stories       int
	Comments      int
	LikedPosts    int
	SavedPosts    int
}

// Stats counts the imported entities.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, c := range []struct {
		table string
		dst   *int
	}{
		{"users", &st.Users},
		{"conversations", &st.Conversations},
		{"messages", &st.Messages},
		{"media", &st.Media},
		{"posts", &st.Posts},
		{"stories", &st.Stories},
		{"comments", &st.Comments},
		{"liked_posts", &st.LikedPosts},
		{"saved_posts", &st.SavedPosts},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return st, nil
}

// flagTime converts a relationship flag to its nullable column value. A flag
// with no observation time still stores as non-NULL so the relationship is not
// lost.
func flagTime(f *model.Flag) sql.NullInt64 {
	if f == nil {
		return sql.NullInt64{}
	}
	if f.ObservedAt.IsZero() {
		return sql.NullInt64{Valid: true}
	}
	return sql.NullInt64{Int64: f.ObservedAt.Unix(), Valid: true}
}

// timeFromNull decodes a nullable unix-seconds column.
func timeFromNull(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}

// flagFromNull is the inverse of flagTime.
func flagFromNull(v sql.NullInt64) *model.Flag {
	if !v.Valid {
		return nil
	}
	if v.Int64 == 0 {
		return &model.Flag{}
	}
	return &model.Flag{ObservedAt: time.Unix(v.Int64, 0).UTC()}
}
