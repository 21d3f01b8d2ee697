// CLAUDE:SUMMARY Content-addressed SQLite store for clips: upsert-by-hash, retention eviction, settings, collections.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/clipkeeper/dbopen"
)

// Clip kinds.
const (
	KindText  = "text"
	KindImage = "image"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrHashCollision = errors.New("store: content hash already exists")
	ErrNameTaken     = errors.New("store: collection name already exists")
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS clips (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	content       TEXT NOT NULL DEFAULT '',
	content_hash  TEXT NOT NULL UNIQUE,
	kind          TEXT NOT NULL DEFAULT 'text',
	category      TEXT NOT NULL DEFAULT 'text',
	subtype       TEXT NOT NULL DEFAULT '',
	image_path    TEXT NOT NULL DEFAULT '',
	thumb_path    TEXT NOT NULL DEFAULT '',
	image_width   INTEGER NOT NULL DEFAULT 0,
	image_height  INTEGER NOT NULL DEFAULT 0,
	pinned        INTEGER NOT NULL DEFAULT 0,
	favorite      INTEGER NOT NULL DEFAULT 0,
	is_snippet    INTEGER NOT NULL DEFAULT 0,
	sensitive     INTEGER NOT NULL DEFAULT 0,
	use_count     INTEGER NOT NULL DEFAULT 1,
	metadata      TEXT NOT NULL DEFAULT '{}',
	collection_id INTEGER REFERENCES collections(id) ON DELETE SET NULL,
	created_at    INTEGER NOT NULL,
	used_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clips_used_at  ON clips(used_at);
CREATE INDEX IF NOT EXISTS idx_clips_category ON clips(category);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Clip is one stored clipboard capture. Identity is the content hash; the
// numeric id is a convenience for lookups and ordering.
type Clip struct {
	ID           int64             `json:"id"`
	Content      string            `json:"content,omitempty"`
	Hash         string            `json:"content_hash"`
	Kind         string            `json:"kind"`
	Category     string            `json:"category"`
	Subtype      string            `json:"subtype,omitempty"`
	ImagePath    string            `json:"image_path,omitempty"`
	ThumbPath    string            `json:"thumb_path,omitempty"`
	ImageWidth   int               `json:"image_width,omitempty"`
	ImageHeight  int               `json:"image_height,omitempty"`
	Pinned       bool              `json:"pinned"`
	Favorite     bool              `json:"favorite"`
	Snippet      bool              `json:"is_snippet"`
	Sensitive    bool              `json:"sensitive"`
	UseCount     int               `json:"use_count"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CollectionID int64             `json:"collection_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UsedAt       time.Time         `json:"used_at"`
}

// Preview returns a single-line display form of the clip, whitespace
// collapsed and capped at 120 runes.
func (c Clip) Preview() string {
	if c.Kind == KindImage {
		if c.ImageWidth > 0 {
			return fmt.Sprintf("image %dx%d", c.ImageWidth, c.ImageHeight)
		}
		return "image"
	}
	return Truncate(c.Content, 120)
}

// Truncate collapses runs of whitespace into single spaces and caps the
// result at n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// HashBytes returns the hex SHA-256 digest identifying clip content.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return fmt.Sprintf("%x", h)
}

// HashText hashes the exact bytes of s.
func HashText(s string) string {
	return HashBytes([]byte(s))
}

// Store persists clips, collections, and settings in SQLite. Safe for
// concurrent use; writers from different goroutines serialize on the
// database lock.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the clip database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, err
	}
	s := New(db, logger)
	if err := s.seedDefaults(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-opened database. The schema must be present.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// OpenMemory returns a Store backed by in-memory SQLite for tests.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(schema))
	s := New(db, nil)
	if err := s.seedDefaults(context.Background()); err != nil {
		t.Fatalf("store.OpenMemory: seed defaults: %v", err)
	}
	return s
}

// DB exposes the underlying handle for read-only consumers.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
