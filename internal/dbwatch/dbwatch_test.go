package dbwatch

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	// One connection per handle so data_version semantics are exact.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// counterDetector is a detector the test can bump directly.
func counterDetector(v *atomic.Int64) Detector {
	return func(context.Context, *sql.DB) (int64, error) {
		return v.Load(), nil
	}
}

func startWatcher(t *testing.T, w *Watcher, action func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx, action)
	// Let the initial version seed before the test bumps anything.
	time.Sleep(50 * time.Millisecond)
}

func TestRunFiresOnVersionChange(t *testing.T) {
	var version atomic.Int64
	var runs atomic.Int32
	w := New(nil, Options{
		Interval: 20 * time.Millisecond,
		Detector: counterDetector(&version),
		Logger:   slog.New(slog.DiscardHandler),
	})
	startWatcher(t, w, func() error {
		runs.Add(1)
		return nil
	})

	version.Store(1)
	time.Sleep(80 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected 1 run, got %d", got)
	}

	version.Store(2)
	time.Sleep(80 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected 2 runs, got %d", got)
	}

	// Quiet database, no extra runs.
	time.Sleep(80 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Fatalf("expected still 2, got %d", got)
	}
}

func TestRunDebouncesBursts(t *testing.T) {
	var version atomic.Int64
	var runs atomic.Int32
	w := New(nil, Options{
		Interval: 20 * time.Millisecond,
		Debounce: 100 * time.Millisecond,
		Detector: counterDetector(&version),
		Logger:   slog.New(slog.DiscardHandler),
	})
	startWatcher(t, w, func() error {
		runs.Add(1)
		return nil
	})

	for i := int64(1); i <= 5; i++ {
		version.Store(i)
		time.Sleep(15 * time.Millisecond)
	}
	if got := runs.Load(); got != 0 {
		t.Fatalf("expected 0 runs during the quiet window, got %d", got)
	}

	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected exactly 1 debounced run, got %d", got)
	}
}

func TestRunRetriesFailedAction(t *testing.T) {
	var version atomic.Int64
	var calls atomic.Int32
	w := New(nil, Options{
		Interval: 20 * time.Millisecond,
		Detector: counterDetector(&version),
		Logger:   slog.New(slog.DiscardHandler),
	})
	startWatcher(t, w, func() error {
		if calls.Add(1) == 1 {
			return errors.New("render failed")
		}
		return nil
	})

	version.Store(1)
	time.Sleep(120 * time.Millisecond)

	if got := calls.Load(); got < 2 {
		t.Fatalf("expected a retry after the failure, got %d calls", got)
	}
	if v := w.Version(); v != 1 {
		t.Fatalf("expected version 1 after the retry, got %d", v)
	}
}

func TestDataVersionSeesOtherConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.db")
	reader := testDB(t, path)
	writer := testDB(t, path)
	ctx := context.Background()

	if _, err := writer.Exec("CREATE TABLE clips (id INTEGER PRIMARY KEY, content TEXT)"); err != nil {
		t.Fatal(err)
	}

	before, err := DataVersion(ctx, reader)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := writer.Exec("INSERT INTO clips (content) VALUES ('from the daemon')"); err != nil {
		t.Fatal(err)
	}

	after, err := DataVersion(ctx, reader)
	if err != nil {
		t.Fatal(err)
	}
	if after == before {
		t.Fatalf("data_version did not move: before=%d after=%d", before, after)
	}
}

func TestStatsCount(t *testing.T) {
	var version atomic.Int64
	w := New(nil, Options{
		Interval: 20 * time.Millisecond,
		Detector: counterDetector(&version),
		Logger:   slog.New(slog.DiscardHandler),
	})
	startWatcher(t, w, func() error { return nil })

	version.Store(1)
	time.Sleep(80 * time.Millisecond)

	s := w.Stats()
	if s.Checks == 0 {
		t.Error("expected checks > 0")
	}
	if s.Changes == 0 {
		t.Error("expected changes > 0")
	}
	if s.Runs == 0 {
		t.Error("expected runs > 0")
	}
}
