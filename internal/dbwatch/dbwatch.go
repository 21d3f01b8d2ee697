// Package dbwatch polls a SQLite database for writes landing from other
// connections and runs an action when one does. clipbar uses it to
// re-render its waybar line whenever the daemon stores a clip.
package dbwatch

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// Detector reads a version token from the database. Two calls returning
// different values mean something changed.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling cadence. Default 1s.
	Interval time.Duration
	// Debounce holds the action back until the database has been quiet
	// this long. 0 fires immediately.
	Debounce time.Duration
	// Detector defaults to DataVersion.
	Detector Detector
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = DataVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls for database changes and runs an action on each one.
type Watcher struct {
	db   *sql.DB
	opts Options

	// version is the last token a successful action covered.
	version atomic.Int64

	checks  atomic.Int64
	changes atomic.Int64
	errs    atomic.Int64
	runs    atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks  int64 `json:"checks"`
	Changes int64 `json:"changes"`
	Errors  int64 `json:"errors"`
	Runs    int64 `json:"runs"`
}

// New creates a Watcher. Call Run to start polling.
func New(db *sql.DB, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{db: db, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Checks:  w.checks.Load(),
		Changes: w.changes.Load(),
		Errors:  w.errs.Load(),
		Runs:    w.runs.Load(),
	}
}

// Version returns the last version token a successful action covered.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Run blocks until ctx is canceled, polling at the configured interval.
// When the detector reports a new version and the debounce window
// passes quietly, action runs. A failing action does not advance the
// version, so the next poll retries it.
func (w *Watcher) Run(ctx context.Context, action func() error) {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("dbwatch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := int64(-1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				w.errs.Add(1)
				log.Warn("dbwatch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(log, action, pending)
				pending = -1
				continue
			}
			// Restart the quiet window only when the pending version
			// moved again, not on every poll.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			if pending >= 0 {
				w.fire(log, action, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) fire(log *slog.Logger, action func() error, ver int64) {
	if err := action(); err != nil {
		w.errs.Add(1)
		log.Error("dbwatch: action failed", "error", err, "version", ver)
		return
	}
	w.runs.Add(1)
	w.version.Store(ver)
	log.Debug("dbwatch: action ran", "version", ver)
}

// DataVersion reads PRAGMA data_version, which moves whenever another
// connection writes the database file. Writes on the watcher's own
// connection do not move it.
func DataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}
