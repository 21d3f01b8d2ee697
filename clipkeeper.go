// CLAUDE:SUMMARY Daemon Service orchestrator: single-instance lock, store and blob wiring, capture monitor, control API and backup loop under one errgroup.
//
// Package clipkeeper captures the Wayland clipboard into a searchable,
// deduplicated history. The Service ties the pieces together: the
// monitor watches and classifies clipboard content, the store persists
// it in SQLite, the blob store keeps image files, and the control API
// exposes the history to local clients.
package clipkeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/clipkeeper/internal/blob"
	"github.com/hazyhaar/clipkeeper/internal/clipboard"
	"github.com/hazyhaar/clipkeeper/internal/monitor"
	"github.com/hazyhaar/clipkeeper/internal/store"
	"github.com/hazyhaar/clipkeeper/internal/title"
)

// Service is the clipkeeper daemon: capture monitor, store, control
// API and backup loop under one lifecycle.
type Service struct {
	cfg    Config
	logger *slog.Logger

	store   *store.Store
	blobs   *blob.Store
	clip    clipboard.Clipboard
	titles  *title.Fetcher
	monitor *monitor.Monitor

	lock *os.File
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClipboard substitutes the clipboard backend. Tests use this to
// run the full pipeline without a Wayland session.
func WithClipboard(c clipboard.Clipboard) ServiceOption {
	return func(s *Service) { s.clip = c }
}

// New builds a Service from cfg. It acquires the single-instance lock
// and opens the database; callers own Close once New succeeds.
func New(cfg Config, opts ...ServiceOption) (*Service, error) {
	cfg.defaults()

	s := &Service{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("clipkeeper: create data dir: %w", err)
	}
	if err := s.acquireLock(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath, s.logger)
	if err != nil {
		s.releaseLock()
		return nil, err
	}
	s.store = st
	s.blobs = blob.New(cfg.ImagesDir)

	if s.clip == nil {
		c, err := clipboard.NewWayland()
		if err != nil {
			s.store.Close()
			s.releaseLock()
			return nil, err
		}
		s.clip = c
	}
	if !cfg.DisableTitles {
		s.titles = title.NewFetcher(s.logger)
	}

	s.monitor = monitor.New(s.clip, s.store, s.blobs, monitor.Options{
		PollInterval: cfg.PollInterval,
		WatchCommand: cfg.WatchCommand,
		QueueSize:    cfg.QueueSize,
		Titles:       s.titles,
		OnClip:       s.onClip,
		Logger:       s.logger,
	})
	return s, nil
}

// Store exposes the clip store for embedding callers.
func (s *Service) Store() *store.Store { return s.store }

// Monitor exposes the capture monitor for embedding callers.
func (s *Service) Monitor() *monitor.Monitor { return s.monitor }

// Run blocks until ctx is canceled or a component fails. The monitor,
// the control API server and the backup loop run concurrently; the
// first error tears the rest down.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("clipkeeper: started",
		"db", s.cfg.DBPath,
		"listen", s.cfg.Listen,
		"images", s.cfg.ImagesDir)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.monitor.Run(ctx) })
	g.Go(func() error { return s.serveAPI(ctx) })
	g.Go(func() error { return s.backupLoop(ctx) })
	return g.Wait()
}

// Close releases everything New acquired. Call after Run returns.
func (s *Service) Close() error {
	var errs []error
	if s.clip != nil {
		s.clip.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.releaseLock()
	return errors.Join(errs...)
}

func (s *Service) onClip(id int64, fresh bool) {
	s.logger.Debug("clipkeeper: clip captured", "clip", id, "fresh", fresh)
}

// --- Instance lock ---

// acquireLock takes an exclusive flock on a file under the data dir.
// A second daemon on the same data dir fails fast with
// ErrAlreadyRunning instead of corrupting the capture state.
func (s *Service) acquireLock() error {
	path := filepath.Join(s.cfg.DataDir, "clipkeeperd.lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("clipkeeper: open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("clipkeeper: lock %s: %w", path, err)
	}
	f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())
	s.lock = f
	return nil
}

func (s *Service) releaseLock() {
	if s.lock == nil {
		return
	}
	path := s.lock.Name()
	syscall.Flock(int(s.lock.Fd()), syscall.LOCK_UN)
	s.lock.Close()
	os.Remove(path)
	s.lock = nil
}

// --- Backups ---

// backupLoop snapshots the database on the configured interval. The
// interval and enable flag are settings, re-read each cycle so edits
// apply without a restart.
func (s *Service) backupLoop(ctx context.Context) error {
	for {
		minutes, err := s.store.SettingInt(ctx, "backup_interval_minutes")
		if err != nil || minutes <= 0 {
			minutes = 60
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(minutes) * time.Minute):
		}
		enabled, err := s.store.SettingBool(ctx, "backup_enabled")
		if err != nil {
			s.logger.Warn("clipkeeper: read backup_enabled", "error", err)
			continue
		}
		if !enabled {
			continue
		}
		s.runBackup(ctx)
	}
}

func (s *Service) runBackup(ctx context.Context) {
	path, err := s.store.Backup(ctx, s.cfg.BackupsDir)
	if err != nil {
		s.logger.Error("clipkeeper: backup failed", "error", err)
		return
	}
	keep, err := s.store.SettingInt(ctx, "backup_keep_count")
	if err != nil || keep <= 0 {
		keep = 20
	}
	pruned, err := s.store.PruneBackups(s.cfg.BackupsDir, keep)
	if err != nil {
		s.logger.Warn("clipkeeper: prune backups", "error", err)
	}
	s.logger.Info("clipkeeper: backup written", "path", path, "pruned", pruned)
}
