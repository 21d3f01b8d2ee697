// CLAUDE:SUMMARY Content-addressed image file store with atomic write-then-rename deposits.
// Package blob stores image captures on disk, one PNG per content hash plus
// an optional thumbnail. Files are written atomically (write .tmp then
// rename) so readers never observe a partial image.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store deposits image files under a single directory. Names derive from
// the content hash, so writing the same capture twice is idempotent.
type Store struct {
	dir string
}

// New creates a Store targeting dir. The directory is created on first
// write if it does not exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// WriteImage stores the full-size PNG for hash and returns its path.
func (s *Store) WriteImage(ctx context.Context, hash string, data []byte) (string, error) {
	return s.write(hash + ".png", data)
}

// WriteThumb stores the thumbnail PNG for hash and returns its path.
func (s *Store) WriteThumb(ctx context.Context, hash string, data []byte) (string, error) {
	return s.write(hash + "_thumb.png", data)
}

func (s *Store) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir %s: %w", s.dir, err)
	}

	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("blob: rename: %w", err)
	}
	return target, nil
}

// Remove deletes the given files, ignoring ones already gone. Used to roll
// back artifacts when a capture fails after its files were written.
func (s *Store) Remove(paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = fmt.Errorf("blob: remove %s: %w", p, err)
		}
	}
	return firstErr
}
