// CLAUDE:SUMMARY JSON export/import of the clip history plus timestamped rolling backups.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/clipkeeper/idgen"
)

const exportVersion = 1

// BlobWriter persists image bytes during import and returns the stored
// image and thumbnail paths. Implemented by the blob store; a nil writer
// imports image clips without their pixel data.
type BlobWriter func(hash string, data []byte) (imagePath, thumbPath string, err error)

type exportEnvelope struct {
	Version     int               `json:"version"`
	ExportedAt  time.Time         `json:"exported_at"`
	Collections []Collection      `json:"collections,omitempty"`
	Clips       []exportClip      `json:"clips"`
	Settings    map[string]string `json:"settings,omitempty"`
}

type exportClip struct {
	Clip
	// Collection carries the collection by name so imports survive id
	// renumbering.
	Collection string `json:"collection,omitempty"`
	// ImageData holds the full-size image; encoding/json base64s it.
	ImageData []byte `json:"image_data,omitempty"`
}

// ExportJSON writes the whole history as a JSON document. Image bytes are
// inlined when the blob file is still readable, otherwise the clip row is
// exported without them.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	collections, err := s.Collections(ctx)
	if err != nil {
		return fmt.Errorf("store: export: %w", err)
	}
	names := make(map[int64]string, len(collections))
	for _, c := range collections {
		names[c.ID] = c.Name
	}

	clips, err := s.List(ctx, Filter{Limit: -1})
	if err != nil {
		return fmt.Errorf("store: export: %w", err)
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return fmt.Errorf("store: export: %w", err)
	}

	env := exportEnvelope{
		Version:     exportVersion,
		ExportedAt:  time.Now().UTC(),
		Collections: collections,
		Settings:    settings,
	}
	for _, c := range clips {
		ec := exportClip{Clip: c, Collection: names[c.CollectionID]}
		if c.Kind == KindImage && c.ImagePath != "" {
			if data, err := os.ReadFile(c.ImagePath); err == nil {
				ec.ImageData = data
			} else {
				s.logger.Warn("store: export: image unreadable", "id", c.ID, "path", c.ImagePath)
			}
		}
		env.Clips = append(env.Clips, ec)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("store: export: %w", err)
	}
	return nil
}

// ImportResult reports what an import actually changed.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// ImportJSON merges a previously exported document into the store. Clips
// whose content hash already exists are skipped; collections are matched
// by name and created when missing. Settings in the document are ignored,
// the live database keeps its own.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader, writeBlob BlobWriter) (ImportResult, error) {
	var env exportEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return ImportResult{}, fmt.Errorf("store: import: decode: %w", err)
	}
	if env.Version != exportVersion {
		return ImportResult{}, fmt.Errorf("store: import: unsupported version %d", env.Version)
	}

	collectionIDs := map[string]int64{}
	existing, err := s.Collections(ctx)
	if err != nil {
		return ImportResult{}, fmt.Errorf("store: import: %w", err)
	}
	for _, c := range existing {
		collectionIDs[c.Name] = c.ID
	}
	for _, c := range env.Collections {
		if _, ok := collectionIDs[c.Name]; ok {
			continue
		}
		id, err := s.AddCollection(ctx, c.Name)
		if err != nil {
			return ImportResult{}, fmt.Errorf("store: import: collection %q: %w", c.Name, err)
		}
		collectionIDs[c.Name] = id
	}

	var res ImportResult
	for _, ec := range env.Clips {
		if ec.Hash == "" {
			res.Skipped++
			continue
		}
		if _, err := s.GetByHash(ctx, ec.Hash); err == nil {
			res.Skipped++
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return res, fmt.Errorf("store: import: %w", err)
		}

		c := ec.Clip
		c.ID = 0
		c.ImagePath, c.ThumbPath = "", ""
		if c.Kind == KindImage && len(ec.ImageData) > 0 && writeBlob != nil {
			imagePath, thumbPath, err := writeBlob(c.Hash, ec.ImageData)
			if err != nil {
				s.logger.Warn("store: import: blob write failed", "hash", c.Hash, "error", err)
			} else {
				c.ImagePath, c.ThumbPath = imagePath, thumbPath
			}
		}

		id, _, err := s.Add(ctx, c)
		if err != nil {
			return res, fmt.Errorf("store: import: %w", err)
		}
		if err := s.restoreState(ctx, id, ec); err != nil {
			return res, fmt.Errorf("store: import: %w", err)
		}
		if ec.Collection != "" {
			if cid, ok := collectionIDs[ec.Collection]; ok {
				if err := s.SetCollection(ctx, id, cid); err != nil {
					return res, fmt.Errorf("store: import: %w", err)
				}
			}
		}
		res.Imported++
	}
	return res, nil
}

// restoreState carries flags, counters and timestamps that Add does not
// accept over from the exported row.
func (s *Store) restoreState(ctx context.Context, id int64, ec exportClip) error {
	useCount := ec.UseCount
	if useCount < 1 {
		useCount = 1
	}
	createdAt, usedAt := ec.CreatedAt, ec.UsedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if usedAt.IsZero() {
		usedAt = createdAt
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE clips SET pinned = ?, favorite = ?, is_snippet = ?,
			use_count = ?, created_at = ?, used_at = ?
		WHERE id = ?`,
		boolInt(ec.Pinned), boolInt(ec.Favorite), boolInt(ec.Snippet),
		useCount, createdAt.UnixMilli(), usedAt.UnixMilli(), id)
	return err
}

var backupSuffix = idgen.NanoID(4)

// Backup writes a full export into dir as clips-<timestamp>_<suffix>.json.
// The file lands atomically via a temp file in the same directory.
func (s *Store) Backup(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: backup: %w", err)
	}
	name := "clips-" + idgen.Timestamped(backupSuffix)() + ".json"
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("store: backup: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.ExportJSON(ctx, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("store: backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("store: backup: %w", err)
	}
	s.logger.Info("store: backup written", "path", final)
	return final, nil
}

// PruneBackups keeps the newest keep backup files in dir and deletes the
// rest. Backup names sort chronologically, so name order is age order.
func (s *Store) PruneBackups(dir string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: prune backups: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "clips-") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	removed := 0
	for _, name := range names[min(keep, len(names)):] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			s.logger.Warn("store: prune backups", "name", name, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
