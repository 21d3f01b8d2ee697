// CLAUDE:SUMMARY Clip CRUD: upsert by content hash, filtered listing, flag toggles, retention eviction with blob cleanup.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hazyhaar/clipkeeper/dbopen"
)

const clipColumns = `id, content, content_hash, kind, category, subtype,
	image_path, thumb_path, image_width, image_height,
	pinned, favorite, is_snippet, sensitive, use_count,
	metadata, collection_id, created_at, used_at`

// Add upserts a clip by content hash. Re-observing known content bumps
// use_count and used_at on the existing row; a fresh insert triggers
// retention eviction. Returns the row id and whether the clip is new.
func (s *Store) Add(ctx context.Context, c Clip) (id int64, fresh bool, err error) {
	if c.Hash == "" {
		return 0, false, errors.New("store: add clip: empty content hash")
	}
	if c.Kind == "" {
		c.Kind = KindText
	}
	if c.Category == "" {
		c.Category = "text"
	}
	meta := c.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, false, fmt.Errorf("store: add clip: marshal metadata: %w", err)
	}

	now := time.Now().UnixMilli()
	var useCount int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO clips (content, content_hash, kind, category, subtype,
			image_path, thumb_path, image_width, image_height,
			sensitive, metadata, created_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			use_count = use_count + 1,
			used_at   = excluded.used_at
		RETURNING id, use_count`,
		c.Content, c.Hash, c.Kind, c.Category, c.Subtype,
		c.ImagePath, c.ThumbPath, c.ImageWidth, c.ImageHeight,
		boolInt(c.Sensitive), string(metaJSON), now, now,
	).Scan(&id, &useCount)
	if err != nil {
		return 0, false, fmt.Errorf("store: add clip: %w", err)
	}

	fresh = useCount == 1
	if fresh {
		if _, err := s.Evict(ctx); err != nil {
			s.logger.Warn("store: eviction failed", "error", err)
		}
	}
	return id, fresh, nil
}

// Get returns one clip by id.
func (s *Store) Get(ctx context.Context, id int64) (Clip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Clip{}, ErrNotFound
	}
	if err != nil {
		return Clip{}, fmt.Errorf("store: get clip %d: %w", id, err)
	}
	return c, nil
}

// GetByHash returns one clip by content hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (Clip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE content_hash = ?`, hash)
	c, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Clip{}, ErrNotFound
	}
	if err != nil {
		return Clip{}, fmt.Errorf("store: get clip by hash: %w", err)
	}
	return c, nil
}

// Filter narrows List results. Zero values mean "no constraint"; a
// negative Limit returns everything.
type Filter struct {
	Search     string
	Category   string
	Favorites  bool
	Snippets   bool
	Collection int64
	Limit      int
	Offset     int
}

// List returns clips ordered pinned-first, then most recently used.
func (s *Store) List(ctx context.Context, f Filter) ([]Clip, error) {
	q := `SELECT ` + clipColumns + ` FROM clips WHERE 1=1`
	var args []any
	if f.Search != "" {
		q += " AND content LIKE ?"
		args = append(args, "%"+f.Search+"%")
	}
	if f.Category != "" {
		q += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Favorites {
		q += " AND favorite = 1"
	}
	if f.Snippets {
		q += " AND is_snippet = 1"
	}
	if f.Collection != 0 {
		q += " AND collection_id = ?"
		args = append(args, f.Collection)
	}
	limit := f.Limit
	if limit == 0 {
		limit = 100
	}
	q += " ORDER BY pinned DESC, used_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list clips: %w", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list clips: %w", err)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// Touch bumps use_count and used_at, the paste-from-history path.
func (s *Store) Touch(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clips SET use_count = use_count + 1, used_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("store: touch clip %d: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *Store) SetPinned(ctx context.Context, id int64, on bool) error {
	return s.setFlag(ctx, id, "pinned", on)
}

func (s *Store) SetFavorite(ctx context.Context, id int64, on bool) error {
	return s.setFlag(ctx, id, "favorite", on)
}

func (s *Store) SetSnippet(ctx context.Context, id int64, on bool) error {
	return s.setFlag(ctx, id, "is_snippet", on)
}

func (s *Store) setFlag(ctx context.Context, id int64, column string, on bool) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE clips SET %s = ? WHERE id = ?`, column), boolInt(on), id)
	if err != nil {
		return fmt.Errorf("store: set %s on clip %d: %w", column, id, err)
	}
	return requireRow(res, id)
}

// SetCollection assigns the clip to a collection; 0 detaches it.
func (s *Store) SetCollection(ctx context.Context, id, collectionID int64) error {
	var cid any
	if collectionID != 0 {
		cid = collectionID
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE clips SET collection_id = ? WHERE id = ?`, cid, id)
	if err != nil {
		return fmt.Errorf("store: set collection on clip %d: %w", id, err)
	}
	return requireRow(res, id)
}

// UpdateText replaces a clip's text and re-hashes it. Returns
// ErrHashCollision when another clip already stores the new content.
func (s *Store) UpdateText(ctx context.Context, id int64, content string) error {
	hash := HashText(content)
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var existing int64
		err := tx.QueryRow(`SELECT id FROM clips WHERE content_hash = ?`, hash).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("store: update text: %w", err)
		case existing != id:
			return ErrHashCollision
		}
		res, err := tx.Exec(
			`UPDATE clips SET content = ?, content_hash = ? WHERE id = ?`,
			content, hash, id)
		if err != nil {
			return fmt.Errorf("store: update text: %w", err)
		}
		return requireRow(res, id)
	})
}

// MergeMetadata overlays patch onto the clip's metadata map.
func (s *Store) MergeMetadata(ctx context.Context, id int64, patch map[string]string) error {
	if len(patch) == 0 {
		return nil
	}
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRow(`SELECT metadata FROM clips WHERE id = ?`, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: merge metadata: %w", err)
		}
		meta := map[string]string{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &meta); err != nil {
				meta = map[string]string{}
			}
		}
		for k, v := range patch {
			meta[k] = v
		}
		merged, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("store: merge metadata: %w", err)
		}
		if _, err := tx.Exec(`UPDATE clips SET metadata = ? WHERE id = ?`, string(merged), id); err != nil {
			return fmt.Errorf("store: merge metadata: %w", err)
		}
		return nil
	})
}

// Delete removes one clip and its image artifacts. File removal is
// best-effort; database state wins over filesystem cleanup.
func (s *Store) Delete(ctx context.Context, id int64) error {
	var imagePath, thumbPath string
	err := s.db.QueryRowContext(ctx,
		`SELECT image_path, thumb_path FROM clips WHERE id = ?`, id).
		Scan(&imagePath, &thumbPath)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: delete clip %d: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete clip %d: %w", id, err)
	}
	s.removeFiles(imagePath, thumbPath)
	return nil
}

// ClearUnpinned deletes every clip that is neither pinned nor favorite and
// returns how many were removed.
func (s *Store) ClearUnpinned(ctx context.Context) (int, error) {
	victims, err := s.victims(ctx,
		`SELECT id, image_path, thumb_path FROM clips WHERE pinned = 0 AND favorite = 0`)
	if err != nil {
		return 0, fmt.Errorf("store: clear unpinned: %w", err)
	}
	return s.reap(ctx, victims)
}

// Evict enforces the max_history budget: among clips that are neither
// pinned nor favorite, the oldest by used_at beyond the budget are deleted
// together with their image artifacts. Returns how many were evicted.
func (s *Store) Evict(ctx context.Context) (int, error) {
	max, err := s.SettingInt(ctx, "max_history")
	if err != nil {
		return 0, fmt.Errorf("store: evict: %w", err)
	}
	if max <= 0 {
		return 0, nil
	}
	victims, err := s.victims(ctx, `
		SELECT id, image_path, thumb_path FROM clips
		WHERE pinned = 0 AND favorite = 0
		ORDER BY used_at DESC, id DESC
		LIMIT -1 OFFSET ?`, max)
	if err != nil {
		return 0, fmt.Errorf("store: evict: %w", err)
	}
	n, err := s.reap(ctx, victims)
	if n > 0 {
		s.logger.Debug("store: evicted clips", "count", n, "budget", max)
	}
	return n, err
}

type victim struct {
	id                   int64
	imagePath, thumbPath string
}

func (s *Store) victims(ctx context.Context, query string, args ...any) ([]victim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vs []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.id, &v.imagePath, &v.thumbPath); err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, rows.Err()
}

func (s *Store) reap(ctx context.Context, victims []victim) (int, error) {
	if len(victims) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(victims))
	args := make([]any, len(victims))
	for i, v := range victims {
		placeholders[i] = "?"
		args[i] = v.id
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM clips WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return 0, err
	}
	for _, v := range victims {
		s.removeFiles(v.imagePath, v.thumbPath)
	}
	return len(victims), nil
}

func (s *Store) removeFiles(paths ...string) {
	seen := map[string]bool{}
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("store: remove artifact", "path", p, "error", err)
		}
	}
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClip(row scanner) (Clip, error) {
	var (
		c          Clip
		pinned     int
		favorite   int
		snippet    int
		sensitive  int
		metaRaw    string
		collection sql.NullInt64
		createdAt  int64
		usedAt     int64
	)
	err := row.Scan(&c.ID, &c.Content, &c.Hash, &c.Kind, &c.Category, &c.Subtype,
		&c.ImagePath, &c.ThumbPath, &c.ImageWidth, &c.ImageHeight,
		&pinned, &favorite, &snippet, &sensitive, &c.UseCount,
		&metaRaw, &collection, &createdAt, &usedAt)
	if err != nil {
		return Clip{}, err
	}
	c.Pinned = pinned == 1
	c.Favorite = favorite == 1
	c.Snippet = snippet == 1
	c.Sensitive = sensitive == 1
	if metaRaw != "" && metaRaw != "{}" {
		meta := map[string]string{}
		if err := json.Unmarshal([]byte(metaRaw), &meta); err == nil {
			c.Metadata = meta
		}
	}
	if collection.Valid {
		c.CollectionID = collection.Int64
	}
	c.CreatedAt = time.UnixMilli(createdAt)
	c.UsedAt = time.UnixMilli(usedAt)
	return c, nil
}
