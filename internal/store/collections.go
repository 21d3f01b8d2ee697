package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Collection groups clips under a user-chosen name.
type Collection struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ClipCount int       `json:"clip_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Collections lists all collections with their clip counts, oldest first.
func (s *Store) Collections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.created_at, COUNT(cl.id)
		FROM collections c
		LEFT JOIN clips cl ON cl.collection_id = c.id
		GROUP BY c.id
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("store: list collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var (
			c         Collection
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &createdAt, &c.ClipCount); err != nil {
			return nil, fmt.Errorf("store: list collections: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCollection creates a collection. Names are unique; reusing one
// returns ErrNameTaken.
func (s *Store) AddCollection(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, errors.New("store: add collection: empty name")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, created_at) VALUES (?, ?)`,
		name, time.Now().UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrNameTaken
		}
		return 0, fmt.Errorf("store: add collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: add collection: %w", err)
	}
	return id, nil
}

// RenameCollection changes a collection's name.
func (s *Store) RenameCollection(ctx context.Context, id int64, name string) error {
	if name == "" {
		return errors.New("store: rename collection: empty name")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE collections SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("store: rename collection %d: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteCollection removes a collection. Member clips survive with their
// collection reference cleared by the schema's ON DELETE SET NULL.
func (s *Store) DeleteCollection(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete collection %d: %w", id, err)
	}
	return requireRow(res, id)
}
