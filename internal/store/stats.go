package store

import (
	"context"
	"fmt"
	"time"
)

// Stats summarizes the clip database.
type Stats struct {
	Total      int            `json:"total"`
	Pinned     int            `json:"pinned"`
	Favorites  int            `json:"favorites"`
	Snippets   int            `json:"snippets"`
	Images     int            `json:"images"`
	Sensitive  int            `json:"sensitive"`
	Today      int            `json:"today"`
	Categories map[string]int `json:"categories"`
	DBBytes    int64          `json:"db_bytes"`
}

// Stats computes aggregate counts in two queries plus a page-size probe.
// "Today" counts clips created since local midnight.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(pinned), 0),
			COALESCE(SUM(favorite), 0),
			COALESCE(SUM(is_snippet), 0),
			COALESCE(SUM(kind = 'image'), 0),
			COALESCE(SUM(sensitive), 0),
			COALESCE(SUM(created_at >= ?), 0)
		FROM clips`, midnight.UnixMilli()).
		Scan(&st.Total, &st.Pinned, &st.Favorites, &st.Snippets,
			&st.Images, &st.Sensitive, &st.Today)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM clips GROUP BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()
	st.Categories = map[string]int{}
	for rows.Next() {
		var (
			category string
			count    int
		)
		if err := rows.Scan(&category, &count); err != nil {
			return Stats{}, fmt.Errorf("store: stats: %w", err)
		}
		st.Categories[category] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`).
		Scan(&st.DBBytes); err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}
