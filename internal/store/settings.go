package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Runtime settings live in the database so they survive restarts and can be
// flipped through the API without touching the config file. Reads fall back
// to the seeded default when a key is missing.
var settingDefaults = map[string]string{
	"max_history":             "500",
	"image_quality":           "85",
	"max_image_size":          "2048",
	"script_path":             "",
	"backup_enabled":          "true",
	"backup_interval_minutes": "60",
	"backup_keep_count":       "20",
	"incognito":               "false",
	"paused":                  "false",
}

func (s *Store) seedDefaults(ctx context.Context) error {
	for key, value := range settingDefaults {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
			key, value); err != nil {
			return fmt.Errorf("store: seed setting %s: %w", key, err)
		}
	}
	return nil
}

// Setting returns the stored value for key, or its default when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return settingDefaults[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("store: read setting %s: %w", key, err)
	}
	return value, nil
}

// SettingInt reads a setting and parses it as an integer, falling back to
// the default when the stored value is malformed.
func (s *Store) SettingInt(ctx context.Context, key string) (int, error) {
	value, err := s.Setting(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		n, _ = strconv.Atoi(settingDefaults[key])
		s.logger.Warn("store: malformed setting, using default", "key", key, "value", value)
	}
	return n, nil
}

// SettingBool reads a setting as a boolean. Anything but "true" and "1"
// counts as false.
func (s *Store) SettingBool(ctx context.Context, key string) (bool, error) {
	value, err := s.Setting(ctx, key)
	if err != nil {
		return false, err
	}
	return value == "true" || value == "1", nil
}

// SetSetting stores one runtime setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("store: write setting %s: %w", key, err)
	}
	return nil
}

// Settings returns the full settings map, defaults overlaid with whatever
// is stored.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(settingDefaults))
	for k, v := range settingDefaults {
		out[k] = v
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("store: list settings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("store: list settings: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
