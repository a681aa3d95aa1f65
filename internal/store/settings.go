package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Setting keys owned by the dispatch engine.
const (
	SettingKeyMappingsEnabled = "key_mappings_enabled"
	SettingMacrosEnabled      = "macros_enabled"
)

// GetSetting returns the stored value and whether the key exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a value and stamps updated_at.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(nowFn()))
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetBool reads a boolean setting. Missing or unparseable values yield
// fallback.
func (s *Store) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, ok, err := s.GetSetting(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	v, perr := strconv.ParseBool(raw)
	if perr != nil {
		return fallback, nil
	}
	return v, nil
}

// SetBool stores a boolean setting as "true" or "false".
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	return s.SetSetting(ctx, key, strconv.FormatBool(value))
}
