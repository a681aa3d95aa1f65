package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// AppShortcut is an application-level global shortcut bound to a fixed
// action such as "toggle_overlay".
type AppShortcut struct {
	ID          string `json:"id"`
	ActionID    string `json:"action_id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Keys        string `json:"keys"`
	IsGlobal    bool   `json:"is_global"`
	IsActive    bool   `json:"is_active"`
	Category    string `json:"category"`
}

const shortcutColumns = `id, action_id, label, description, keys, is_global, is_active, category`

// ListAppShortcuts returns every app shortcut ordered by category, then
// action.
func (s *Store) ListAppShortcuts(ctx context.Context) ([]AppShortcut, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shortcutColumns+` FROM shortcuts ORDER BY category, action_id`)
	if err != nil {
		return nil, fmt.Errorf("list shortcuts: %w", err)
	}
	defer rows.Close()

	var out []AppShortcut
	for rows.Next() {
		sc, err := scanShortcut(rows)
		if err != nil {
			return nil, fmt.Errorf("list shortcuts: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shortcuts: %w", err)
	}
	return out, nil
}

// GetAppShortcut returns the shortcut bound to actionID or ErrNotFound.
func (s *Store) GetAppShortcut(ctx context.Context, actionID string) (AppShortcut, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shortcutColumns+` FROM shortcuts WHERE action_id = ?`, actionID)
	sc, err := scanShortcut(row)
	if errors.Is(err, sql.ErrNoRows) {
		return AppShortcut{}, fmt.Errorf("shortcut %q: %w", actionID, ErrNotFound)
	}
	if err != nil {
		return AppShortcut{}, fmt.Errorf("get shortcut %q: %w", actionID, err)
	}
	return sc, nil
}

// SaveAppShortcut upserts by action_id. The row ID is kept when the action
// already exists.
func (s *Store) SaveAppShortcut(ctx context.Context, sc AppShortcut) (AppShortcut, error) {
	sc.ActionID = strings.TrimSpace(sc.ActionID)
	sc.Keys = strings.TrimSpace(sc.Keys)
	if sc.ActionID == "" {
		return AppShortcut{}, errors.New("invalid shortcut: action_id is required")
	}
	if strings.TrimSpace(sc.Label) == "" {
		sc.Label = sc.ActionID
	}
	if strings.TrimSpace(sc.Category) == "" {
		sc.Category = "general"
	}
	if sc.ID == "" {
		sc.ID = newIDFn()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO shortcuts (`+shortcutColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(action_id) DO UPDATE SET
    label = excluded.label,
    description = excluded.description,
    keys = excluded.keys,
    is_global = excluded.is_global,
    is_active = excluded.is_active,
    category = excluded.category`,
		sc.ID, sc.ActionID, sc.Label, sc.Description, sc.Keys,
		boolToInt(sc.IsGlobal), boolToInt(sc.IsActive), sc.Category)
	if err != nil {
		return AppShortcut{}, fmt.Errorf("save shortcut %q: %w", sc.ActionID, err)
	}
	return s.GetAppShortcut(ctx, sc.ActionID)
}

func scanShortcut(row rowScanner) (AppShortcut, error) {
	var (
		sc          AppShortcut
		description sql.NullString
		category    sql.NullString
		global      sql.NullInt64
		active      sql.NullInt64
	)
	if err := row.Scan(&sc.ID, &sc.ActionID, &sc.Label, &description, &sc.Keys, &global, &active, &category); err != nil {
		return AppShortcut{}, err
	}
	sc.Description = description.String
	sc.Category = category.String
	sc.IsGlobal = global.Valid && global.Int64 != 0
	sc.IsActive = !active.Valid || active.Int64 != 0
	return sc, nil
}
