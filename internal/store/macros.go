package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gamevault/internal/macro"
)

const macroColumns = `id, game_id, name, description, trigger_key, actions, delay_ms, repeat_count, is_active, created_at`

// ListMacros returns every macro, oldest first. A row whose actions column
// cannot be decoded is returned with no actions so the planner skips it.
func (s *Store) ListMacros(ctx context.Context) ([]macro.Macro, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+macroColumns+` FROM macros ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list macros: %w", err)
	}
	defer rows.Close()

	var out []macro.Macro
	for rows.Next() {
		m, err := scanMacro(rows)
		if err != nil {
			return nil, fmt.Errorf("list macros: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list macros: %w", err)
	}
	return out, nil
}

// GetMacro returns one macro or ErrNotFound.
func (s *Store) GetMacro(ctx context.Context, id string) (macro.Macro, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+macroColumns+` FROM macros WHERE id = ?`, id)
	m, err := scanMacro(row)
	if errors.Is(err, sql.ErrNoRows) {
		return macro.Macro{}, fmt.Errorf("macro %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return macro.Macro{}, fmt.Errorf("get macro %q: %w", id, err)
	}
	return m, nil
}

// SaveMacro inserts or updates a macro. Zero RepeatCount is stored as 1.
func (s *Store) SaveMacro(ctx context.Context, m macro.Macro) (macro.Macro, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.TriggerKey = strings.TrimSpace(m.TriggerKey)
	if m.RepeatCount == 0 {
		m.RepeatCount = 1
	}
	if err := m.Validate(); err != nil {
		return macro.Macro{}, err
	}
	if m.TriggerKey == "" {
		return macro.Macro{}, errors.New("invalid macro: trigger_key is required")
	}
	if m.Actions == nil {
		m.Actions = macro.ActionList{}
	}
	actions, err := json.Marshal(m.Actions)
	if err != nil {
		return macro.Macro{}, fmt.Errorf("encode macro actions: %w", err)
	}
	if m.ID == "" {
		m.ID = newIDFn()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = nowFn()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO macros (`+macroColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    game_id = excluded.game_id,
    name = excluded.name,
    description = excluded.description,
    trigger_key = excluded.trigger_key,
    actions = excluded.actions,
    delay_ms = excluded.delay_ms,
    repeat_count = excluded.repeat_count,
    is_active = excluded.is_active`,
		m.ID, nullableString(m.GameID), m.Name, m.Description, m.TriggerKey, string(actions),
		m.DelayMs, m.RepeatCount, boolToInt(m.IsActive), formatTime(m.CreatedAt))
	if err != nil {
		return macro.Macro{}, fmt.Errorf("save macro %q: %w", m.ID, err)
	}
	return s.GetMacro(ctx, m.ID)
}

// DeleteMacro removes a macro.
func (s *Store) DeleteMacro(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM macros WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete macro %q: %w", id, err)
	}
	return rowsAffected(res, "macro", id)
}

// SetMacroActive sets the is_active flag.
func (s *Store) SetMacroActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE macros SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("toggle macro %q: %w", id, err)
	}
	return rowsAffected(res, "macro", id)
}

func scanMacro(row rowScanner) (macro.Macro, error) {
	var (
		m           macro.Macro
		gameID      sql.NullString
		description sql.NullString
		actions     string
		delayMs     sql.NullInt64
		repeat      sql.NullInt64
		active      sql.NullInt64
		createdAt   string
	)
	if err := row.Scan(&m.ID, &gameID, &m.Name, &description, &m.TriggerKey, &actions,
		&delayMs, &repeat, &active, &createdAt); err != nil {
		return macro.Macro{}, err
	}
	m.GameID = stringPtr(gameID)
	m.Description = description.String
	m.DelayMs = 50
	if delayMs.Valid {
		m.DelayMs = int(delayMs.Int64)
	}
	m.RepeatCount = 1
	if repeat.Valid && repeat.Int64 > 0 {
		m.RepeatCount = int(repeat.Int64)
	}
	m.IsActive = !active.Valid || active.Int64 != 0
	m.CreatedAt = parseTime(createdAt)

	if err := json.Unmarshal([]byte(actions), &m.Actions); err != nil {
		slog.Warn("[WARN-STORE] macro has unreadable actions", "id", m.ID, "error", err)
		m.Actions = macro.ActionList{}
	}
	return m, nil
}
