package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gamevault/internal/macro"
)

const keyMappingColumns = `id, game_id, name, description, source_key, target_key, is_active, created_at`

// ListKeyMappings returns every key mapping, oldest first.
func (s *Store) ListKeyMappings(ctx context.Context) ([]macro.KeyMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+keyMappingColumns+` FROM key_mappings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list key mappings: %w", err)
	}
	defer rows.Close()

	var out []macro.KeyMapping
	for rows.Next() {
		m, err := scanKeyMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("list key mappings: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list key mappings: %w", err)
	}
	return out, nil
}

// GetKeyMapping returns one mapping or ErrNotFound.
func (s *Store) GetKeyMapping(ctx context.Context, id string) (macro.KeyMapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+keyMappingColumns+` FROM key_mappings WHERE id = ?`, id)
	m, err := scanKeyMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return macro.KeyMapping{}, fmt.Errorf("key mapping %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return macro.KeyMapping{}, fmt.Errorf("get key mapping %q: %w", id, err)
	}
	return m, nil
}

// SaveKeyMapping inserts a mapping (assigning an ID when empty) or updates
// the existing row. created_at is kept on update.
func (s *Store) SaveKeyMapping(ctx context.Context, m macro.KeyMapping) (macro.KeyMapping, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.SourceKey = strings.TrimSpace(m.SourceKey)
	m.TargetKey = strings.TrimSpace(m.TargetKey)
	if err := m.Validate(); err != nil {
		return macro.KeyMapping{}, err
	}
	if m.ID == "" {
		m.ID = newIDFn()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = nowFn()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO key_mappings (`+keyMappingColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    game_id = excluded.game_id,
    name = excluded.name,
    description = excluded.description,
    source_key = excluded.source_key,
    target_key = excluded.target_key,
    is_active = excluded.is_active`,
		m.ID, nullableString(m.GameID), m.Name, m.Description, m.SourceKey, m.TargetKey,
		boolToInt(m.IsActive), formatTime(m.CreatedAt))
	if err != nil {
		return macro.KeyMapping{}, fmt.Errorf("save key mapping %q: %w", m.ID, err)
	}
	return s.GetKeyMapping(ctx, m.ID)
}

// DeleteKeyMapping removes a mapping.
func (s *Store) DeleteKeyMapping(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM key_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete key mapping %q: %w", id, err)
	}
	return rowsAffected(res, "key mapping", id)
}

// SetKeyMappingActive sets the is_active flag.
func (s *Store) SetKeyMappingActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE key_mappings SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("toggle key mapping %q: %w", id, err)
	}
	return rowsAffected(res, "key mapping", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyMapping(row rowScanner) (macro.KeyMapping, error) {
	var (
		m           macro.KeyMapping
		gameID      sql.NullString
		description sql.NullString
		active      sql.NullInt64
		createdAt   string
	)
	if err := row.Scan(&m.ID, &gameID, &m.Name, &description, &m.SourceKey, &m.TargetKey, &active, &createdAt); err != nil {
		return macro.KeyMapping{}, err
	}
	m.GameID = stringPtr(gameID)
	m.Description = description.String
	m.IsActive = !active.Valid || active.Int64 != 0
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}
