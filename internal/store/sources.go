package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pinbase/internal/ir"
)

// UpsertSource registers a source or updates its descriptive fields and
// priority in place. Existing claims are untouched.
func (s *Store) UpsertSource(ctx context.Context, src ir.Source) error {
	if src.ID == "" {
		return fmt.Errorf("upsert source: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, category, priority, url, description, org_scheme)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			priority = excluded.priority,
			url = excluded.url,
			description = excluded.description,
			org_scheme = excluded.org_scheme
	`,
		src.ID,
		src.Name,
		string(src.Category),
		src.Priority,
		src.URL,
		src.Description,
		string(src.OrgScheme),
	)
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.ID, err)
	}
	return nil
}

// GetSource returns one source. Unknown IDs yield an UNKNOWN_SOURCE error.
func (s *Store) GetSource(ctx context.Context, id string) (ir.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, priority, url, description, org_scheme
		FROM sources
		WHERE id = ?
	`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Source{}, unknownSource(id)
	}
	if err != nil {
		return ir.Source{}, fmt.Errorf("get source %s: %w", id, err)
	}
	return src, nil
}

// ListSources returns all sources ordered by priority (highest first), then name.
func (s *Store) ListSources(ctx context.Context) ([]ir.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, priority, url, description, org_scheme
		FROM sources
		ORDER BY priority DESC, name COLLATE BINARY ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []ir.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("list sources: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

// SetSourcePriority changes a source's trust ranking. The next resolve pass
// picks it up; no claim rows change.
func (s *Store) SetSourcePriority(ctx context.Context, id string, priority int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sources SET priority = ? WHERE id = ?`, priority, id)
	if err != nil {
		return fmt.Errorf("set source priority %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set source priority %s: %w", id, err)
	}
	if n == 0 {
		return unknownSource(id)
	}
	return nil
}

// DeleteSource removes a source. It is rejected with SOURCE_IN_USE while
// any claim, active or historical, references the source.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete source: begin tx: %w", err)
	}
	defer tx.Rollback()

	var claims int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims WHERE source_id = ?`, id).Scan(&claims); err != nil {
		return fmt.Errorf("delete source: count claims: %w", err)
	}
	if claims > 0 {
		return &LedgerError{
			Code:    ErrCodeSourceInUse,
			Message: fmt.Sprintf("%d claims reference this source", claims),
			Source:  id,
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return unknownSource(id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete source: commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (ir.Source, error) {
	var src ir.Source
	var category, scheme string
	if err := row.Scan(&src.ID, &src.Name, &category, &src.Priority, &src.URL, &src.Description, &scheme); err != nil {
		return ir.Source{}, err
	}
	src.Category = ir.SourceCategory(category)
	src.OrgScheme = ir.OrgScheme(scheme)
	return src, nil
}

func sourceExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sources WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check source %s: %w", id, err)
	}
	return exists, nil
}
