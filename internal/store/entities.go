package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pinbase/internal/ir"
)

// UpsertEntities writes structural entity records in one transaction.
// Existing entities keep their claims; parent, grouping key, ordinal and
// default flag are replaced.
func (s *Store) UpsertEntities(ctx context.Context, entities []ir.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert entities: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (kind, id, parent_kind, parent_id, group_key, ordinal, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			parent_kind = excluded.parent_kind,
			parent_id = excluded.parent_id,
			group_key = excluded.group_key,
			ordinal = excluded.ordinal,
			is_default = excluded.is_default
	`)
	if err != nil {
		return fmt.Errorf("upsert entities: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		if !ir.ValidKinds[e.Ref.Kind] || e.Ref.ID == "" {
			return fmt.Errorf("upsert entities: invalid ref %q", e.Ref)
		}
		group, err := marshalGroup(e.Group)
		if err != nil {
			return fmt.Errorf("upsert entities: %s: %w", e.Ref, err)
		}
		pk, pid := parentColumns(e.Parent)
		if _, err := stmt.ExecContext(ctx, string(e.Ref.Kind), e.Ref.ID, pk, pid, group, e.Ordinal, e.IsDefault); err != nil {
			return fmt.Errorf("upsert entities: %s: %w", e.Ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert entities: commit: %w", err)
	}
	return nil
}

// GetEntity returns one entity or a NOT_FOUND error.
func (s *Store) GetEntity(ctx context.Context, ref ir.EntityRef) (ir.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, id, parent_kind, parent_id, group_key, ordinal, is_default
		FROM entities
		WHERE kind = ? AND id = ?
	`, string(ref.Kind), ref.ID)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Entity{}, &LedgerError{Code: ErrCodeNotFound, Message: "entity does not exist", Entity: ref}
	}
	if err != nil {
		return ir.Entity{}, fmt.Errorf("get entity %s: %w", ref, err)
	}
	return e, nil
}

// ListEntities returns entities ordered by (kind, id). With no kinds given,
// every entity is returned.
func (s *Store) ListEntities(ctx context.Context, kinds ...ir.EntityKind) ([]ir.Entity, error) {
	query := `
		SELECT kind, id, parent_kind, parent_id, group_key, ordinal, is_default
		FROM entities`
	args := make([]any, 0, len(kinds))
	if len(kinds) > 0 {
		query += ` WHERE kind IN (?` + strings.Repeat(", ?", len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	query += ` ORDER BY kind COLLATE BINARY ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	entities := []ir.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// DeleteEntity removes an entity. Its claims are deleted with it.
func (s *Store) DeleteEntity(ctx context.Context, ref ir.EntityRef) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, string(ref.Kind), ref.ID)
	if err != nil {
		return fmt.Errorf("delete entity %s: %w", ref, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &LedgerError{Code: ErrCodeNotFound, Message: "entity does not exist", Entity: ref}
	}
	return nil
}

// PruneEntities deletes every entity of kind whose ID is not in keep and
// returns how many were removed. Used after a total re-derivation so
// structural rows that no longer exist do not linger.
func (s *Store) PruneEntities(ctx context.Context, kind ir.EntityKind, keep []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("prune entities: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM entities WHERE kind = ?`, string(kind))
	if err != nil {
		return 0, fmt.Errorf("prune entities: %w", err)
	}
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("prune entities: %w", err)
		}
		if !keepSet[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("prune entities: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, string(kind), id); err != nil {
			return 0, fmt.Errorf("prune entities: delete %s:%s: %w", kind, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune entities: commit: %w", err)
	}
	return len(stale), nil
}

func scanEntity(row rowScanner) (ir.Entity, error) {
	var e ir.Entity
	var kind, group string
	var pk, pid sql.NullString
	if err := row.Scan(&kind, &e.Ref.ID, &pk, &pid, &group, &e.Ordinal, &e.IsDefault); err != nil {
		return ir.Entity{}, err
	}
	e.Ref.Kind = ir.EntityKind(kind)
	e.Parent = parentRef(pk, pid)
	g, err := unmarshalGroup(group)
	if err != nil {
		return ir.Entity{}, err
	}
	e.Group = g
	return e, nil
}

func entityExists(ctx context.Context, tx *sql.Tx, ref ir.EntityRef) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM entities WHERE kind = ? AND id = ?)
	`, string(ref.Kind), ref.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check entity %s: %w", ref, err)
	}
	return exists, nil
}
