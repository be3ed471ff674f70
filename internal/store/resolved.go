package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pinbase/internal/ir"
)

// ReplaceResolved overwrites the staged resolution output in one
// transaction. Resolution is a total recompute, so rows absent from
// entities are removed.
func (s *Store) ReplaceResolved(ctx context.Context, entities []ir.ResolvedEntity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace resolved: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resolved_entities`); err != nil {
		return fmt.Errorf("replace resolved: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO resolved_entities
		(kind, id, parent_kind, parent_id, group_key, is_default, fields, extra, credits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("replace resolved: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		group, err := marshalGroup(e.Group)
		if err != nil {
			return fmt.Errorf("replace resolved %s: %w", e.Ref, err)
		}
		fields, err := marshalObject(e.Fields)
		if err != nil {
			return fmt.Errorf("replace resolved %s: %w", e.Ref, err)
		}
		extra, err := marshalObject(e.Extra)
		if err != nil {
			return fmt.Errorf("replace resolved %s: %w", e.Ref, err)
		}
		credits, err := marshalCredits(e.Credits)
		if err != nil {
			return fmt.Errorf("replace resolved %s: %w", e.Ref, err)
		}
		pk, pid := parentColumns(e.Parent)
		if _, err := stmt.ExecContext(ctx,
			string(e.Ref.Kind), e.Ref.ID, pk, pid, group, e.IsDefault, fields, extra, credits,
		); err != nil {
			return fmt.Errorf("replace resolved %s: %w", e.Ref, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace resolved: commit: %w", err)
	}
	return nil
}

// ListResolved returns staged resolved entities ordered by (kind, id).
func (s *Store) ListResolved(ctx context.Context, kinds ...ir.EntityKind) ([]ir.ResolvedEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, parent_kind, parent_id, group_key, is_default, fields, extra, credits
		FROM resolved_entities
		ORDER BY kind COLLATE BINARY ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list resolved: %w", err)
	}
	defer rows.Close()

	want := make(map[ir.EntityKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	out := []ir.ResolvedEntity{}
	for rows.Next() {
		e, err := scanResolved(rows)
		if err != nil {
			return nil, fmt.Errorf("list resolved: %w", err)
		}
		if len(want) > 0 && !want[e.Ref.Kind] {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolved: %w", err)
	}
	return out, nil
}

// GetResolved returns one staged resolved entity or a NOT_FOUND error.
func (s *Store) GetResolved(ctx context.Context, ref ir.EntityRef) (ir.ResolvedEntity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, id, parent_kind, parent_id, group_key, is_default, fields, extra, credits
		FROM resolved_entities
		WHERE kind = ? AND id = ?
	`, string(ref.Kind), ref.ID)
	e, err := scanResolved(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ResolvedEntity{}, &LedgerError{Code: ErrCodeNotFound, Message: "entity has not been resolved", Entity: ref}
	}
	if err != nil {
		return ir.ResolvedEntity{}, fmt.Errorf("get resolved %s: %w", ref, err)
	}
	return e, nil
}

func scanResolved(row rowScanner) (ir.ResolvedEntity, error) {
	var e ir.ResolvedEntity
	var kind, group, fields, extra, credits string
	var pk, pid sql.NullString
	if err := row.Scan(&kind, &e.Ref.ID, &pk, &pid, &group, &e.IsDefault, &fields, &extra, &credits); err != nil {
		return ir.ResolvedEntity{}, err
	}
	e.Ref.Kind = ir.EntityKind(kind)
	e.Parent = parentRef(pk, pid)

	var err error
	if e.Group, err = unmarshalGroup(group); err != nil {
		return ir.ResolvedEntity{}, err
	}
	if e.Fields, err = unmarshalObject(fields); err != nil {
		return ir.ResolvedEntity{}, err
	}
	if e.Extra, err = unmarshalObject(extra); err != nil {
		return ir.ResolvedEntity{}, err
	}
	if e.Credits, err = unmarshalCredits(credits); err != nil {
		return ir.ResolvedEntity{}, err
	}
	return e, nil
}
