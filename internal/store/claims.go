package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/pinbase/internal/ir"
)

// BulkStats summarizes one BulkAssert call.
type BulkStats struct {
	Unchanged         int `json:"unchanged"`
	Created           int `json:"created"`
	Superseded        int `json:"superseded"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// Assert records that source claims field = value for entity.
//
// Deactivating the previous active claim for (entity, source, field) and
// inserting the new one happen in one transaction; a reader never sees zero
// or two active claims for the triple. An unknown entity or source is a hard
// error, not a silent drop.
func (s *Store) Assert(ctx context.Context, entity ir.EntityRef, sourceID, field string, value ir.IRValue, citation string) (ir.Claim, error) {
	if ir.IsRelationship(field) {
		return ir.Claim{}, fmt.Errorf("assert %s.%s: relationship field requires AssertRelationship", entity, field)
	}
	return s.assert(ctx, sourceID, ir.PendingClaim{
		Entity:   entity,
		Field:    field,
		Value:    value,
		Citation: citation,
	})
}

// AssertRelationship is Assert for relationship namespaces, where several
// active claims from one source coexist under distinct claim keys.
func (s *Store) AssertRelationship(ctx context.Context, entity ir.EntityRef, sourceID, field, claimKey string, value ir.IRValue, citation string) (ir.Claim, error) {
	if claimKey == "" {
		return ir.Claim{}, fmt.Errorf("assert %s.%s: empty claim key", entity, field)
	}
	return s.assert(ctx, sourceID, ir.PendingClaim{
		Entity:   entity,
		Field:    field,
		ClaimKey: claimKey,
		Value:    value,
		Citation: citation,
	})
}

func (s *Store) assert(ctx context.Context, sourceID string, p ir.PendingClaim) (ir.Claim, error) {
	if p.Field == "" {
		return ir.Claim{}, fmt.Errorf("assert %s: empty field", p.Entity)
	}
	valueJSON, err := marshalValue(p.Value)
	if err != nil {
		return ir.Claim{}, fmt.Errorf("assert %s.%s: %w", p.Entity, p.Field, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Claim{}, fmt.Errorf("assert: begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := sourceExists(ctx, tx, sourceID)
	if err != nil {
		return ir.Claim{}, err
	}
	if !ok {
		return ir.Claim{}, unknownSource(sourceID)
	}
	ok, err = entityExists(ctx, tx, p.Entity)
	if err != nil {
		return ir.Claim{}, err
	}
	if !ok {
		return ir.Claim{}, unknownEntity(p.Entity)
	}

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return ir.Claim{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE claims SET is_active = 0
		WHERE entity_kind = ? AND entity_id = ? AND source_id = ? AND claim_key = ? AND is_active = 1
	`, string(p.Entity.Kind), p.Entity.ID, sourceID, p.Key()); err != nil {
		return ir.Claim{}, fmt.Errorf("assert: deactivate: %w", err)
	}

	now := s.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO claims
		(entity_kind, entity_id, source_id, field, claim_key, value, citation, is_active, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		string(p.Entity.Kind),
		p.Entity.ID,
		sourceID,
		p.Field,
		p.Key(),
		valueJSON,
		p.Citation,
		seq,
		formatTime(now),
	)
	if err != nil {
		return ir.Claim{}, fmt.Errorf("assert: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ir.Claim{}, fmt.Errorf("assert: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Claim{}, fmt.Errorf("assert: commit: %w", err)
	}

	return ir.Claim{
		ID:        id,
		Entity:    p.Entity,
		SourceID:  sourceID,
		Field:     p.Field,
		ClaimKey:  p.Key(),
		Value:     p.Value,
		Citation:  p.Citation,
		Active:    true,
		Seq:       seq,
		CreatedAt: now,
	}, nil
}

type claimSlot struct {
	entity ir.EntityRef
	key    string
}

type activeRow struct {
	id       int64
	value    string
	citation string
}

// BulkAssert is the ingestion write path for one source.
//
// Pending claims are deduplicated last-write-wins per (entity, claim key).
// A claim whose value and citation match the source's active claim is left
// alone; a changed one supersedes it. Everything happens in one transaction,
// so re-ingesting identical input writes nothing.
func (s *Store) BulkAssert(ctx context.Context, sourceID string, pending []ir.PendingClaim) (BulkStats, error) {
	var stats BulkStats

	latest := make(map[claimSlot]int, len(pending))
	for i, p := range pending {
		if p.Field == "" {
			return stats, fmt.Errorf("bulk assert %s: claim %d has empty field", sourceID, i)
		}
		slot := claimSlot{entity: p.Entity, key: p.Key()}
		if _, dup := latest[slot]; dup {
			stats.DuplicatesRemoved++
		}
		latest[slot] = i
	}

	slots := make([]claimSlot, 0, len(latest))
	for slot := range latest {
		slots = append(slots, slot)
	}
	slices.SortFunc(slots, func(a, b claimSlot) int {
		if a.entity != b.entity {
			if a.entity.Less(b.entity) {
				return -1
			}
			return 1
		}
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		}
		return 0
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("bulk assert: begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := sourceExists(ctx, tx, sourceID)
	if err != nil {
		return stats, err
	}
	if !ok {
		return stats, unknownSource(sourceID)
	}

	checked := make(map[ir.EntityRef]bool)
	for _, slot := range slots {
		if checked[slot.entity] {
			continue
		}
		ok, err := entityExists(ctx, tx, slot.entity)
		if err != nil {
			return stats, err
		}
		if !ok {
			return stats, &LedgerError{
				Code:    ErrCodeUnknownEntity,
				Message: "entity does not exist",
				Entity:  slot.entity,
				Source:  sourceID,
			}
		}
		checked[slot.entity] = true
	}

	active := make(map[claimSlot]activeRow)
	rows, err := tx.QueryContext(ctx, `
		SELECT id, entity_kind, entity_id, claim_key, value, citation
		FROM claims
		WHERE source_id = ? AND is_active = 1
	`, sourceID)
	if err != nil {
		return stats, fmt.Errorf("bulk assert: load active: %w", err)
	}
	for rows.Next() {
		var r activeRow
		var kind, id, key string
		if err := rows.Scan(&r.id, &kind, &id, &key, &r.value, &r.citation); err != nil {
			rows.Close()
			return stats, fmt.Errorf("bulk assert: scan active: %w", err)
		}
		active[claimSlot{entity: ir.Ref(ir.EntityKind(kind), id), key: key}] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("bulk assert: iterate active: %w", err)
	}

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return stats, err
	}
	createdAt := formatTime(s.now())

	for _, slot := range slots {
		p := pending[latest[slot]]
		valueJSON, err := marshalValue(p.Value)
		if err != nil {
			return stats, fmt.Errorf("bulk assert %s.%s: %w", p.Entity, p.Field, err)
		}

		if prev, ok := active[slot]; ok {
			if prev.value == valueJSON && prev.citation == p.Citation {
				stats.Unchanged++
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE claims SET is_active = 0 WHERE id = ?`, prev.id); err != nil {
				return stats, fmt.Errorf("bulk assert: deactivate %s.%s: %w", p.Entity, slot.key, err)
			}
			stats.Superseded++
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO claims
			(entity_kind, entity_id, source_id, field, claim_key, value, citation, is_active, seq, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`,
			string(p.Entity.Kind),
			p.Entity.ID,
			sourceID,
			p.Field,
			slot.key,
			valueJSON,
			p.Citation,
			seq,
			createdAt,
		); err != nil {
			return stats, fmt.Errorf("bulk assert: insert %s.%s: %w", p.Entity, slot.key, err)
		}
		seq++
		stats.Created++
	}

	if err := tx.Commit(); err != nil {
		return BulkStats{}, fmt.Errorf("bulk assert: commit: %w", err)
	}
	return stats, nil
}

const claimColumns = `c.id, c.entity_kind, c.entity_id, c.source_id, c.field, c.claim_key,
	c.value, c.citation, c.is_active, c.seq, c.created_at`

// History returns every claim (active and superseded) for entity, newest
// first. An empty field returns the history of all fields.
func (s *Store) History(ctx context.Context, entity ir.EntityRef, field string) ([]ir.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims c
		WHERE c.entity_kind = ? AND c.entity_id = ?`
	args := []any{string(entity.Kind), entity.ID}
	if field != "" {
		query += ` AND c.field = ?`
		args = append(args, field)
	}
	query += ` ORDER BY c.seq DESC, c.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", entity, err)
	}
	defer rows.Close()

	claims := []ir.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", entity, err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return claims, nil
}

// Active returns entity's active claims joined with source trust data,
// ordered by claim key, then priority (highest first), then seq (newest
// first). The first claim of each key is therefore its winner.
func (s *Store) Active(ctx context.Context, entity ir.EntityRef) ([]ir.RankedClaim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+claimColumns+`, s.priority, s.org_scheme
		FROM claims c
		JOIN sources s ON s.id = c.source_id
		WHERE c.entity_kind = ? AND c.entity_id = ? AND c.is_active = 1
		ORDER BY c.claim_key COLLATE BINARY ASC, s.priority DESC, c.seq DESC, c.id DESC
	`, string(entity.Kind), entity.ID)
	if err != nil {
		return nil, fmt.Errorf("active claims %s: %w", entity, err)
	}
	defer rows.Close()

	claims := []ir.RankedClaim{}
	for rows.Next() {
		rc, err := scanRankedClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("active claims %s: %w", entity, err)
		}
		claims = append(claims, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active claims: %w", err)
	}
	return claims, nil
}

// ActiveAll returns the active claims of every entity in one query, grouped
// by entity with the same per-entity ordering as Active.
func (s *Store) ActiveAll(ctx context.Context) (map[ir.EntityRef][]ir.RankedClaim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+claimColumns+`, s.priority, s.org_scheme
		FROM claims c
		JOIN sources s ON s.id = c.source_id
		WHERE c.is_active = 1
		ORDER BY c.entity_kind COLLATE BINARY ASC, c.entity_id COLLATE BINARY ASC,
			c.claim_key COLLATE BINARY ASC, s.priority DESC, c.seq DESC, c.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("active claims: %w", err)
	}
	defer rows.Close()

	out := make(map[ir.EntityRef][]ir.RankedClaim)
	for rows.Next() {
		rc, err := scanRankedClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("active claims: %w", err)
		}
		out[rc.Entity] = append(out[rc.Entity], rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active claims: %w", err)
	}
	return out, nil
}

// KeyActivity is the history of one claim key on one entity.
type KeyActivity struct {
	Key      string     `json:"key"`
	Field    string     `json:"field"`
	Claims   []ir.Claim `json:"claims"` // Newest first
	Active   int        `json:"active"`
	Conflict bool       `json:"conflict"` // Active claims disagree on the value
}

// Status renders the agreement flag.
func (a KeyActivity) Status() string {
	if a.Conflict {
		return "conflict"
	}
	return "agreement"
}

// Activity groups entity's claim history by claim key and flags keys whose
// active claims carry more than one distinct value.
func (s *Store) Activity(ctx context.Context, entity ir.EntityRef) ([]KeyActivity, error) {
	history, err := s.History(ctx, entity, "")
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*KeyActivity)
	values := make(map[string]map[string]bool)
	for _, c := range history {
		a, ok := byKey[c.ClaimKey]
		if !ok {
			a = &KeyActivity{Key: c.ClaimKey, Field: c.Field}
			byKey[c.ClaimKey] = a
			values[c.ClaimKey] = make(map[string]bool)
		}
		a.Claims = append(a.Claims, c)
		if c.Active {
			a.Active++
			v, err := marshalValue(c.Value)
			if err != nil {
				return nil, fmt.Errorf("activity %s: %w", entity, err)
			}
			values[c.ClaimKey][v] = true
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]KeyActivity, 0, len(keys))
	for _, k := range keys {
		a := byKey[k]
		a.Conflict = len(values[k]) > 1
		out = append(out, *a)
	}
	return out, nil
}

func scanClaimInto(row rowScanner, c *ir.Claim, extra ...any) error {
	var kind, valueJSON, createdAt string
	dest := []any{
		&c.ID, &kind, &c.Entity.ID, &c.SourceID, &c.Field, &c.ClaimKey,
		&valueJSON, &c.Citation, &c.Active, &c.Seq, &createdAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	c.Entity.Kind = ir.EntityKind(kind)
	v, err := unmarshalValue(valueJSON)
	if err != nil {
		return err
	}
	c.Value = v
	t, err := parseTime(createdAt)
	if err != nil {
		return err
	}
	c.CreatedAt = t
	return nil
}

func scanClaim(row rowScanner) (ir.Claim, error) {
	var c ir.Claim
	if err := scanClaimInto(row, &c); err != nil {
		return ir.Claim{}, err
	}
	return c, nil
}

func scanRankedClaim(row rowScanner) (ir.RankedClaim, error) {
	var rc ir.RankedClaim
	var scheme string
	if err := scanClaimInto(row, &rc.Claim, &rc.Priority, &scheme); err != nil {
		return ir.RankedClaim{}, err
	}
	rc.OrgScheme = ir.OrgScheme(scheme)
	return rc, nil
}
