package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/pinbase/internal/ir"
)

// Snapshot is one published, immutable catalog version.
type Snapshot struct {
	ID        string              `json:"id"`
	Digest    string              `json:"digest"`
	Version   string              `json:"version"`
	Warnings  int                 `json:"warnings"`
	CreatedAt time.Time           `json:"created_at"`
	Entities  []ir.ResolvedEntity `json:"entities"`
}

// SnapshotInfo is a snapshot's metadata without its payload.
type SnapshotInfo struct {
	ID          string    `json:"id"`
	Digest      string    `json:"digest"`
	Version     string    `json:"version"`
	EntityCount int       `json:"entity_count"`
	Warnings    int       `json:"warnings"`
	CreatedAt   time.Time `json:"created_at"`
	Current     bool      `json:"current"`
}

// PublishSnapshot stores snap and marks it current in one transaction.
// Readers of CurrentSnapshot observe either the previous snapshot or this
// one, never a mix.
func (s *Store) PublishSnapshot(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap.Entities)
	if err != nil {
		return fmt.Errorf("publish snapshot: marshal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("publish snapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_snapshots (id, digest, version, entity_count, warnings, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		snap.Digest,
		snap.Version,
		len(snap.Entities),
		snap.Warnings,
		string(payload),
		formatTime(snap.CreatedAt),
	); err != nil {
		return fmt.Errorf("publish snapshot: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_current (slot, snapshot_id) VALUES (1, ?)
		ON CONFLICT(slot) DO UPDATE SET snapshot_id = excluded.snapshot_id
	`, snap.ID); err != nil {
		return fmt.Errorf("publish snapshot: mark current: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("publish snapshot: commit: %w", err)
	}
	return nil
}

// CurrentSnapshot returns the published snapshot, or NOT_FOUND if nothing
// has been published yet.
func (s *Store) CurrentSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var payload, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT cs.id, cs.digest, cs.version, cs.warnings, cs.payload, cs.created_at
		FROM catalog_current cc
		JOIN catalog_snapshots cs ON cs.id = cc.snapshot_id
		WHERE cc.slot = 1
	`).Scan(&snap.ID, &snap.Digest, &snap.Version, &snap.Warnings, &payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, &LedgerError{Code: ErrCodeNotFound, Message: "no catalog has been published"}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("current snapshot: %w", err)
	}

	if snap.CreatedAt, err = parseTime(createdAt); err != nil {
		return Snapshot{}, fmt.Errorf("current snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &snap.Entities); err != nil {
		return Snapshot{}, fmt.Errorf("current snapshot: unmarshal payload: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns snapshot metadata, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cs.id, cs.digest, cs.version, cs.entity_count, cs.warnings, cs.created_at,
			cc.snapshot_id IS NOT NULL
		FROM catalog_snapshots cs
		LEFT JOIN catalog_current cc ON cc.snapshot_id = cs.id
		ORDER BY cs.created_at DESC, cs.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		var createdAt string
		if err := rows.Scan(&info.ID, &info.Digest, &info.Version, &info.EntityCount, &info.Warnings, &createdAt, &info.Current); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		if info.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}
