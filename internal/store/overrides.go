package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveOverrides replaces the stored curated overrides document.
func (s *Store) SaveOverrides(ctx context.Context, doc []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO curated_overrides (slot, document, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, string(doc), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save overrides: %w", err)
	}
	return nil
}

// LoadOverrides returns the stored curated overrides document, or a
// NOT_FOUND ledger error when none was ever saved.
func (s *Store) LoadOverrides(ctx context.Context) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM curated_overrides WHERE slot = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &LedgerError{Code: ErrCodeNotFound, Message: "no curated overrides stored"}
	}
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	return []byte(doc), nil
}
