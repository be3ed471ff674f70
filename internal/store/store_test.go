package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.False(t, os.IsNotExist(err), "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	tables := []string{"sources", "entities", "claims", "resolved_entities", "catalog_snapshots", "catalog_current"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.want))
		})
	}
}

func TestSchema_ClaimsTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "claims")
	for _, col := range []string{
		"id", "entity_kind", "entity_id", "source_id", "field", "claim_key",
		"value", "citation", "is_active", "seq", "created_at",
	} {
		assert.Contains(t, columns, col)
	}
}

func TestSchema_ClaimsIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "claims")
	assert.True(t, slices.Contains(indexes, "idx_claims_one_active"), "partial unique index missing: %v", indexes)
	assert.True(t, slices.Contains(indexes, "idx_claims_source"))
}

func TestSchema_PartialUniqueIndexRejectsSecondActive(t *testing.T) {
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	seedModel(t, s, "G1-M1")

	insert := `
		INSERT INTO claims (entity_kind, entity_id, source_id, field, claim_key, value, is_active, seq, created_at)
		VALUES ('model', 'G1-M1', 'ipdb', 'year', 'year', '1979', ?, ?, '2026-01-01T00:00:00Z')`
	_, err := s.db.Exec(insert, 1, 1)
	require.NoError(t, err)

	_, err = s.db.Exec(insert, 1, 2)
	assert.Error(t, err, "second active claim for the same triple must be rejected")

	_, err = s.db.Exec(insert, 0, 3)
	assert.NoError(t, err, "inactive history rows are unconstrained")
}

func TestMigration_FromV0AddsWarningsColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE catalog_snapshots (
		id TEXT PRIMARY KEY, digest TEXT NOT NULL, version TEXT NOT NULL,
		entity_count INTEGER NOT NULL, payload TEXT NOT NULL, created_at TEXT NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Contains(t, getTableColumns(t, s.db, "catalog_snapshots"), "warnings")
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
