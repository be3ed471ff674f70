package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinbase/internal/ir"
)

func TestAssert_SupersedesPreviousActive(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	ref := seedModel(t, s, "G1-M1")

	first, err := s.Assert(ctx, ref, "ipdb", "year", ir.IRInt(1978), "ipdb:1")
	require.NoError(t, err)
	second, err := s.Assert(ctx, ref, "ipdb", "year", ir.IRInt(1979), "ipdb:1")
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	active, err := s.Active(ctx, ref)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, ir.IRInt(1979), active[0].Value)
	assert.Equal(t, 100, active[0].Priority)

	history, err := s.History(ctx, ref, "year")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ir.IRInt(1979), history[0].Value, "history is newest first")
	assert.True(t, history[0].Active)
	assert.Equal(t, ir.IRInt(1978), history[1].Value)
	assert.False(t, history[1].Active)
}

func TestAssert_UnknownEntity(t *testing.T) {
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)

	_, err := s.Assert(context.Background(), ir.Ref(ir.KindModel, "missing"), "ipdb", "year", ir.IRInt(1979), "")
	assert.True(t, IsUnknownEntity(err), "got %v", err)
}

func TestAssert_UnknownSource(t *testing.T) {
	s := createTestStore(t)
	ref := seedModel(t, s, "G1-M1")

	_, err := s.Assert(context.Background(), ref, "nowhere", "year", ir.IRInt(1979), "")
	assert.True(t, IsUnknownSource(err), "got %v", err)
}

func TestAssert_RejectsRelationshipField(t *testing.T) {
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	ref := seedModel(t, s, "G1-M1")

	_, err := s.Assert(context.Background(), ref, "ipdb", "credit", ir.IRString("x"), "")
	assert.Error(t, err)
}

func TestAssertRelationship_CoexistUnderDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	ref := seedModel(t, s, "G1-M1")

	for _, c := range []ir.Credit{{Person: "pat-lawlor", Role: "design"}, {Person: "john-youssi", Role: "art"}} {
		key, value, err := ir.RelationshipClaim("credit", map[string]string{"person": c.Person, "role": c.Role}, true)
		require.NoError(t, err)
		_, err = s.AssertRelationship(ctx, ref, "ipdb", "credit", key, value, "")
		require.NoError(t, err)
	}

	active, err := s.Active(ctx, ref)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "credit|person:john-youssi|role:art", active[0].ClaimKey)
	assert.Equal(t, "credit|person:pat-lawlor|role:design", active[1].ClaimKey)
}

func TestActive_OrderedByPriorityThenRecency(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	seedSource(t, s, "opdb", 200)
	seedSource(t, s, "book", 200)
	ref := seedModel(t, s, "G1-M1")

	_, err := s.Assert(ctx, ref, "opdb", "year", ir.IRInt(1979), "")
	require.NoError(t, err)
	_, err = s.Assert(ctx, ref, "ipdb", "year", ir.IRInt(1978), "")
	require.NoError(t, err)
	_, err = s.Assert(ctx, ref, "book", "year", ir.IRInt(1980), "")
	require.NoError(t, err)

	active, err := s.Active(ctx, ref)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "book", active[0].SourceID, "equal priority: newer claim first")
	assert.Equal(t, "opdb", active[1].SourceID)
	assert.Equal(t, "ipdb", active[2].SourceID)
}

func TestBulkAssert_StatsAndIdempotency(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	a := seedModel(t, s, "A")
	b := seedModel(t, s, "B")

	batch := []ir.PendingClaim{
		{Entity: a, Field: "name", Value: ir.IRString("Paragon")},
		{Entity: a, Field: "year", Value: ir.IRInt(1978)},
		{Entity: a, Field: "year", Value: ir.IRInt(1979)}, // last write wins
		{Entity: b, Field: "name", Value: ir.IRString("Xenon")},
	}

	stats, err := s.BulkAssert(ctx, "ipdb", batch)
	require.NoError(t, err)
	assert.Equal(t, BulkStats{Created: 3, DuplicatesRemoved: 1}, stats)

	stats, err = s.BulkAssert(ctx, "ipdb", batch)
	require.NoError(t, err)
	assert.Equal(t, BulkStats{Unchanged: 3, DuplicatesRemoved: 1}, stats, "identical re-ingest writes nothing")

	history, err := s.History(ctx, a, "")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	stats, err = s.BulkAssert(ctx, "ipdb", []ir.PendingClaim{
		{Entity: a, Field: "year", Value: ir.IRInt(1979), Citation: "ipdb:1792"},
	})
	require.NoError(t, err)
	assert.Equal(t, BulkStats{Created: 1, Superseded: 1}, stats, "citation change supersedes")

	active, err := s.Active(ctx, a)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "ipdb:1792", active[1].Citation)
}

func TestBulkAssert_UnknownEntityWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	a := seedModel(t, s, "A")

	_, err := s.BulkAssert(ctx, "ipdb", []ir.PendingClaim{
		{Entity: a, Field: "name", Value: ir.IRString("Paragon")},
		{Entity: ir.Ref(ir.KindModel, "ghost"), Field: "name", Value: ir.IRString("Ghost")},
	})
	require.Error(t, err)
	assert.True(t, IsUnknownEntity(err))

	history, err := s.History(ctx, a, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteEntity_CascadesClaims(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	ref := seedModel(t, s, "A")

	_, err := s.Assert(ctx, ref, "ipdb", "name", ir.IRString("Paragon"), "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntity(ctx, ref))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM claims`).Scan(&n))
	assert.Zero(t, n)
}

func TestActivity_FlagsConflict(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	seedSource(t, s, "opdb", 200)
	ref := seedModel(t, s, "A")

	_, err := s.Assert(ctx, ref, "ipdb", "year", ir.IRInt(1978), "")
	require.NoError(t, err)
	_, err = s.Assert(ctx, ref, "opdb", "year", ir.IRInt(1979), "")
	require.NoError(t, err)
	_, err = s.Assert(ctx, ref, "ipdb", "name", ir.IRString("Paragon"), "")
	require.NoError(t, err)
	_, err = s.Assert(ctx, ref, "opdb", "name", ir.IRString("Paragon"), "")
	require.NoError(t, err)

	activity, err := s.Activity(ctx, ref)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "name", activity[0].Key)
	assert.Equal(t, "agreement", activity[0].Status())
	assert.Equal(t, "year", activity[1].Key)
	assert.Equal(t, "conflict", activity[1].Status())
	assert.Equal(t, 2, activity[1].Active)
}

func TestActiveAll_GroupsByEntity(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	a := seedModel(t, s, "A")
	b := seedModel(t, s, "B")

	_, err := s.BulkAssert(ctx, "ipdb", []ir.PendingClaim{
		{Entity: a, Field: "name", Value: ir.IRString("Paragon")},
		{Entity: b, Field: "name", Value: ir.IRString("Xenon")},
		{Entity: b, Field: "year", Value: ir.IRInt(1980)},
	})
	require.NoError(t, err)

	all, err := s.ActiveAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all[a], 1)
	assert.Len(t, all[b], 2)
}

// Property: after any sequence of asserts, each (entity, source, field)
// triple has exactly one active claim carrying the last asserted value.
func TestAssert_AtMostOneActiveProperty(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	sources := []string{"ipdb", "opdb"}
	for i, id := range sources {
		seedSource(t, s, id, (i+1)*100)
	}
	refs := []ir.EntityRef{seedModel(t, s, "A"), seedModel(t, s, "B")}
	fields := []string{"year", "name"}

	last := make(map[string]ir.IRValue)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("one active claim per triple, equal to the last assert", prop.ForAll(
		func(ops []int) bool {
			for _, op := range ops {
				ref := refs[op%2]
				src := sources[(op/2)%2]
				field := fields[(op/4)%2]
				value := ir.IRInt(op)
				if _, err := s.Assert(ctx, ref, src, field, value, ""); err != nil {
					return false
				}
				last[fmt.Sprintf("%s|%s|%s", ref, src, field)] = value
			}

			var dupes int
			if err := s.db.QueryRow(`
				SELECT COUNT(*) FROM (
					SELECT 1 FROM claims WHERE is_active = 1
					GROUP BY entity_kind, entity_id, source_id, claim_key
					HAVING COUNT(*) > 1
				)`).Scan(&dupes); err != nil || dupes != 0 {
				return false
			}

			for _, ref := range refs {
				active, err := s.Active(ctx, ref)
				if err != nil {
					return false
				}
				for _, c := range active {
					want := last[fmt.Sprintf("%s|%s|%s", ref, c.SourceID, c.Field)]
					if !ir.Equal(want, c.Value) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 63)),
	))

	properties.TestingRun(t)
}

func TestAssert_RollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM sources`).
		WithArgs("ipdb").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM entities`).
		WithArgs("model", "G1-M1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\) \+ 1 FROM claims`).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))
	mock.ExpectExec(`UPDATE claims SET is_active = 0`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO claims`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = s.Assert(context.Background(), ir.Ref(ir.KindModel, "G1-M1"), "ipdb", "year", ir.IRInt(1979), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet(), "deactivation must be rolled back with the failed insert")
}

func TestBulkAssert_RollsBackOnCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM sources`).
		WithArgs("ipdb").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM entities`).
		WithArgs("model", "A").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT id, entity_kind, entity_id, claim_key, value, citation`).
		WithArgs("ipdb").
		WillReturnRows(sqlmock.NewRows([]string{"id", "entity_kind", "entity_id", "claim_key", "value", "citation"}))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\) \+ 1 FROM claims`).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO claims`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	stats, err := s.BulkAssert(context.Background(), "ipdb", []ir.PendingClaim{
		{Entity: ir.Ref(ir.KindModel, "A"), Field: "name", Value: ir.IRString("Paragon")},
	})
	require.Error(t, err)
	assert.Equal(t, BulkStats{}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
