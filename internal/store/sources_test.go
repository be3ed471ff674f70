package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinbase/internal/ir"
)

func TestUpsertSource_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	src := ir.Source{
		ID:          "ipdb",
		Name:        "Internet Pinball Database",
		Category:    ir.CategoryDatabase,
		Priority:    100,
		URL:         "https://www.ipdb.org",
		Description: "Flat per-title export",
		OrgScheme:   ir.OrgSchemeIncarnation,
	}
	require.NoError(t, s.UpsertSource(ctx, src))

	got, err := s.GetSource(ctx, "ipdb")
	require.NoError(t, err)
	assert.Equal(t, src, got)

	src.Priority = 150
	require.NoError(t, s.UpsertSource(ctx, src))
	got, err = s.GetSource(ctx, "ipdb")
	require.NoError(t, err)
	assert.Equal(t, 150, got.Priority)
}

func TestGetSource_Unknown(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetSource(context.Background(), "nope")
	assert.True(t, IsUnknownSource(err))
}

func TestListSources_PriorityThenName(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	seedSource(t, s, "opdb", 200)
	seedSource(t, s, "editorial", 200)

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	ids := make([]string, len(sources))
	for i, src := range sources {
		ids[i] = src.ID
	}
	assert.Equal(t, []string{"editorial", "opdb", "ipdb"}, ids)
}

func TestSetSourcePriority(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)

	require.NoError(t, s.SetSourcePriority(ctx, "ipdb", 300))
	got, err := s.GetSource(ctx, "ipdb")
	require.NoError(t, err)
	assert.Equal(t, 300, got.Priority)

	assert.True(t, IsUnknownSource(s.SetSourcePriority(ctx, "nope", 1)))
}

func TestDeleteSource_InUse(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	seedSource(t, s, "ipdb", 100)
	seedSource(t, s, "unused", 1)
	ref := seedModel(t, s, "A")

	_, err := s.Assert(ctx, ref, "ipdb", "name", ir.IRString("Paragon"), "")
	require.NoError(t, err)

	err = s.DeleteSource(ctx, "ipdb")
	assert.True(t, IsSourceInUse(err), "got %v", err)

	require.NoError(t, s.DeleteSource(ctx, "unused"))
	assert.True(t, IsUnknownSource(s.DeleteSource(ctx, "unused")))
}
