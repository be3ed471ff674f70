package resolve

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/store"
)

type fixture struct {
	store    *store.Store
	dir      *identity.Directory
	resolver *Resolver
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	s.SetClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	t.Cleanup(func() { s.Close() })

	dir := identity.NewDirectory()
	require.NoError(t, dir.AddBrand(identity.Brand{
		ID:   "gottlieb",
		Name: "Gottlieb",
		Incarnations: []identity.Incarnation{
			{ID: "d-gottlieb-co", LegalName: "D. Gottlieb & Company", ExternalID: 93},
		},
	}))
	require.NoError(t, dir.AddBrand(identity.Brand{ID: "williams", Name: "Williams", ExternalID: 5}))
	require.NoError(t, dir.AddPerson(identity.Person{ID: "pat-lawlor", Name: "Pat Lawlor"}))

	return &fixture{store: s, dir: dir, resolver: New(s, identity.NewResolver(dir), opts...)}
}

func (f *fixture) source(t *testing.T, id string, priority int, scheme ir.OrgScheme) {
	t.Helper()
	require.NoError(t, f.store.UpsertSource(context.Background(), ir.Source{
		ID: id, Name: id, Category: ir.CategoryDatabase, Priority: priority, OrgScheme: scheme,
	}))
}

func (f *fixture) entity(t *testing.T, kind ir.EntityKind, id string) ir.EntityRef {
	t.Helper()
	ref := ir.Ref(kind, id)
	require.NoError(t, f.store.UpsertEntities(context.Background(), []ir.Entity{{Ref: ref}}))
	return ref
}

func (f *fixture) assert(t *testing.T, ref ir.EntityRef, source, field string, v ir.IRValue) {
	t.Helper()
	_, err := f.store.Assert(context.Background(), ref, source, field, v, "")
	require.NoError(t, err)
}

func TestResolve_EqualPriorityLatestWins(t *testing.T) {
	f := newFixture(t)
	f.source(t, "a", 10, "")
	f.source(t, "b", 10, "")
	ref := f.entity(t, ir.KindModel, "m1")

	f.assert(t, ref, "a", "year", ir.IRString("1979"))
	f.assert(t, ref, "b", "year", ir.IRString("1978"))

	got, warnings, err := f.resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, ir.IRInt(1978), got.Fields["year"])
}

func TestResolve_HigherPriorityWinsOutright(t *testing.T) {
	f := newFixture(t)
	f.source(t, "a", 10, "")
	f.source(t, "b", 20, "")
	ref := f.entity(t, ir.KindModel, "m1")

	f.assert(t, ref, "b", "year", ir.IRString("1978"))
	f.assert(t, ref, "a", "year", ir.IRString("1979"))

	got, _, err := f.resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(1978), got.Fields["year"])
}

func TestResolve_FailedCoercionLeavesFieldEmpty(t *testing.T) {
	f := newFixture(t)
	f.source(t, "a", 10, "")
	ref := f.entity(t, ir.KindModel, "m1")

	f.assert(t, ref, "a", "year", ir.IRString("nineteen seventy"))
	f.assert(t, ref, "a", "name", ir.IRString("  Eight Ball "))

	got, warnings, err := f.resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.NotContains(t, got.Fields, "year")
	assert.Equal(t, ir.IRString("Eight Ball"), got.Fields["name"])

	require.Len(t, warnings, 1)
	assert.Equal(t, "year", warnings[0].Field)
	assert.Equal(t, "a", warnings[0].Source)
	assert.Equal(t, `"nineteen seventy"`, warnings[0].Value)
}

func TestResolve_EmptyWinnerClearsField(t *testing.T) {
	f := newFixture(t)
	f.source(t, "a", 10, "")
	f.source(t, "b", 20, "")
	ref := f.entity(t, ir.KindModel, "m1")

	f.assert(t, ref, "a", "theme", ir.IRString("Billiards"))
	f.assert(t, ref, "b", "theme", ir.IRNull{})
	f.assert(t, ref, "b", "mpu", ir.IRString("   "))

	got, warnings, err := f.resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, got.Fields)
}

func TestResolve_UnmodeledFieldsKeptVerbatim(t *testing.T) {
	f := newFixture(t)
	f.source(t, "a", 10, "")
	ref := f.entity(t, ir.KindModel, "m1")

	urls := ir.IRArray{ir.IRString("https://example.com/1.jpg")}
	f.assert(t, ref, "a", "image_urls", urls)
	f.assert(t, ref, "a", "notable_features", ir.IRString("Drop targets"))

	got, _, err := f.resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"image_urls":       urls,
		"notable_features": ir.IRString("Drop targets"),
	}, got.Extra)
}

func TestResolve_UnknownEntity(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.resolver.Resolve(context.Background(), ir.Ref(ir.KindModel, "missing"))
	assert.True(t, store.IsNotFound(err))
}

func TestResolve_OrganizationSchemes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source(t, "corporate", 100, ir.OrgSchemeIncarnation)
	f.source(t, "machines", 200, ir.OrgSchemeBrand)
	f.source(t, "editorial", 300, ir.OrgSchemeName)

	byIncarnation := f.entity(t, ir.KindModel, "m1")
	byBrand := f.entity(t, ir.KindModel, "m2")
	byName := f.entity(t, ir.KindModel, "m3")
	newName := f.entity(t, ir.KindModel, "m4")
	missing := f.entity(t, ir.KindModel, "m5")

	f.assert(t, byIncarnation, "corporate", "manufacturer", ir.IRInt(93))
	f.assert(t, byBrand, "machines", "manufacturer", ir.IRInt(5))
	f.assert(t, byName, "editorial", "manufacturer", ir.IRString("D. Gottlieb & Company, of Chicago, Illinois (1931-1977)"))
	f.assert(t, newName, "editorial", "manufacturer", ir.IRString("Stern Pinball"))
	f.assert(t, missing, "corporate", "manufacturer", ir.IRString("999"))

	res, err := f.resolver.ResolveAll(ctx)
	require.NoError(t, err)

	byRef := map[ir.EntityRef]ir.ResolvedEntity{}
	for _, e := range res.Entities {
		byRef[e.Ref] = e
	}
	assert.Equal(t, ir.IRString("gottlieb"), byRef[byIncarnation].Fields["manufacturer"])
	assert.Equal(t, ir.IRString("williams"), byRef[byBrand].Fields["manufacturer"])
	assert.Equal(t, ir.IRString("gottlieb"), byRef[byName].Fields["manufacturer"])
	assert.Equal(t, ir.IRString("stern-pinball"), byRef[newName].Fields["manufacturer"])
	assert.NotContains(t, byRef[missing].Fields, "manufacturer")

	stern, ok := byRef[ir.Ref(ir.KindManufacturer, "stern-pinball")]
	require.True(t, ok, "created brand gets a manufacturer entity")
	assert.Equal(t, ir.IRString("Stern Pinball"), stern.Fields["name"])

	_, err = f.store.GetEntity(ctx, ir.Ref(ir.KindManufacturer, "stern-pinball"))
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, missing, res.Warnings[0].Entity)
	assert.Equal(t, "manufacturer", res.Warnings[0].Field)
}

func TestResolve_Credits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source(t, "a", 10, "")
	f.source(t, "b", 20, "")
	ref := f.entity(t, ir.KindModel, "m1")

	credit := func(source, person, role string, exists bool) {
		key, value, err := ir.RelationshipClaim("credit", map[string]string{"person": person, "role": role}, exists)
		require.NoError(t, err)
		_, err = f.store.AssertRelationship(ctx, ref, source, "credit", key, value, "")
		require.NoError(t, err)
	}
	credit("a", "pat-lawlor", "design", true)
	credit("a", "pat-lawlor", "art", true)
	credit("b", "pat-lawlor", "art", false)
	credit("a", "nobody-known", "music", true)

	got, warnings, err := f.resolver.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []ir.Credit{{Person: "pat-lawlor", Role: "design"}}, got.Credits)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "nobody-known")
}

func TestResolve_DirectoryNamesFillGaps(t *testing.T) {
	f := newFixture(t)
	f.entity(t, ir.KindPerson, "pat-lawlor")
	ref := f.entity(t, ir.KindManufacturer, "williams")

	got, _, err := f.resolver.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Williams"), got.Fields["name"])

	got, _, err = f.resolver.Resolve(context.Background(), ir.Ref(ir.KindPerson, "pat-lawlor"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("Pat Lawlor"), got.Fields["name"])
}

func TestResolveAll_StagesSortedRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source(t, "a", 10, "")
	m := f.entity(t, ir.KindModel, "m1")
	title := f.entity(t, ir.KindTitle, "G1")
	f.assert(t, m, "a", "name", ir.IRString("Eight Ball"))
	f.assert(t, title, "a", "name", ir.IRString("Eight Ball"))

	res, err := f.resolver.ResolveAll(ctx)
	require.NoError(t, err)

	staged, err := f.store.ListResolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Entities, staged)

	var got []string
	for _, e := range res.Entities {
		got = append(got, e.Ref.String())
	}
	assert.Equal(t, []string{
		"manufacturer:gottlieb",
		"manufacturer:williams",
		"model:m1",
		"title:G1",
	}, got)
}

func TestResolveAll_DeterministicAcrossWorkerCounts(t *testing.T) {
	ctx := context.Background()
	digests := map[int]string{}
	for _, workers := range []int{1, 8} {
		f := newFixture(t, WithWorkers(workers))
		f.source(t, "a", 10, "")
		f.source(t, "b", 20, "")
		for _, id := range []string{"m1", "m2", "m3", "m4", "m5", "m6"} {
			ref := f.entity(t, ir.KindModel, id)
			f.assert(t, ref, "a", "name", ir.IRString("A "+id))
			f.assert(t, ref, "b", "year", ir.IRInt(1990))
			f.assert(t, ref, "a", "year", ir.IRInt(1991))
			f.assert(t, ref, "a", "manufacturer", ir.IRString("Williams"))
		}
		res, err := f.resolver.ResolveAll(ctx)
		require.NoError(t, err)
		d, err := ir.Digest(ir.DomainSnapshot, res.Entities)
		require.NoError(t, err)
		digests[workers] = d
	}
	assert.Equal(t, digests[1], digests[8])
}

func TestResolveAll_CreatedBrandsIndependentOfWorkers(t *testing.T) {
	ctx := context.Background()
	names := map[string]int{}
	digests := map[string]int{}
	for _, workers := range []int{1, 8} {
		for range 20 {
			f := newFixture(t, WithWorkers(workers))
			f.source(t, "editorial", 10, ir.OrgSchemeName)
			for i := range 20 {
				ref := f.entity(t, ir.KindProduction, fmt.Sprintf("p%02d", i))
				// Both spellings slug to foo-co
				raw := "Foo Co"
				if i%2 == 0 {
					raw = "Foo & Co"
				}
				f.assert(t, ref, "editorial", "manufacturer", ir.IRString(raw))
			}

			res, err := f.resolver.ResolveAll(ctx)
			require.NoError(t, err)
			d, err := ir.Digest(ir.DomainSnapshot, res.Entities)
			require.NoError(t, err)
			digests[d]++

			b, ok := f.dir.Brand("foo-co")
			require.True(t, ok)
			names[b.Name]++
		}
	}
	assert.Len(t, names, 1, "brand name depends on scheduling: %v", names)
	assert.Len(t, digests, 1)
}

func TestWinners_OrderIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("winner depends on priority and seq, not input order", prop.ForAll(
		func(priorities []int, shuffleSeed int64) bool {
			if len(priorities) == 0 {
				return true
			}
			claims := make([]ir.RankedClaim, len(priorities))
			for i, p := range priorities {
				claims[i] = ir.RankedClaim{
					Claim:    ir.Claim{ClaimKey: "year", Field: "year", Seq: int64(i + 1), Value: ir.IRInt(i)},
					Priority: p,
				}
			}
			want := winners(claims)

			shuffled := append([]ir.RankedClaim(nil), claims...)
			rand.New(rand.NewSource(shuffleSeed)).Shuffle(len(shuffled), func(a, b int) {
				shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
			})
			got := winners(shuffled)
			if len(got) != 1 || got[0].Seq != want[0].Seq {
				return false
			}

			for _, c := range claims {
				if c.Priority > got[0].Priority {
					return false
				}
				if c.Priority == got[0].Priority && c.Seq > got[0].Seq {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 3)),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
