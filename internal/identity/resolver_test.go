package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	d := NewDirectory()
	require.NoError(t, d.AddBrand(Brand{
		ID:         "gottlieb",
		Name:       "Gottlieb",
		TradeName:  "Gottlieb",
		ExternalID: 3,
		Incarnations: []Incarnation{
			{ID: "d-gottlieb-co", LegalName: "D. Gottlieb & Company", YearsActive: "1931-1977", ExternalID: 93},
			{ID: "gottlieb-premier", LegalName: "Premier Technology", YearsActive: "1984-1996", ExternalID: 94},
		},
	}))
	require.NoError(t, d.AddBrand(Brand{
		ID:         "premier",
		Name:       "Premier",
		TradeName:  "Premier",
		ExternalID: 40,
	}))
	require.NoError(t, d.AddBrand(Brand{
		ID:        "bally",
		Name:      "Bally",
		TradeName: "Bally",
		Aliases:   []string{"Bally Manufacturing"},
	}))
	require.NoError(t, d.AddPerson(Person{ID: "python-anghelo", Name: "Python Anghelo", Aliases: []string{"Python Vladimir Anghelo"}}))
	require.NoError(t, d.AddPerson(Person{ID: "pat-lawlor", Name: "Pat Lawlor"}))
	return d
}

func TestResolveOrganization_IncarnationLegalName(t *testing.T) {
	r := NewResolver(testDirectory(t))

	m, ok := r.ResolveOrganization("D. Gottlieb & Company, of Chicago, Illinois (1931-1977) [Trade Name: Gottlieb]")
	require.True(t, ok)
	assert.Equal(t, "gottlieb", m.BrandID)
	assert.Equal(t, "d-gottlieb-co", m.IncarnationID)
	assert.Equal(t, MethodIncarnationLegalName, m.Method)
	assert.Equal(t, "Chicago, Illinois", m.Parsed.Location)
}

// An incarnation legal-name match beats a different brand's trade name.
func TestResolveOrganization_CascadeOrdering(t *testing.T) {
	r := NewResolver(testDirectory(t))

	m, ok := r.ResolveOrganization("Premier Technology (1984-1996) [Trade Name: Premier]")
	require.True(t, ok)
	assert.Equal(t, MethodIncarnationLegalName, m.Method)
	assert.Equal(t, "gottlieb", m.BrandID, "the brand named by the trade name must not win")
}

func TestResolveOrganization_TradeName(t *testing.T) {
	r := NewResolver(testDirectory(t))

	m, ok := r.ResolveOrganization("Some Holding Corp. (1990-1999) [Trade Name: Premier]")
	require.True(t, ok)
	assert.Equal(t, "premier", m.BrandID)
	assert.Equal(t, MethodBrandTradeName, m.Method)
}

func TestResolveOrganization_CompanyNameAndAlias(t *testing.T) {
	r := NewResolver(testDirectory(t))

	m, ok := r.ResolveOrganization("bally")
	require.True(t, ok)
	assert.Equal(t, "bally", m.BrandID)
	assert.Equal(t, MethodBrandCompanyName, m.Method)

	m, ok = r.ResolveOrganization("Bally Manufacturing")
	require.True(t, ok)
	assert.Equal(t, "bally", m.BrandID)
}

func TestResolveOrganization_Unresolved(t *testing.T) {
	r := NewResolver(testDirectory(t))

	m, ok := r.ResolveOrganization("Totally Unknown Amusements")
	assert.False(t, ok)
	assert.Equal(t, "Totally Unknown Amusements", m.Parsed.CompanyName)
	assert.Empty(t, m.BrandID)
}

func TestResolver_MemoInvalidatedOnDirectoryChange(t *testing.T) {
	d := testDirectory(t)
	r := NewResolver(d)

	_, ok := r.ResolveOrganization("Stern")
	require.False(t, ok)

	require.NoError(t, d.AddBrand(Brand{ID: "stern", Name: "Stern"}))

	m, ok := r.ResolveOrganization("Stern")
	require.True(t, ok, "cached miss must not survive a directory change")
	assert.Equal(t, "stern", m.BrandID)
}

func TestResolvePerson(t *testing.T) {
	r := NewResolver(testDirectory(t))

	m, ok := r.ResolvePerson("pat lawlor")
	require.True(t, ok)
	assert.Equal(t, PersonMatch{Raw: "pat lawlor", PersonID: "pat-lawlor", Method: MethodPersonName}, m)

	m, ok = r.ResolvePerson("Python Vladimir Anghelo")
	require.True(t, ok)
	assert.Equal(t, "python-anghelo", m.PersonID)
	assert.Equal(t, MethodPersonAlias, m.Method)
}

func TestResolveCredits(t *testing.T) {
	r := NewResolver(testDirectory(t))

	matches, unresolved := r.ResolveCredits("Pat Lawlor, Python Vladimir Anghelo (aka Python), Jane Doe, Unknown", "ipdb:61")
	require.Len(t, matches, 2)
	assert.Equal(t, "pat-lawlor", matches[0].PersonID)
	assert.Equal(t, "python-anghelo", matches[1].PersonID)
	assert.Equal(t, []Unresolved{{Kind: "person", Raw: "Jane Doe", Context: "ipdb:61"}}, unresolved)
}

func TestResolver_ConcurrentUse(t *testing.T) {
	r := NewResolver(testDirectory(t))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, ok := r.ResolveOrganization("Bally")
			assert.True(t, ok)
			assert.Equal(t, "bally", m.BrandID)
		}()
	}
	wg.Wait()
}
