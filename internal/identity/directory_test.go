package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBrand_MergesAndIndexes(t *testing.T) {
	d := NewDirectory()
	require.NoError(t, d.AddBrand(Brand{ID: "williams", Name: "Williams", ExternalID: 7}))
	require.NoError(t, d.AddBrand(Brand{ID: "williams", Aliases: []string{"Williams Electronics"},
		Incarnations: []Incarnation{{LegalName: "Williams Electronic Games, Inc.", ExternalID: 350}}}))

	b, ok := d.Brand("williams")
	require.True(t, ok)
	assert.Equal(t, "Williams", b.Name)
	assert.Equal(t, int64(7), b.ExternalID)
	assert.Equal(t, []string{"Williams Electronics"}, b.Aliases)
	require.Len(t, b.Incarnations, 1)
	assert.Equal(t, "williams-electronic-games-inc", b.Incarnations[0].ID)

	byExt, ok := d.BrandByExternalID(7)
	require.True(t, ok)
	assert.Equal(t, "williams", byExt.ID)

	inc, parent, ok := d.IncarnationByExternalID(350)
	require.True(t, ok)
	assert.Equal(t, "Williams Electronic Games, Inc.", inc.LegalName)
	assert.Equal(t, "williams", parent.ID)
}

func TestAddBrand_ExternalIDConflict(t *testing.T) {
	d := NewDirectory()
	require.NoError(t, d.AddBrand(Brand{ID: "a", Name: "A", ExternalID: 1}))
	assert.Error(t, d.AddBrand(Brand{ID: "b", Name: "B", ExternalID: 1}))
}

func TestEnsureBrand(t *testing.T) {
	d := NewDirectory()
	require.NoError(t, d.AddBrand(Brand{ID: "bally", Name: "Bally"}))

	b, created, err := d.EnsureBrand("BALLY")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "bally", b.ID)

	v := d.Version()
	b, created, err = d.EnsureBrand("Mr. Game")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "mr-game", b.ID)
	assert.Greater(t, d.Version(), v)

	_, _, err = d.EnsureBrand("  ")
	assert.Error(t, err)
}

func TestEnsureBrand_ConcurrentCallersAgree(t *testing.T) {
	d := NewDirectory()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, c, err := d.EnsureBrand("Capcom")
			assert.NoError(t, err)
			assert.Equal(t, "capcom", b.ID)
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Len(t, d.Brands(), 1)
}

func TestPersons_Sorted(t *testing.T) {
	d := NewDirectory()
	require.NoError(t, d.AddPerson(Person{Name: "Steve Ritchie"}))
	require.NoError(t, d.AddPerson(Person{Name: "Pat Lawlor", Aliases: []string{"Patrick Lawlor"}}))

	persons := d.Persons()
	require.Len(t, persons, 2)
	assert.Equal(t, "pat-lawlor", persons[0].ID)
	assert.Equal(t, "steve-ritchie", persons[1].ID)
}
