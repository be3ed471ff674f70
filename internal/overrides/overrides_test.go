package overrides

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ir"
)

func TestLoad_Curated(t *testing.T) {
	f, err := Load("testdata/curated.yaml")
	require.NoError(t, err)

	pins, err := f.PinMap()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"G1-M1": "Eight Ball Family", "G1-M2": "Eight Ball Family"}, pins)

	require.Len(t, f.Brands, 1)
	assert.Equal(t, int64(93), f.Brands[0].Incarnations[0].ExternalID)
	assert.Equal(t, []string{"Python Vladimir Anghelo"}, f.Persons[0].Aliases)
}

func TestPendingClaims(t *testing.T) {
	f, err := Load("testdata/curated.yaml")
	require.NoError(t, err)

	claims, err := f.PendingClaims()
	require.NoError(t, err)
	require.Len(t, claims, 5)

	desc := claims[0]
	assert.Equal(t, ir.Ref(ir.KindTitle, "G1"), desc.Entity)
	assert.Equal(t, "description", desc.Key())
	assert.Equal(t, ir.IRString("A billiards-themed classic."), desc.Value)
	assert.Equal(t, "editor", desc.Citation)

	assert.Equal(t, ir.IRInt(1977), claims[1].Value)
	assert.Equal(t, ir.IRDecimal("7.85"), claims[2].Value)

	assert.Equal(t, "credit|person:python-anghelo|role:art", claims[3].Key())
	assert.Equal(t, ir.IRBool(true), claims[3].Value.(ir.IRObject)["exists"])
	assert.Equal(t, "credit|person:pat-lawlor|role:design", claims[4].Key())
	assert.Equal(t, ir.IRBool(false), claims[4].Value.(ir.IRObject)["exists"])
}

func TestApply(t *testing.T) {
	f, err := Load("testdata/curated.yaml")
	require.NoError(t, err)

	dir := identity.NewDirectory()
	require.NoError(t, f.Apply(dir))

	_, b, ok := dir.IncarnationByExternalID(93)
	require.True(t, ok)
	assert.Equal(t, "gottlieb", b.ID)

	p, ok := dir.Person("python-anghelo")
	require.True(t, ok)
	assert.Equal(t, "Python Anghelo", p.Name)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown section", "pinz:\n  - row: a\n    production: b\n", "pinz"},
		{"empty production", "pins:\n  - row: a\n    production: \"\"\n", "production"},
		{"bad entity ref", "descriptions:\n  - entity: machine:1\n    text: hi\n", "entity"},
		{"negative external id", "brands:\n  - name: X\n    external_id: -1\n", "external_id"},
		{"unknown brand key", "brands:\n  - name: X\n    owner: Y\n", "owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("inline.yaml", []byte(tt.yaml))
			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "inline.yaml", se.File)
			assert.Contains(t, se.Error(), tt.want)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse("empty.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, f.Pins)
}

func TestLoad_ConflictingPins(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(a, []byte("pins:\n  - row: G1-M1\n    production: One\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("pins:\n  - row: G1-M1\n    production: Two\n"), 0o644))

	_, err := Load(a, b)
	assert.ErrorContains(t, err, "G1-M1")
}

func TestPendingClaims_RelationshipNeedsMapping(t *testing.T) {
	f := &File{Claims: []Claim{{Entity: "model:m1", Field: "credit", Value: "pat-lawlor"}}}
	_, err := f.PendingClaims()
	assert.ErrorContains(t, err, "mapping")
}
