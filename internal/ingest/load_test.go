package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMachineRows(t *testing.T) {
	rows, err := LoadMachineRows(filepath.Join("testdata", "rows.json"))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "G1-M1", rows[0].ID)
	assert.Equal(t, int64(5), rows[0].ManufacturerID)
	assert.True(t, rows[0].DefinesHardware)
	assert.Equal(t, int64(4032), rows[0].IPDBID)

	assert.True(t, rows[1].IsAlias)
	assert.Equal(t, "Tom & Jerry (Pro)", rows[1].Name)
}

func TestLoadMachineRows_UnknownField(t *testing.T) {
	_, err := LoadMachineRows(filepath.Join("testdata", "unknown_field.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestLoadMachineRows_MissingFile(t *testing.T) {
	_, err := LoadMachineRows(filepath.Join("testdata", "nope.json"))
	assert.Error(t, err)
}

func TestLoadFlatRecords_YAML(t *testing.T) {
	recs, err := LoadFlatRecords(filepath.Join("testdata", "flat.yaml"))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, int64(4032), rec.ID)
	assert.Equal(t, int64(351), rec.ManufacturerID)
	assert.Equal(t, "SS", rec.TypeShort)
	assert.Equal(t, map[string]string{"Design": "Brian Eddy"}, rec.Credits)
}
