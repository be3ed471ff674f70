package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in          string
		year, month int
		ok          bool
	}{
		{"1992-03-01", 1992, 3, true},
		{"1979-11", 1979, 11, true},
		{"1964", 1964, 0, true},
		{"1964-13-01", 1964, 0, true},
		{"", 0, 0, false},
		{"circa 1950", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			y, m, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.year, y)
			assert.Equal(t, tt.month, m)
		})
	}
}

func TestParseFlatDate_JanuaryPlaceholder(t *testing.T) {
	y, m, ok := ParseFlatDate("1978-01-01T00:00:00")
	assert.True(t, ok)
	assert.Equal(t, 1978, y)
	assert.Equal(t, 0, m, "January 1st midnight means month unknown")

	y, m, ok = ParseFlatDate("1978-01-15T00:00:00")
	assert.True(t, ok)
	assert.Equal(t, 1978, y)
	assert.Equal(t, 1, m)
}

func TestGeneration(t *testing.T) {
	assert.Equal(t, GenerationElectromechanical, Generation("em"))
	assert.Equal(t, GenerationSolidState, Generation(" SS "))
	assert.Equal(t, GenerationPureMechanical, Generation("me"))
	assert.Equal(t, "", Generation("digital"))

	assert.Equal(t, GenerationSolidState, FlatGeneration("SS", "Solid State Electronic"))
	assert.Equal(t, GenerationPureMechanical, FlatGeneration("", "Pure Mechanical"))
	assert.Equal(t, "", FlatGeneration("", ""))
}

func TestDisplayType(t *testing.T) {
	assert.Equal(t, "dot-matrix", DisplayType("DMD"))
	assert.Equal(t, "score-reels", DisplayType("reels"))
	assert.Equal(t, "", DisplayType("hologram"))
}

func TestGroupAndParentID(t *testing.T) {
	assert.Equal(t, "G5pe4", GroupID("G5pe4-MkPy7-AOPQR"))
	assert.Equal(t, "G5pe4", GroupID("G5pe4"))
	assert.Equal(t, "G5pe4-MkPy7", ParentID("G5pe4-MkPy7-AOPQR"))
	assert.Equal(t, "G5pe4-MkPy7", ParentID("G5pe4-MkPy7"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Rock & Roll", CleanText("  Rock &amp; Roll "))
}
