// Package ingest reads raw source files and normalizes their codes and
// strings into the vocabulary the catalog uses.
package ingest

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Technology generations.
const (
	GenerationElectromechanical = "electromechanical"
	GenerationSolidState        = "solid-state"
	GenerationPureMechanical    = "pure-mechanical"
)

// SkipManufacturerIDs are corporate-source manufacturer IDs that mean
// "unassigned" (0) or "Unknown" (328) and must not be claimed.
var SkipManufacturerIDs = map[int64]bool{0: true, 328: true}

var datePrefix = regexp.MustCompile(`^(\d{4})(?:-(\d{2}))?`)

// ParseDate parses "1992-03-01", "1992-03" or "1992" into year and month.
// month is 0 when unknown; ok is false when no year can be read.
func ParseDate(s string) (year, month int, ok bool) {
	m := datePrefix.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		month, _ = strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			month = 0
		}
	}
	return year, month, true
}

// ParseFlatDate parses the flat export's "1992-03-01T00:00:00" timestamps.
// The export writes January 1st at midnight when only the year is known,
// so that exact value yields month 0.
func ParseFlatDate(s string) (year, month int, ok bool) {
	year, month, ok = ParseDate(s)
	if ok && month == 1 && strings.HasSuffix(strings.TrimSpace(s), "01-01T00:00:00") {
		month = 0
	}
	return year, month, ok
}

// Generation maps a hierarchical-source type code ("em", "ss", "me").
func Generation(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "em":
		return GenerationElectromechanical
	case "ss":
		return GenerationSolidState
	case "me":
		return GenerationPureMechanical
	}
	return ""
}

// FlatGeneration maps the flat export's short type ("EM", "SS"), falling
// back to the long type for pure mechanical machines, which have no short
// code.
func FlatGeneration(short, full string) string {
	switch strings.TrimSpace(short) {
	case "EM":
		return GenerationElectromechanical
	case "SS":
		return GenerationSolidState
	}
	if strings.Contains(strings.ToLower(full), "pure mechanical") {
		return GenerationPureMechanical
	}
	return ""
}

var displayTypes = map[string]string{
	"reels":        "score-reels",
	"alphanumeric": "alphanumeric",
	"dmd":          "dot-matrix",
	"lcd":          "lcd",
	"lights":       "backglass-lights",
	"cga":          "cga",
}

// DisplayType maps a display code to its slug, or "" if unknown.
func DisplayType(code string) string {
	return displayTypes[strings.ToLower(strings.TrimSpace(code))]
}

// GroupID returns the group prefix of a hierarchical-source ID:
// "G5pe4-MkPy7-AOPQR" -> "G5pe4".
func GroupID(id string) string {
	group, _, _ := strings.Cut(strings.TrimSpace(id), "-")
	return group
}

// ParentID returns the machine ID an alias ID hangs off:
// "G5pe4-MkPy7-AOPQR" -> "G5pe4-MkPy7". IDs without an alias segment are
// returned unchanged.
func ParentID(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) < 3 || !strings.HasPrefix(parts[len(parts)-1], "A") {
		return id
	}
	return strings.Join(parts[:len(parts)-1], "-")
}

// CleanText trims whitespace and decodes HTML entities, which the flat
// export leaves in titles and notes.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}
