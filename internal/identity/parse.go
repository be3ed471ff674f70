package identity

import (
	"regexp"
	"strings"
)

// Organization is a raw manufacturer string split into its parts.
//
// Example:
//
//	"D. Gottlieb & Company, of Chicago, Illinois (1931-1977) [Trade Name: Gottlieb]"
//
// parses to CompanyName "D. Gottlieb & Company", TradeName "Gottlieb",
// YearsActive "1931-1977", Location "Chicago, Illinois".
type Organization struct {
	Raw         string `json:"raw"`
	CompanyName string `json:"company_name"`
	TradeName   string `json:"trade_name,omitempty"`
	YearsActive string `json:"years_active,omitempty"`
	Location    string `json:"location,omitempty"`
}

var (
	tradeNamePattern   = regexp.MustCompile(`\[Trade Name:\s*(.+?)\]`)
	yearsPattern       = regexp.MustCompile(`\((\d{4}(?:-(?:\d{4}|present))?)\)`)
	locationPattern    = regexp.MustCompile(`,\s*of\s+(.+?)(?:\s*\(\d{4}|\s*\[Trade|\s*$)`)
	stripTradeName     = regexp.MustCompile(`\s*\[Trade Name:.*?\]`)
	stripYears         = regexp.MustCompile(`\s*\(\d{4}.*?\)`)
	stripLocation      = regexp.MustCompile(`,\s*of\s+.*$`)
	parentheticalRegex = regexp.MustCompile(`\s*\([^)]*\)`)
)

// ParseOrganization extracts company name, trade name, active years and
// location from a free-text manufacturer string. Missing parts are empty.
func ParseOrganization(raw string) Organization {
	org := Organization{Raw: raw}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return org
	}

	if m := tradeNamePattern.FindStringSubmatch(raw); m != nil {
		org.TradeName = strings.TrimSpace(m[1])
	}
	if m := yearsPattern.FindStringSubmatch(raw); m != nil {
		org.YearsActive = m[1]
	}
	if m := locationPattern.FindStringSubmatch(raw); m != nil {
		org.Location = strings.TrimRight(strings.TrimSpace(m[1]), ",")
	}

	company := stripTradeName.ReplaceAllString(raw, "")
	company = stripYears.ReplaceAllString(company, "")
	company = stripLocation.ReplaceAllString(company, "")
	org.CompanyName = strings.TrimRight(strings.TrimSpace(company), ",")
	return org
}

// Location is a parsed "City, State, Country" string.
type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// usStates is the closed set of first-level regions used to tell
// "City, State" from "City, Country".
var usStates = map[string]bool{
	"Alabama": true, "Alaska": true, "Arizona": true, "Arkansas": true,
	"California": true, "Colorado": true, "Connecticut": true, "Delaware": true,
	"Florida": true, "Georgia": true, "Hawaii": true, "Idaho": true,
	"Illinois": true, "Indiana": true, "Iowa": true, "Kansas": true,
	"Kentucky": true, "Louisiana": true, "Maine": true, "Maryland": true,
	"Massachusetts": true, "Michigan": true, "Minnesota": true, "Mississippi": true,
	"Missouri": true, "Montana": true, "Nebraska": true, "Nevada": true,
	"New Hampshire": true, "New Jersey": true, "New Mexico": true, "New York": true,
	"North Carolina": true, "North Dakota": true, "Ohio": true, "Oklahoma": true,
	"Oregon": true, "Pennsylvania": true, "Rhode Island": true, "South Carolina": true,
	"South Dakota": true, "Tennessee": true, "Texas": true, "Utah": true,
	"Vermont": true, "Virginia": true, "Washington": true, "West Virginia": true,
	"Wisconsin": true, "Wyoming": true,
}

// ParseLocation splits a location string.
//
//   - "Chicago, Illinois, USA" -> city, state, country
//   - "Chicago, Illinois"      -> city, state, USA
//   - "Bologna, Italy"         -> city, country
//   - "Illinois"               -> state, USA
//   - "Germany"                -> country
//
// Strings with more than three parts, or with an empty part, are ambiguous
// and yield an empty Location.
func ParseLocation(s string) Location {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Location{}
		}
	}

	switch len(parts) {
	case 3:
		return Location{City: parts[0], State: parts[1], Country: parts[2]}
	case 2:
		if usStates[parts[1]] {
			return Location{City: parts[0], State: parts[1], Country: "USA"}
		}
		return Location{City: parts[0], Country: parts[1]}
	case 1:
		if usStates[parts[0]] {
			return Location{State: parts[0], Country: "USA"}
		}
		return Location{Country: parts[0]}
	default:
		return Location{}
	}
}

var (
	creditSeparator = regexp.MustCompile(`\s*(?:,|;|&|\band\b)\s*`)
	placeholders    = map[string]bool{"undisclosed": true, "unknown": true, "n/a": true, "none": true}
)

// SplitCredits splits a delimited multi-person credit string into names.
// Parenthetical qualifiers such as "(aka Doane)" are removed, segments are
// trimmed, and empty or placeholder segments ("Unknown", "N/A") are dropped.
func SplitCredits(raw string) []string {
	raw = parentheticalRegex.ReplaceAllString(raw, "")
	var names []string
	for _, part := range creditSeparator.Split(raw, -1) {
		name := strings.Join(strings.Fields(part), " ")
		if name == "" || placeholders[strings.ToLower(name)] {
			continue
		}
		names = append(names, name)
	}
	return names
}

var combinatorPattern = regexp.MustCompile(`\([^)]*\)|\S/\S`)

// HasCombinator reports whether a machine name bundles several variant
// names, either in parentheses ("Godzilla (Premium/LE)") or slash-separated
// ("Pro/Premium").
func HasCombinator(name string) bool {
	return combinatorPattern.MatchString(name)
}
