package render

import (
	"strconv"
	"strings"
)

// Section is one of the canonical, numbered document sections.
type Section struct {
	Name    string
	Ordinal int // 1-based
}

// Title returns the numbered heading text, e.g. "2. Scope".
func (s Section) Title() string {
	return strconv.Itoa(s.Ordinal) + ". " + s.Name
}

// Sections is the fixed, ordered registry of canonical section names.
// List order decides ties when a line mentions more than one name.
var Sections = []Section{
	{Name: "Purpose", Ordinal: 1},
	{Name: "Scope", Ordinal: 2},
	{Name: "Background", Ordinal: 3},
	{Name: "Root Cause Analysis", Ordinal: 4},
	{Name: "Design Solution", Ordinal: 5},
	{Name: "Objects Changed", Ordinal: 6},
}

// SectionNames returns the canonical names in registry order.
func SectionNames() []string {
	names := make([]string, len(Sections))
	for i, s := range Sections {
		names[i] = s.Name
	}
	return names
}

// MatchSection reports the first canonical section whose name appears
// anywhere in line, ignoring case. The match is deliberately loose:
// "See scope of work below" matches Scope.
func MatchSection(line string) (Section, bool) {
	lower := strings.ToLower(line)
	for _, s := range Sections {
		if strings.Contains(lower, strings.ToLower(s.Name)) {
			return s, true
		}
	}
	return Section{}, false
}
