package generate

import (
	"strings"

	"github.com/dgallion1/techspec/internal/render"
)

// Sanitize strips model chatter from generated content. Output starts at
// the first line opening a known section in bold ("**Purpose**"). After
// that, every line starting with "**" that does not open a known section
// is dropped ("**Note:** ..." included) and all other lines are kept.
// Lines are trimmed and blank lines removed.
func Sanitize(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case opensSection(line):
			kept = append(kept, line)
		case len(kept) > 0 && !strings.HasPrefix(line, "**"):
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func opensSection(line string) bool {
	for _, name := range render.SectionNames() {
		if strings.HasPrefix(line, "**"+name) {
			return true
		}
	}
	return false
}
