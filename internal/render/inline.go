package render

import (
	"regexp"

	"github.com/dgallion1/techspec/internal/document"
)

// emphasisPattern tries bold before italic at every position, so
// "***x***" renders as bold "*x" followed by a plain "*". Both forms
// need at least one inner character; a lone "**" stays plain text.
var emphasisPattern = regexp.MustCompile(`\*\*(.+?)\*\*|\*(.+?)\*`)

// FormatInline splits text into plain, bold and italic runs at the given
// point size. Markers are stripped from emphasized runs; every other
// character lands in exactly one run, in input order.
func FormatInline(text string, size float64) []document.Run {
	var runs []document.Run
	plain := func(s string) {
		if s != "" {
			runs = append(runs, document.Run{Text: s, Emphasis: document.Plain, Size: size})
		}
	}

	last := 0
	for _, m := range emphasisPattern.FindAllStringSubmatchIndex(text, -1) {
		plain(text[last:m[0]])
		switch {
		case m[2] >= 0:
			runs = append(runs, document.Run{Text: text[m[2]:m[3]], Emphasis: document.Bold, Size: size})
		case m[4] >= 0:
			runs = append(runs, document.Run{Text: text[m[4]:m[5]], Emphasis: document.Italic, Size: size})
		}
		last = m[1]
	}
	plain(text[last:])
	return runs
}
