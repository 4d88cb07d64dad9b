package tui

import (
	"strings"

	"github.com/aretw0/palette/pkg/registry"
	"github.com/muesli/termenv"
)

// MatchFormatter renders overlay entries with the matched characters in bold
// and a marker for recently used items.
func MatchFormatter(p termenv.Profile) func(registry.Match) string {
	return func(m registry.Match) string {
		hit := make(map[int]bool, len(m.Indexes))
		for _, i := range m.Indexes {
			hit[i] = true
		}

		var b strings.Builder
		b.WriteString("/")
		for i, r := range m.Item.Trigger {
			s := string(r)
			if hit[i] {
				b.WriteString(p.String(s).Bold().Foreground(p.Color("#c084fc")).String())
				continue
			}
			b.WriteString(s)
		}

		if m.Item.Description != "" {
			b.WriteString("  ")
			b.WriteString(p.String(m.Item.Description).Faint().String())
		}
		if m.Recent {
			b.WriteString(" ·")
		}
		return b.String()
	}
}
