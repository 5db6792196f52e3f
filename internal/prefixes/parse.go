// Package prefixes persists the user's prefix list and turns settings text into it.
package prefixes

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseInput turns settings text into a prefix list: one entry per line, trimmed,
// NFC-normalized, empties dropped and duplicates removed keeping the first occurrence.
func ParseInput(text string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		p := norm.NFC.String(strings.TrimSpace(line))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// FormatInput renders a list back into settings text, one prefix per line.
func FormatInput(list []string) string {
	return strings.Join(list, "\n")
}
