package text

import "strings"

// Normalize collapses every run of whitespace (spaces, tabs, newlines) to a
// single space and trims surrounding whitespace. An empty or whitespace-only
// input yields the empty string; emptiness is not an error at this stage,
// downstream stages decide whether there is anything to synthesize.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
