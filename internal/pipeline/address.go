// Package pipeline walks a dataset row by row, resolving addresses to
// coordinates under request quotas and a rate window.
package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// newAddressCleaner composes NFC, drops format characters (zero-width
// spaces, bidi marks, stray BOMs), and turns no-break spaces into plain
// spaces. Chained transformers carry state, so each call gets its own.
func newAddressCleaner() transform.Transformer {
	return transform.Chain(
		norm.NFC,
		runes.Remove(runes.In(unicode.Cf)),
		runes.Map(func(r rune) rune {
			if r == '\u00a0' || r == '\u202f' {
				return ' '
			}
			return r
		}),
	)
}

// NormalizeAddress returns the address as it is sent to the geocoder. An
// empty result means the row has no usable address.
func NormalizeAddress(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned, _, err := transform.String(newAddressCleaner(), raw)
	if err != nil {
		cleaned = raw
	}
	return strings.Join(strings.Fields(cleaned), " ")
}
