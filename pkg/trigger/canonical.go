package trigger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CanonicalMarker prefixes the compact token inserted for deferred resolution.
const CanonicalMarker = '§'

// CanonicalSpan locates a canonical token inside a buffer.
type CanonicalSpan struct {
	Start int
	End   int
	ID    string
}

// Canonical renders the compact token for an item ID, e.g. "§mcp.lit.search".
func Canonical(id string) string {
	return string(CanonicalMarker) + id
}

// ParseCanonical extracts the item ID from a canonical token.
func ParseCanonical(s string) (string, bool) {
	r, size := utf8.DecodeRuneInString(s)
	if r != CanonicalMarker {
		return "", false
	}
	id := s[size:]
	if !validID(id) {
		return "", false
	}
	return id, true
}

// FindCanonical returns every canonical token in text, in order.
// A token runs from the marker to the next whitespace; trailing sentence
// punctuation is not part of the ID.
func FindCanonical(text string) []CanonicalSpan {
	var spans []CanonicalSpan
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != CanonicalMarker {
			i += size
			continue
		}
		j := i + size
		for j < len(text) {
			c, n := utf8.DecodeRuneInString(text[j:])
			if unicode.IsSpace(c) {
				break
			}
			j += n
		}
		end := i + size + len(strings.TrimRight(text[i+size:j], ".,;:!?"))
		if id := text[i+size : end]; validID(id) {
			spans = append(spans, CanonicalSpan{Start: i, End: end, ID: id})
		}
		i = j
	}
	return spans
}

func validID(id string) bool {
	if id == "" || strings.HasPrefix(id, ".") || strings.HasSuffix(id, ".") {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || r == CanonicalMarker
	})
}
