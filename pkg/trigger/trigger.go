package trigger

import (
	"unicode"
	"unicode/utf8"
)

// Marker starts a slash token.
const Marker = '/'

// Token is an active slash token in a text buffer.
// Start is the byte offset of the slash, End is the caret.
type Token struct {
	Start int
	End   int
	Query string
}

// Detect finds the slash token that ends at caret.
//
// A token is active iff a '/' exists at position 0 or right after whitespace,
// with no whitespace between it and the caret. The query is the text between the
// slash and the caret. caret is a byte offset: out-of-range values are clamped and
// offsets inside a multi-byte rune snap back to the rune start. Detect never panics.
func Detect(text string, caret int) (Token, bool) {
	caret = clampCaret(text, caret)

	// Only the first rune of the whitespace-free run ending at the caret can sit
	// at position 0 or follow whitespace.
	start := caret
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsSpace(r) {
			break
		}
		start -= size
	}
	if start == caret || text[start] != Marker {
		return Token{}, false
	}
	return Token{Start: start, End: caret, Query: text[start+1 : caret]}, true
}

// Replace substitutes the token span [Start, End) with insert and returns the
// new text and the caret positioned right after the inserted text.
func Replace(text string, tok Token, insert string) (string, int) {
	start := clampCaret(text, tok.Start)
	end := clampCaret(text, tok.End)
	if end < start {
		end = start
	}
	return text[:start] + insert + text[end:], start + len(insert)
}

func clampCaret(text string, caret int) int {
	if caret < 0 {
		return 0
	}
	if caret > len(text) {
		return len(text)
	}
	for caret > 0 && caret < len(text) && !utf8.RuneStart(text[caret]) {
		caret--
	}
	return caret
}
