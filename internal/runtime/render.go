package runtime

import (
	"regexp"

	"github.com/aretw0/palette/pkg/domain"
)

// placeholder matches {{name}} with optional inner whitespace.
var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Render substitutes argument values into a message template.
// The input slice is never mutated and the output only depends on the inputs.
func Render(messages []domain.PromptMessage, values domain.ArgumentValues) []domain.PromptMessage {
	out := make([]domain.PromptMessage, len(messages))
	for i, msg := range messages {
		out[i] = domain.PromptMessage{Role: msg.Role, Text: Interpolate(msg.Text, values)}
	}
	return out
}

// Interpolate replaces every {{name}} whose name is a key of values, verbatim
// and without escaping. Unknown placeholders are left untouched.
func Interpolate(text string, values domain.ArgumentValues) string {
	if len(values) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return match
	})
}

// Placeholders lists the distinct placeholder names used by messages, in order of first use.
func Placeholders(messages []domain.PromptMessage) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, msg := range messages {
		for _, m := range placeholder.FindAllStringSubmatch(msg.Text, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			names = append(names, m[1])
		}
	}
	return names
}
