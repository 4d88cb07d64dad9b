package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/palette/pkg/domain"
)

var (
	// DefaultMaxArgumentSize is 16KB per argument value.
	DefaultMaxArgumentSize = 16 * 1024
	// EnvMaxArgumentSize is the environment variable to override the default.
	EnvMaxArgumentSize = "PALETTE_MAX_ARGUMENT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput cleans one argument value by enforcing the size limit,
// validating UTF-8 and stripping control characters other than \n, \t and \r.
func SanitizeInput(input string) (string, error) {
	limit := maxArgumentSize()
	if len(input) > limit {
		// Rejected rather than truncated so the command sees exactly what was typed or nothing.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	if !strings.ContainsFunc(input, unsafeControl) {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// SanitizeArguments applies SanitizeInput to every value.
func SanitizeArguments(values domain.ArgumentValues) (domain.ArgumentValues, error) {
	out := make(domain.ArgumentValues, len(values))
	for _, name := range values.Keys() {
		clean, err := SanitizeInput(values[name])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = clean
	}
	return out, nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxArgumentSize() int {
	if val := os.Getenv(EnvMaxArgumentSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxArgumentSize
}
