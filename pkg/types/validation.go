package types

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// FUNCTIONAL DISCOVERY: Validator built once at package initialization,
// it caches struct metadata across calls
var validate = validator.New()

// Participant names are 2-20 characters after trimming, counted in runes
const nameRule = "min=2,max=20"

// NormalizeName trims a display name and checks its length
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := validate.Var(trimmed, nameRule); err != nil {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

// NormalizeText trims chat text and truncates it to maxLength runes.
// An empty result is rejected.
func NormalizeText(text string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	return Truncate(trimmed, maxLength), nil
}

// Truncate cuts s to at most maxLength runes
func Truncate(s string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	return string([]rune(s)[:maxLength])
}
