package moderation

import (
	"slices"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// DefaultCensorChar replaces every rune of a censored word
const DefaultCensorChar = '*'

// Moderator masks censored words in chat text.
// A Moderator built from an empty word list leaves text unchanged.
type Moderator struct {
	matcher    *goahocorasick.Machine
	censorChar rune
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the Aho-Corasick automaton over the normalized word list
func NewModerator(censoredWords []string, censorChar rune) (*Moderator, error) {
	if censorChar == 0 {
		censorChar = DefaultCensorChar
	}

	// The double-array trie is built from sorted, distinct keys
	words := make([]string, 0, len(censoredWords))
	for _, word := range censoredWords {
		if normalized := normalizeRunes([]rune(word)); len(normalized) > 0 {
			words = append(words, string(normalized))
		}
	}
	if len(words) == 0 {
		return &Moderator{censorChar: censorChar}, nil
	}
	slices.Sort(words)
	words = slices.Compact(words)

	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = []rune(word)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, censorChar: censorChar}, nil
}

// Enabled reports whether any word is censored
func (m *Moderator) Enabled() bool {
	return m != nil && m.matcher != nil
}

// Censor replaces the original runes of every match while preserving spacing
// and punctuation between matches
func (m *Moderator) Censor(original string) string {
	if !m.Enabled() {
		return original
	}
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original
	}

	origRunes := []rune(original)
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}
		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censorChar
		}
	}
	return string(origRunes)
}

// normalize maps input into searchable runes and remembers where each came from
func normalize(input string) textMapping {
	origRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet substitutions back to letters
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
