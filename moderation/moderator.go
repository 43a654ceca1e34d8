package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks blacklisted words in message text.
// A Moderator built from an empty dictionary leaves every text untouched.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

type TextMapping struct {
	Normalized []rune
	OrigIdx    []int
}

// NewModerator builds the Aho-Corasick automaton from the normalized
// dictionary. Entries that normalize to nothing (pure punctuation) are skipped.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if normalized := normalizeRunes([]rune(strings.TrimSpace(word))); len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}

	mod := &Moderator{censoredChar: censoredChar, log: log}
	if len(patterns) == 0 {
		log.Warn("Moderator built without any censored word")
		return mod, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	mod.matcher = m
	log.Debug("Moderator ready", "patterns", len(patterns))
	return mod, nil
}

// Censor replaces every matched word with the censored char, keeping the
// original length and spacing. It also returns the matched dictionary words.
// Only whole words are masked: a match must start and end on a word
// boundary of the original text, so "Scunthorpe" or "was hit" stay intact.
func (m *Moderator) Censor(original string) (string, []string) {
	if m.matcher == nil {
		return original, nil
	}
	mapping := m.normalize(original)
	if len(mapping.Normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.Normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	source := []rune(original)
	censored := []rune(original)
	var words []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.OrigIdx) {
			continue
		}

		origStart := mapping.OrigIdx[normStart]
		origEnd := mapping.OrigIdx[normEnd-1] + 1
		if !isBoundary(source, origStart-1) || !isBoundary(source, origEnd) {
			continue
		}
		for i := origStart; i < origEnd; i++ {
			censored[i] = m.censoredChar
		}
		words = append(words, string(span.Word))
	}
	if len(words) == 0 {
		return original, nil
	}
	return string(censored), words
}

// normalize makes the input searchable and remembers where each kept rune
// sits in the original text. Whitespace is kept as a single separator so
// no match can span two words.
func (m *Moderator) normalize(input string) TextMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean, keep := normalizeRune(r)
		if !keep || (clean == ' ' && (len(norm) == 0 || norm[len(norm)-1] == ' ')) {
			continue
		}
		norm = append(norm, clean)
		origIdx = append(origIdx, i)
	}
	return TextMapping{Normalized: norm, OrigIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean, keep := normalizeRune(r)
		if !keep || (clean == ' ' && (len(out) == 0 || out[len(out)-1] == ' ')) {
			continue
		}
		out = append(out, clean)
	}
	return out
}

func normalizeRune(r rune) (rune, bool) {
	if unicode.IsSpace(r) {
		return ' ', true
	}
	clean := simplifyRune(r)
	if isNoise(clean) {
		return 0, false
	}
	return unicode.ToLower(clean), true
}

// simplifyRune maps common leet speak characters back to letters.
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
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// isBoundary reports whether position i of text is outside any word:
// before the start, past the end, or on a rune that is neither a letter
// nor a digit.
func isBoundary(text []rune, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := text[i]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
