package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// Scientific notation frequently survives in plain-text titles and
// abstracts as "CO2", "x^2" or "x^{-1}". These rewrites restore the
// sub/superscript markup for display.
var (
	// letter immediately followed by digits: CO2 -> CO<sub>2</sub>
	subscriptRe = regexp.MustCompile(`([A-Za-zα-ωΑ-Ω])(\d+)`)

	// caret followed by digits: x^2 -> x<sup>2</sup>
	superscriptRe = regexp.MustCompile(`\^(\d+)`)

	// caret followed by a braced group: x^{-1} -> x<sup>-1</sup>
	superscriptBraceRe = regexp.MustCompile(`\^\{([^}]+)\}`)
)

// FormatScientificText rewrites chemical formulas and exponents into
// HTML sub/superscript tags. The braced superscript form is applied first
// so its contents are not re-matched by the simpler rules.
func FormatScientificText(s string) string {
	if s == "" {
		return ""
	}
	s = superscriptBraceRe.ReplaceAllString(s, "<sup>$1</sup>")
	s = superscriptRe.ReplaceAllString(s, "<sup>$1</sup>")
	s = subscriptRe.ReplaceAllString(s, "$1<sub>$2</sub>")
	return s
}

// ReconstructInvertedAbstract rebuilds plain abstract text from the
// OpenAlex inverted-index form (token -> positions): every (position,
// token) pair is sorted by position and the tokens joined with single
// spaces. Returns empty string for an empty index.
func ReconstructInvertedAbstract(inverted map[string][]int) string {
	if len(inverted) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}

	// Guard against hostile payloads with absurd position counts.
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range inverted {
		totalPairs += len(positions)
	}
	if totalPairs > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, totalPairs)
	for word, positions := range inverted {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}

	return builder.String()
}

// TruncateAtWordBoundary shortens s to at most limit characters, cutting
// at the last space inside the limit, and appends "...". Strings within
// the limit are returned unchanged.
func TruncateAtWordBoundary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := s[:limit]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:") + "..."
}
