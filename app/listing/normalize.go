package listing

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds accents, lowercases, turns every non-alphanumeric rune
// into a space and collapses whitespace: "Televisor  LED-55\"" -> "televisor led 55".
func Normalize(s string) string {
	// transform.Chain keeps state, so it is built per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, folded)

	return strings.Join(strings.Fields(mapped), " ")
}

// Key is the dedup form of a name: normalized with all spaces removed
func Key(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "")
}

// IsRelevant reports whether a listing name plausibly matches the search
// term: either normalized string contains the other, or at least 60% of the
// term's tokens appear as whole tokens in the name.
func IsRelevant(name, term string) bool {
	normalizedName := Normalize(name)
	normalizedTerm := Normalize(term)

	if normalizedName == "" || normalizedTerm == "" {
		return false
	}

	if strings.Contains(normalizedName, normalizedTerm) || strings.Contains(normalizedTerm, normalizedName) {
		return true
	}

	nameTokens := make(map[string]struct{})
	for _, token := range strings.Fields(normalizedName) {
		nameTokens[token] = struct{}{}
	}

	termTokens := strings.Fields(normalizedTerm)
	matched := 0
	for _, token := range termTokens {
		if _, ok := nameTokens[token]; ok {
			matched++
		}
	}

	return matched*5 >= len(termTokens)*3
}
