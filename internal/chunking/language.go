package chunking

import (
	"strings"
)

// LanguageUnknown is returned when no language can be inferred.
const LanguageUnknown = "unknown"

// Stopword samples used for cheap language inference. Vietnamese is
// additionally recognized by its diacritic range.
var (
	englishStopwords = []string{
		" the ", " and ", " of ", " to ", " in ", " is ", " that ", " for ",
		" with ", " was ", " are ", " this ",
	}
	vietnameseStopwords = []string{
		" và ", " của ", " là ", " các ", " trong ", " được ", " những ",
		" với ", " cho ", " này ",
	}
	vietnameseRunes = "ăâđêôơưĂÂĐÊÔƠƯạảấầẩẫậắằẳẵặẹẻẽếềểễệỉịọỏốồổỗộớờởỡợụủứừửữựỳỵỷỹ"
)

// DetectLanguage guesses the dominant language of text. Texts shorter
// than 20 characters are reported as unknown. The heuristic only
// distinguishes the languages the corpus carries; anything else falls
// back to unknown.
func DetectLanguage(text string) string {
	if len(text) < 20 {
		return LanguageUnknown
	}

	lower := " " + strings.ToLower(Normalize(text)) + " "

	if strings.ContainsAny(lower, vietnameseRunes) {
		return "vi"
	}

	viHits := countHits(lower, vietnameseStopwords)
	enHits := countHits(lower, englishStopwords)

	switch {
	case viHits > enHits && viHits > 0:
		return "vi"
	case enHits > 0:
		return "en"
	default:
		return LanguageUnknown
	}
}

// ValidLanguage reports whether code is acceptable as a language hint:
// a two-letter ISO-style code, "auto", or empty (treated as auto).
func ValidLanguage(code string) bool {
	if code == "" || code == "auto" || code == LanguageUnknown {
		return true
	}
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func countHits(text string, words []string) int {
	hits := 0
	for _, w := range words {
		hits += strings.Count(text, w)
	}
	return hits
}
