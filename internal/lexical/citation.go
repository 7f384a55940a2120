package lexical

import (
	"regexp"
	"strings"
)

// CitationPenalty is the multiplicative discount applied to the
// combined score of a chunk that visibly references a source. It fires
// at most once per chunk.
const CitationPenalty = 0.15

var (
	authorYearRe = regexp.MustCompile(`\((\p{Lu}[\p{L}.\s&-]*?),\s*\d{4}\)`)
	bracketRefRe = regexp.MustCompile(`\[\d{1,3}\]`)
	doiRe        = regexp.MustCompile(`\b10\.\d{4,}/`)
	urlRe        = regexp.MustCompile(`https?://`)
)

// HasCitation reports whether text contains a visible source
// reference: an (Author, YYYY) parenthetical, a numeric [N] marker, a
// DOI prefix, or a bare URL.
func HasCitation(text string) bool {
	return authorYearRe.MatchString(text) ||
		bracketRefRe.MatchString(text) ||
		doiRe.MatchString(text) ||
		urlRe.MatchString(text)
}

// CitedNames extracts author names from (Author, YYYY) citations,
// lowercased, for matching against source titles.
func CitedNames(text string) []string {
	groups := authorYearRe.FindAllStringSubmatch(text, -1)
	if len(groups) == 0 {
		return nil
	}
	names := make([]string, 0, len(groups))
	for _, g := range groups {
		name := strings.ToLower(strings.TrimSpace(g[1]))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// CitesSource reports whether any of the cited names appears in the
// matched document's title or metadata, meaning the chunk credits the
// very source it matches.
func CitesSource(names []string, title string, metadata map[string]string) bool {
	if len(names) == 0 {
		return false
	}
	haystack := strings.ToLower(title)
	for _, v := range metadata {
		haystack += " " + strings.ToLower(v)
	}
	for _, name := range names {
		if strings.Contains(haystack, name) {
			return true
		}
	}
	return false
}
