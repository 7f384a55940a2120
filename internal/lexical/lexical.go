// Package lexical scores surface similarity between text chunks.
//
// Two modes are selected by a length heuristic: chunks of comparable
// length are compared symmetrically (word-set Jaccard plus a
// subsequence ratio over the token stream); strongly different lengths
// switch to asymmetric containment, which measures how much of the
// shorter chunk is present in the longer one.
package lexical

import (
	"regexp"
	"strings"
)

// lenRatioSymmetric is the boundary between symmetric comparison and
// asymmetric containment.
const lenRatioSymmetric = 0.7

var (
	parenCitationRe = regexp.MustCompile(`\([^)]*\d{4}[^)]*\)`)
	nonWordRe       = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// NormalizeForComparison lowercases text, removes parenthesised
// citations, strips punctuation, and collapses whitespace.
func NormalizeForComparison(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = parenCitationRe.ReplaceAllString(text, "")
	text = nonWordRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Similarity returns the lexical similarity of two chunks in [0,1].
// Stopwords are kept: stripping them would erase stylistic signal that
// distinguishes quotation from paraphrase.
func Similarity(input, matched string) float64 {
	a := NormalizeForComparison(input)
	b := NormalizeForComparison(matched)
	if a == "" || b == "" {
		return 0
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	shorter, longer := len(tokensA), len(tokensB)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if float64(shorter)/float64(longer) > lenRatioSymmetric {
		return symmetricSimilarity(tokensA, tokensB)
	}
	return containmentSimilarity(a, b, tokensA, tokensB)
}

// symmetricSimilarity combines word-set Jaccard (0.6) with a longest
// common subsequence ratio over the token stream (0.4).
func symmetricSimilarity(tokensA, tokensB []string) float64 {
	return 0.6*jaccard(tokensA, tokensB) + 0.4*sequenceRatio(tokensA, tokensB)
}

// containmentSimilarity weights the fraction of the shorter side's
// word set found in the longer side (0.6) with a character-level
// sequence ratio (0.4).
func containmentSimilarity(a, b string, tokensA, tokensB []string) float64 {
	setA := toSet(tokensA)
	setB := toSet(tokensB)

	shorter := setA
	if len(setB) < len(setA) {
		shorter = setB
	}
	inter := intersectionSize(setA, setB)

	containment := 0.0
	if len(shorter) > 0 {
		containment = float64(inter) / float64(len(shorter))
	}

	return 0.6*containment + 0.4*sequenceRatio(runeTokens(a), runeTokens(b))
}

// jaccard computes word-set Jaccard similarity.
func jaccard(tokensA, tokensB []string) float64 {
	setA := toSet(tokensA)
	setB := toSet(tokensB)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := intersectionSize(setA, setB)
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

// sequenceRatio is 2*LCS / (len(a)+len(b)) over the given element
// streams, the classic similarity ratio of a difference algorithm.
func sequenceRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	lcs := lcsLength(a, b)
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

// lcsLength computes the longest common subsequence length with a
// two-row dynamic program.
func lcsLength(a, b []string) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func runeTokens(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
