package detector

import (
	"fmt"
	"sort"

	"github.com/veriscan/veriscan/internal/chunking"
	"github.com/veriscan/veriscan/internal/config"
	"github.com/veriscan/veriscan/internal/lexical"
	"github.com/veriscan/veriscan/internal/store"
)

// semanticWeight and lexicalWeight fuse the two scores 50/50.
const (
	semanticWeight = 0.5
	lexicalWeight  = 0.5
)

// scoreCandidates rescores raw kNN hits for one input chunk: lexical
// fusion, citation penalty, threshold, per-source cap. The returned
// slice is ordered by combined score descending, ties broken by higher
// semantic score then smaller source position.
func scoreCandidates(chunk chunking.Chunk, hits []store.ChunkMatch, minSim float64, maxPerSource int) []CandidateMatch {
	if len(hits) == 0 {
		return nil
	}

	hasCitation := lexical.HasCitation(chunk.Text)
	var citedNames []string
	if hasCitation {
		citedNames = lexical.CitedNames(chunk.Text)
	}

	candidates := make([]CandidateMatch, 0, len(hits))
	for _, hit := range hits {
		semantic := hit.Score
		if semantic < 0 {
			semantic = 0
		}
		lex := lexical.Similarity(chunk.Text, hit.Text)
		combined := semanticWeight*semantic + lexicalWeight*lex

		// The penalty fires once per chunk, and not when the chunk
		// cites the very document it matched.
		if hasCitation && !lexical.CitesSource(citedNames, hit.Title, hit.Metadata) {
			combined *= 1 - lexical.CitationPenalty
		}

		if combined < minSim {
			continue
		}
		candidates = append(candidates, CandidateMatch{
			DocumentID:       hit.DocumentID,
			DocumentTitle:    hit.Title,
			MatchedChunkID:   hit.ChunkID,
			MatchedChunkText: hit.Text,
			InputChunkText:   chunk.Text,
			InputChunkIndex:  chunk.Index,
			SourcePosition:   hit.Position,
			SemanticScore:    semantic,
			LexicalScore:     lex,
			CombinedScore:    combined,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.SemanticScore != b.SemanticScore {
			return a.SemanticScore > b.SemanticScore
		}
		return a.SourcePosition < b.SourcePosition
	})

	// Lexical rescoring can reorder hits, so the per-source cap is
	// applied again after sorting.
	if maxPerSource > 0 {
		perSource := make(map[string]int, len(candidates))
		capped := candidates[:0]
		for _, cand := range candidates {
			if perSource[cand.DocumentID] >= maxPerSource {
				continue
			}
			perSource[cand.DocumentID]++
			capped = append(capped, cand)
		}
		candidates = capped
	}
	return candidates
}

// dedupeGlobal merges per-chunk candidates into the response match
// list: one entry per matched corpus chunk, keeping the
// highest-scoring occurrence, at most topK entries.
func dedupeGlobal(all []CandidateMatch, topK int) []CandidateMatch {
	best := make(map[string]CandidateMatch, len(all))
	for _, cand := range all {
		key := cand.DocumentID + "\x00" + cand.MatchedChunkID
		if prev, ok := best[key]; !ok || cand.CombinedScore > prev.CombinedScore {
			best[key] = cand
		}
	}

	merged := make([]CandidateMatch, 0, len(best))
	for _, cand := range best {
		merged = append(merged, cand)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if a.InputChunkIndex != b.InputChunkIndex {
			return a.InputChunkIndex < b.InputChunkIndex
		}
		return a.MatchedChunkID < b.MatchedChunkID
	})

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// weightedPercentage computes the plagiarism percentage: each chunk
// with a qualifying best match contributes its word count weighted by
// that match's combined score, normalized by the total word count.
func weightedPercentage(chunks []chunking.Chunk, analyses []ChunkAnalysis, qualifyLow float64) float64 {
	var numer, denom float64
	for i, chunk := range chunks {
		denom += float64(chunk.WordCount)
		if analyses[i].MaxSimilarity >= qualifyLow {
			numer += float64(chunk.WordCount) * analyses[i].MaxSimilarity
		}
	}
	if denom == 0 {
		return 0
	}
	pct := 100 * numer / denom
	if pct > 100 {
		pct = 100
	}
	return pct
}

// band maps a score in [0,1] to its severity.
func band(score float64, t config.Thresholds) Severity {
	switch {
	case score >= t.Critical:
		return SeverityCritical
	case score >= t.High:
		return SeverityHigh
	case score >= t.Medium:
		return SeverityMedium
	case score >= t.Low:
		return SeverityLow
	default:
		return SeveritySafe
	}
}

// explain renders the deterministic verdict summary.
func explain(severity Severity, qualifying, total int) string {
	switch severity {
	case SeverityCritical:
		return fmt.Sprintf("Severe plagiarism detected: %d of %d passages closely match existing sources.", qualifying, total)
	case SeverityHigh:
		return fmt.Sprintf("High similarity detected: %d of %d passages match existing sources.", qualifying, total)
	case SeverityMedium:
		return fmt.Sprintf("Moderate similarity detected: %d of %d passages resemble existing sources.", qualifying, total)
	case SeverityLow:
		return fmt.Sprintf("Minor similarity detected: %d of %d passages show some overlap with existing sources.", qualifying, total)
	default:
		return "No significant similarity to the reference corpus was found."
	}
}
