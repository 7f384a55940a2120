// Package detector orchestrates the plagiarism check pipeline: chunk,
// embed, search, rescore, aggregate into a verdict.
package detector

import (
	"time"

	"github.com/veriscan/veriscan/internal/clients/analyzer"
)

// Severity labels a score band.
type Severity string

// Severity bands, lower bound inclusive against the thresholds.
const (
	SeveritySafe     Severity = "SAFE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// CandidateMatch is one scored pairing of an input chunk with a corpus
// chunk.
type CandidateMatch struct {
	DocumentID       string  `json:"document_id"`
	DocumentTitle    string  `json:"document_title"`
	MatchedChunkID   string  `json:"matched_chunk_id"`
	MatchedChunkText string  `json:"matched_chunk_text"`
	InputChunkText   string  `json:"input_chunk_text"`
	InputChunkIndex  int     `json:"input_chunk_index"`
	SourcePosition   int     `json:"source_position"`
	SemanticScore    float64 `json:"semantic_score"`
	LexicalScore     float64 `json:"lexical_score"`
	CombinedScore    float64 `json:"combined_score"`
}

// ChunkAnalysis summarizes the strongest match for one input chunk.
type ChunkAnalysis struct {
	ChunkIndex    int      `json:"chunk_index"`
	Text          string   `json:"text"`
	MaxSimilarity float64  `json:"max_similarity"`
	Severity      Severity `json:"severity"`
	BestMatchID   string   `json:"best_match_document_id,omitempty"`
}

// ProcessingMetrics reports where a check spent its time.
type ProcessingMetrics struct {
	ChunkCount     int           `json:"chunk_count"`
	EmbedDuration  time.Duration `json:"embed_duration"`
	SearchDuration time.Duration `json:"search_duration"`
	TotalDuration  time.Duration `json:"total_duration"`
}

// Verdict is the full result of a plagiarism check. Percentage and
// severity are computed deterministically; Analysis, when present, is
// advisory prose only.
type Verdict struct {
	RequestID   string             `json:"request_id"`
	Percentage  float64            `json:"percentage"`
	Severity    Severity           `json:"severity"`
	Explanation string             `json:"explanation"`
	Matches     []CandidateMatch   `json:"matches"`
	Chunks      []ChunkAnalysis    `json:"chunks"`
	Metrics     ProcessingMetrics  `json:"metrics"`
	Analysis    *analyzer.Analysis `json:"analysis,omitempty"`
}

// CheckOptions tunes one check request. Zero values fall back to the
// configured defaults.
type CheckOptions struct {
	MinSimilarity     float64
	TopK              int
	IncludeAIAnalysis bool
	ExcludeDocIDs     []string
}

// PDFMetrics reports the extraction phase of a PDF check.
type PDFMetrics struct {
	Title           string        `json:"title"`
	Pages           int           `json:"pages"`
	TextLength      int           `json:"text_length"`
	ExtractDuration time.Duration `json:"extract_duration"`
}

// PDFVerdict is a Verdict plus the PDF extraction metrics.
type PDFVerdict struct {
	Verdict
	PDF PDFMetrics `json:"pdf"`
}
