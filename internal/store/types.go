// Package store persists the reference corpus in Postgres and serves
// vector similarity search over its chunks.
package store

import "time"

// Document is one reference document in the corpus.
type Document struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Content    string            `json:"content,omitempty"`
	Language   string            `json:"language"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ChunkCount int               `json:"chunk_count"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DocumentChunk is one embedded window of a document's text.
type DocumentChunk struct {
	ID         string
	DocumentID string
	Position   int
	Text       string
	WordCount  int
	Embedding  []float32
}

// ChunkMatch is one similarity search hit.
type ChunkMatch struct {
	ChunkID    string
	DocumentID string
	Title      string
	Language   string
	Position   int
	Text       string
	Metadata   map[string]string
	Score      float64
}

// SearchOptions tunes a chunk similarity search.
type SearchOptions struct {
	TopK               int
	MinScore           float64
	ExcludeDocumentIDs []string
	MaxPerSource       int
}

// SearchFilter selects documents in a catalog listing.
type SearchFilter struct {
	Query    string
	Language string
	Metadata map[string]string
	Limit    int
	Offset   int
}
