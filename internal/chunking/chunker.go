// Package chunking splits normalized text into overlapping word
// windows for embedding and search.
package chunking

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid chunking configuration")
)

// Chunk is a fixed-size overlapping word window of a document.
type Chunk struct {
	// Index is the ordinal position of the chunk, 0..N-1.
	Index int
	// Text is the chunk content joined with single spaces.
	Text string
	// StartWord is the offset of the first word, in tokens from the
	// start of the normalized text.
	StartWord int
	// StartChar and EndChar delimit the chunk in the normalized text.
	StartChar int
	EndChar   int
	// WordCount is the number of whitespace tokens in Text.
	WordCount int
}

// Chunker produces deterministic overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	minChunkSize int
}

// NewChunker validates the windowing parameters and returns a Chunker.
// The overlap must be strictly smaller than the chunk size.
func NewChunker(chunkSize, chunkOverlap, minChunkSize int) (*Chunker, error) {
	if chunkSize <= 0 || minChunkSize <= 0 {
		return nil, fmt.Errorf("%w: sizes must be positive", ErrInvalidConfig)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, chunk size)", ErrInvalidConfig)
	}
	if minChunkSize > chunkSize {
		return nil, fmt.Errorf("%w: min chunk size exceeds chunk size", ErrInvalidConfig)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minChunkSize: minChunkSize,
	}, nil
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	controlRe    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F-\x9F]`)
)

// Normalize collapses whitespace runs to single spaces, strips control
// characters, and trims the ends. Casing is preserved.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = controlRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Chunk splits text into overlapping word windows. Empty or
// whitespace-only input yields no chunks. A trailing window that adds
// fewer than minChunkSize new words is merged into the previous chunk,
// so the last chunk may exceed chunkSize by at most minChunkSize-1
// words.
func (c *Chunker) Chunk(text string) []Chunk {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	words := strings.Fields(text)
	offsets := wordOffsets(words)

	if len(words) <= c.chunkSize {
		return []Chunk{{
			Index:     0,
			Text:      text,
			StartWord: 0,
			StartChar: 0,
			EndChar:   len(text),
			WordCount: len(words),
		}}
	}

	step := c.chunkSize - c.chunkOverlap
	var chunks []Chunk

	for start := 0; start < len(words); start += step {
		end := start + c.chunkSize
		last := false
		if end >= len(words) {
			end = len(words)
			last = true

			// Words past the previous window's end; everything before
			// that is already covered by the overlap.
			newWords := end - start - c.chunkOverlap
			if len(chunks) > 0 && newWords < c.minChunkSize {
				prev := &chunks[len(chunks)-1]
				prev.Text = strings.Join(words[prev.StartWord:end], " ")
				prev.EndChar = chunkEnd(offsets, words, end)
				prev.WordCount = end - prev.StartWord
				break
			}
		}

		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      strings.Join(words[start:end], " "),
			StartWord: start,
			StartChar: offsets[start],
			EndChar:   chunkEnd(offsets, words, end),
			WordCount: end - start,
		})

		if last {
			break
		}
	}

	return chunks
}

// WordCount returns the whitespace token count of text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// wordOffsets returns the character offset of each word in the
// normalized (single-space joined) text.
func wordOffsets(words []string) []int {
	offsets := make([]int, len(words))
	pos := 0
	for i, w := range words {
		offsets[i] = pos
		pos += len(w) + 1
	}
	return offsets
}

func chunkEnd(offsets []int, words []string, end int) int {
	return offsets[end-1] + len(words[end-1])
}
