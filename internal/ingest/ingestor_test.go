package ingest_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriscan/veriscan/internal/chunking"
	"github.com/veriscan/veriscan/internal/config"
	"github.com/veriscan/veriscan/internal/errdefs"
	"github.com/veriscan/veriscan/internal/ingest"
	"github.com/veriscan/veriscan/internal/pdf"
	"github.com/veriscan/veriscan/internal/store"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

type memStore struct {
	docs   map[string]store.Document
	chunks map[string][]store.DocumentChunk
	err    error
}

func newMemStore() *memStore {
	return &memStore{
		docs:   make(map[string]store.Document),
		chunks: make(map[string][]store.DocumentChunk),
	}
}

func (m *memStore) IndexDocument(_ context.Context, doc store.Document, chunks []store.DocumentChunk) error {
	if m.err != nil {
		return m.err
	}
	doc.ChunkCount = len(chunks)
	m.docs[doc.ID] = doc
	m.chunks[doc.ID] = chunks
	return nil
}

func (m *memStore) GetDocument(_ context.Context, id string) (*store.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, errdefs.Newf(errdefs.KindNotFound, "store.get", "document %s not found", id)
	}
	return &doc, nil
}

func (m *memStore) GetDocumentChunks(_ context.Context, id string) ([]store.DocumentChunk, error) {
	return m.chunks[id], nil
}

func (m *memStore) DeleteDocument(_ context.Context, id string) (bool, error) {
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return true, nil
}

func (m *memStore) SearchDocuments(_ context.Context, filter store.SearchFilter) ([]store.Document, int, error) {
	var out []store.Document
	for _, doc := range m.docs {
		if filter.Query != "" && !strings.Contains(strings.ToLower(doc.Title), strings.ToLower(filter.Query)) {
			continue
		}
		if filter.Language != "" && doc.Language != filter.Language {
			continue
		}
		out = append(out, doc)
	}
	return out, len(out), nil
}

func (m *memStore) DocumentCount(context.Context) (int, error) {
	return len(m.docs), nil
}

func newIngestor(t *testing.T, st *memStore, emb *fakeEmbedder) *ingest.Ingestor {
	t.Helper()
	cfg := config.DetectionConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
		MinChunkSize: 30,
		EmbedTimeout: time.Minute,
	}
	chunker, err := chunking.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	if err != nil {
		t.Fatal(err)
	}
	return ingest.New(cfg, st, emb, chunker, nil, nil, zap.NewNop())
}

func englishText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString("the study of language and the analysis of written text is rewarding ")
	}
	return strings.TrimSpace(sb.String())
}

func TestUploadGeneratesID(t *testing.T) {
	st := newMemStore()
	ing := newIngestor(t, st, &fakeEmbedder{})

	result, err := ing.Upload(context.Background(), ingest.UploadRequest{
		Title:   "Essay",
		Content: englishText(10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(result.DocumentID); err != nil {
		t.Errorf("DocumentID %q is not a uuid", result.DocumentID)
	}
	if result.ChunkCount < 1 {
		t.Errorf("ChunkCount = %d, want >= 1", result.ChunkCount)
	}
	if result.Language != "en" {
		t.Errorf("Language = %q, want en (auto-detected)", result.Language)
	}
}

func TestUploadChunkIDs(t *testing.T) {
	st := newMemStore()
	ing := newIngestor(t, st, &fakeEmbedder{})

	id := uuid.NewString()
	result, err := ing.Upload(context.Background(), ingest.UploadRequest{
		ID:      id,
		Title:   "Long Essay",
		Content: englishText(30),
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.DocumentID != id {
		t.Errorf("DocumentID = %q, want %q", result.DocumentID, id)
	}

	chunks := st.chunks[id]
	if len(chunks) != result.ChunkCount {
		t.Fatalf("stored %d chunks, result says %d", len(chunks), result.ChunkCount)
	}
	for i, chunk := range chunks {
		want := fmt.Sprintf("%s#%d", id, i)
		if chunk.ID != want {
			t.Errorf("chunk %d id = %q, want %q", i, chunk.ID, want)
		}
		if chunk.Position != i {
			t.Errorf("chunk %d position = %d", i, chunk.Position)
		}
		if len(chunk.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestUploadValidation(t *testing.T) {
	ing := newIngestor(t, newMemStore(), &fakeEmbedder{})

	tests := []struct {
		name string
		req  ingest.UploadRequest
	}{
		{name: "missing title", req: ingest.UploadRequest{Content: "some content here"}},
		{name: "missing content", req: ingest.UploadRequest{Title: "T"}},
		{name: "malformed id", req: ingest.UploadRequest{ID: "nope", Title: "T", Content: "words"}},
		{name: "bad language", req: ingest.UploadRequest{Title: "T", Content: "words", Language: "english"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ing.Upload(context.Background(), tt.req)
			if !errdefs.IsKind(err, errdefs.KindInvalidArgument) {
				t.Errorf("error = %v, want InvalidArgument", err)
			}
		})
	}
}

func TestUploadEmbedFailureStoresNothing(t *testing.T) {
	st := newMemStore()
	emb := &fakeEmbedder{err: errdefs.Newf(errdefs.KindUnavailable, "embedding", "down")}
	ing := newIngestor(t, st, emb)

	_, err := ing.Upload(context.Background(), ingest.UploadRequest{
		Title:   "Essay",
		Content: englishText(10),
	})
	if !errdefs.IsKind(err, errdefs.KindUnavailable) {
		t.Fatalf("error = %v, want Unavailable", err)
	}
	if len(st.docs) != 0 {
		t.Errorf("store has %d documents after failed upload", len(st.docs))
	}
}

func TestBatchUploadRecordsFailures(t *testing.T) {
	st := newMemStore()
	ing := newIngestor(t, st, &fakeEmbedder{})

	result, err := ing.BatchUpload(context.Background(), []ingest.UploadRequest{
		{Title: "Good", Content: englishText(10)},
		{Title: "", Content: "missing title"},
		{Title: "Also Good", Content: englishText(12)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 2/1", result.Succeeded, result.Failed)
	}
	if len(result.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(result.Items))
	}
	if result.Items[1].Error == "" {
		t.Error("failed item carries no error message")
	}
	if len(st.docs) != 2 {
		t.Errorf("store has %d documents, want 2", len(st.docs))
	}
}

func TestGetDelete(t *testing.T) {
	st := newMemStore()
	ing := newIngestor(t, st, &fakeEmbedder{})

	content := englishText(10)
	uploaded, err := ing.Upload(context.Background(), ingest.UploadRequest{
		Title:   "Essay",
		Content: content,
	})
	if err != nil {
		t.Fatal(err)
	}

	doc, err := ing.Get(context.Background(), uploaded.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Essay" {
		t.Errorf("Title = %q, want Essay", doc.Title)
	}
	if doc.Content != content {
		t.Error("stored content does not round-trip")
	}

	chunks, err := ing.Chunks(context.Background(), uploaded.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != uploaded.ChunkCount {
		t.Errorf("Chunks returned %d, want %d", len(chunks), uploaded.ChunkCount)
	}

	found, err := ing.Delete(context.Background(), uploaded.DocumentID)
	if err != nil || !found {
		t.Fatalf("Delete = %v, %v; want true, nil", found, err)
	}

	// Deleting again is not an error, just not found.
	found, err = ing.Delete(context.Background(), uploaded.DocumentID)
	if err != nil || found {
		t.Fatalf("second Delete = %v, %v; want false, nil", found, err)
	}

	if _, err := ing.Get(context.Background(), uploaded.DocumentID); !errdefs.IsKind(err, errdefs.KindNotFound) {
		t.Errorf("Get after delete = %v, want NotFound", err)
	}
}

func TestGetMalformedID(t *testing.T) {
	ing := newIngestor(t, newMemStore(), &fakeEmbedder{})

	if _, err := ing.Get(context.Background(), "not-a-uuid"); !errdefs.IsKind(err, errdefs.KindInvalidArgument) {
		t.Errorf("Get = %v, want InvalidArgument", err)
	}
	if _, err := ing.Delete(context.Background(), "not-a-uuid"); !errdefs.IsKind(err, errdefs.KindInvalidArgument) {
		t.Errorf("Delete = %v, want InvalidArgument", err)
	}
}

type fakeExtractor struct {
	extraction *pdf.Extraction
	err        error
}

func (f *fakeExtractor) ExtractText(context.Context, string, string) (*pdf.Extraction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, f.err
}

func TestIngestPDFReportsIndexedChunks(t *testing.T) {
	st := newMemStore()
	ex := &fakeExtractor{extraction: &pdf.Extraction{
		Title: "Recovered Thesis",
		Pages: 4,
		Text:  englishText(30),
	}}
	cfg := config.DetectionConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
		MinChunkSize: 30,
		EmbedTimeout: time.Minute,
	}
	chunker, err := chunking.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	if err != nil {
		t.Fatal(err)
	}
	ing := ingest.New(cfg, st, &fakeEmbedder{}, chunker, ex, nil, zap.NewNop())

	result, err := ing.IngestPDF(context.Background(), "uploads", "thesis.pdf", ingest.UploadRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Title != "Recovered Thesis" {
		t.Errorf("Title = %q, want the extracted title", result.Title)
	}
	if result.Pages != 4 {
		t.Errorf("Pages = %d, want 4", result.Pages)
	}

	// The per-chunk report must describe exactly the chunks that were
	// stored, not a fresh chunking of the extraction.
	stored := st.chunks[result.DocumentID]
	if len(stored) == 0 {
		t.Fatal("no chunks stored")
	}
	if len(result.Chunks) != len(stored) {
		t.Fatalf("report has %d chunks, store has %d", len(result.Chunks), len(stored))
	}
	if result.ChunkCount != len(stored) {
		t.Errorf("ChunkCount = %d, want %d", result.ChunkCount, len(stored))
	}
	for i, row := range result.Chunks {
		if row.Position != stored[i].Position {
			t.Errorf("report chunk %d position = %d, stored %d", i, row.Position, stored[i].Position)
		}
		if row.WordCount != stored[i].WordCount {
			t.Errorf("report chunk %d word count = %d, stored %d", i, row.WordCount, stored[i].WordCount)
		}
	}
}

func TestIngestPDFWithoutPipeline(t *testing.T) {
	ing := newIngestor(t, newMemStore(), &fakeEmbedder{})

	_, err := ing.IngestPDF(context.Background(), "uploads", "thesis.pdf", ingest.UploadRequest{})
	if !errdefs.IsKind(err, errdefs.KindUnavailable) {
		t.Errorf("error = %v, want Unavailable", err)
	}
}
