// Package ingest manages the reference corpus: uploads, lookups,
// deletes, catalog search, and PDF ingestion.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriscan/veriscan/internal/chunking"
	"github.com/veriscan/veriscan/internal/clients/embedding"
	"github.com/veriscan/veriscan/internal/config"
	"github.com/veriscan/veriscan/internal/errdefs"
	"github.com/veriscan/veriscan/internal/metrics"
	"github.com/veriscan/veriscan/internal/pdf"
	"github.com/veriscan/veriscan/internal/store"
	"github.com/veriscan/veriscan/internal/textutil"
)

// maxContentBytes bounds a single upload's content.
const maxContentBytes = 10 << 20

// maxTitleRunes bounds a document title.
const maxTitleRunes = 512

// TextExtractor recovers plain text from a stored PDF.
type TextExtractor interface {
	ExtractText(ctx context.Context, bucket, key string) (*pdf.Extraction, error)
}

// DocumentStore is the persistence surface the ingestor needs.
type DocumentStore interface {
	IndexDocument(ctx context.Context, doc store.Document, chunks []store.DocumentChunk) error
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	GetDocumentChunks(ctx context.Context, id string) ([]store.DocumentChunk, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	SearchDocuments(ctx context.Context, filter store.SearchFilter) ([]store.Document, int, error)
	DocumentCount(ctx context.Context) (int, error)
}

// UploadRequest describes one document to add to the corpus.
type UploadRequest struct {
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Language string            `json:"language,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UploadResult reports a successful upload.
type UploadResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	Language   string `json:"language"`
}

// BatchItem is the outcome of one document in a batch.
type BatchItem struct {
	Title      string `json:"title"`
	DocumentID string `json:"document_id,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchResult summarizes a batch upload.
type BatchResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

// ChunkInfo is one row of a PDF ingest's per-chunk report.
type ChunkInfo struct {
	Position  int `json:"position"`
	WordCount int `json:"word_count"`
}

// PDFResult is an UploadResult plus what extraction recovered.
type PDFResult struct {
	UploadResult
	Title  string        `json:"title"`
	Pages  int           `json:"pages"`
	Chunks []ChunkInfo   `json:"chunks"`
	Timing time.Duration `json:"extract_duration"`
}

// Ingestor writes documents into the corpus.
type Ingestor struct {
	cfg      config.DetectionConfig
	store    DocumentStore
	embedder embedding.Embedder
	chunker  *chunking.Chunker
	pdfs     TextExtractor
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New creates an ingestor. The PDF extractor and metrics are optional.
func New(cfg config.DetectionConfig, st DocumentStore, emb embedding.Embedder,
	chunker *chunking.Chunker, pdfs TextExtractor, m *metrics.Metrics, log *zap.Logger) *Ingestor {
	return &Ingestor{
		cfg:      cfg,
		store:    st,
		embedder: emb,
		chunker:  chunker,
		pdfs:     pdfs,
		metrics:  m,
		log:      log,
	}
}

func (ing *Ingestor) validate(req UploadRequest) (UploadRequest, error) {
	op := "ingest.upload"
	if req.Title == "" {
		return req, errdefs.Newf(errdefs.KindInvalidArgument, op, "title is required")
	}
	if len([]rune(req.Title)) > maxTitleRunes {
		return req, errdefs.Newf(errdefs.KindInvalidArgument, op, "title exceeds %d characters", maxTitleRunes)
	}
	if req.Content == "" {
		return req, errdefs.Newf(errdefs.KindInvalidArgument, op, "content is required")
	}
	if len(req.Content) > maxContentBytes {
		return req, errdefs.Newf(errdefs.KindInvalidArgument, op, "content exceeds %d bytes", maxContentBytes)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	} else if _, err := uuid.Parse(req.ID); err != nil {
		return req, errdefs.Newf(errdefs.KindInvalidArgument, op, "malformed document id %q", req.ID)
	}

	switch {
	case req.Language == "" || req.Language == "auto":
		req.Language = chunking.DetectLanguage(req.Content)
	case !chunking.ValidLanguage(req.Language):
		return req, errdefs.Newf(errdefs.KindInvalidArgument, op, "bad language code %q", req.Language)
	}
	return req, nil
}

// Upload chunks, embeds, and indexes one document. The document and
// its chunks land atomically; on any failure nothing is stored.
func (ing *Ingestor) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	result, _, err := ing.upload(ctx, req)
	return result, err
}

// upload is the shared ingest path. It also returns the chunks it
// indexed so PDF ingest can report them without re-chunking.
func (ing *Ingestor) upload(ctx context.Context, req UploadRequest) (*UploadResult, []store.DocumentChunk, error) {
	req, err := ing.validate(req)
	if err != nil {
		return nil, nil, err
	}

	content := textutil.SanitizeUTF8(req.Content)
	chunks := ing.chunker.Chunk(content)
	if len(chunks) == 0 {
		return nil, nil, errdefs.Newf(errdefs.KindInvalidArgument, "ingest.upload",
			"content has no indexable text")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embedCtx, cancel := context.WithTimeout(ctx, ing.cfg.EmbedTimeout)
	vectors, err := ing.embedder.EmbedBatch(embedCtx, texts)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	docChunks := make([]store.DocumentChunk, len(chunks))
	for i, chunk := range chunks {
		docChunks[i] = store.DocumentChunk{
			ID:         fmt.Sprintf("%s#%d", req.ID, chunk.Index),
			DocumentID: req.ID,
			Position:   chunk.Index,
			Text:       chunk.Text,
			WordCount:  chunk.WordCount,
			Embedding:  vectors[i],
		}
	}

	doc := store.Document{
		ID:       req.ID,
		Title:    req.Title,
		Content:  content,
		Language: req.Language,
		Metadata: req.Metadata,
	}
	if err := ing.store.IndexDocument(ctx, doc, docChunks); err != nil {
		return nil, nil, err
	}

	ing.metrics.DocumentIndexed()
	ing.refreshCorpusGauge(ctx)
	ing.log.Info("document indexed",
		zap.String("document_id", req.ID),
		zap.String("title", req.Title),
		zap.String("language", req.Language),
		zap.Int("chunks", len(docChunks)))

	return &UploadResult{
		DocumentID: req.ID,
		ChunkCount: len(docChunks),
		Language:   req.Language,
	}, docChunks, nil
}

// BatchUpload processes documents sequentially. A failed document is
// recorded in the result and does not abort the batch; only context
// cancellation stops it early.
func (ing *Ingestor) BatchUpload(ctx context.Context, reqs []UploadRequest) (*BatchResult, error) {
	result := &BatchResult{Items: make([]BatchItem, 0, len(reqs))}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, errdefs.New(errdefs.KindDeadlineExceeded, "ingest.batch", err)
		}

		item := BatchItem{Title: req.Title}
		uploaded, err := ing.Upload(ctx, req)
		if err != nil {
			item.Error = err.Error()
			result.Failed++
			ing.log.Warn("batch item failed",
				zap.String("title", req.Title), zap.Error(err))
		} else {
			item.DocumentID = uploaded.DocumentID
			item.ChunkCount = uploaded.ChunkCount
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// Get fetches one document by id.
func (ing *Ingestor) Get(ctx context.Context, id string) (*store.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errdefs.Newf(errdefs.KindInvalidArgument, "ingest.get",
			"malformed document id %q", id)
	}
	return ing.store.GetDocument(ctx, id)
}

// Chunks lists a document's stored chunks in position order.
func (ing *Ingestor) Chunks(ctx context.Context, id string) ([]store.DocumentChunk, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errdefs.Newf(errdefs.KindInvalidArgument, "ingest.chunks",
			"malformed document id %q", id)
	}
	return ing.store.GetDocumentChunks(ctx, id)
}

// Delete removes a document and reports whether it existed. Deleting
// an unknown id is not an error.
func (ing *Ingestor) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, errdefs.Newf(errdefs.KindInvalidArgument, "ingest.delete",
			"malformed document id %q", id)
	}
	found, err := ing.store.DeleteDocument(ctx, id)
	if err != nil {
		return false, err
	}
	if found {
		ing.metrics.DocumentDeleted()
		ing.refreshCorpusGauge(ctx)
		ing.log.Info("document deleted", zap.String("document_id", id))
	}
	return found, nil
}

// Search lists corpus documents matching the filter.
func (ing *Ingestor) Search(ctx context.Context, filter store.SearchFilter) ([]store.Document, int, error) {
	return ing.store.SearchDocuments(ctx, filter)
}

// IngestPDF extracts a stored PDF and runs it through the standard
// upload path, reporting the chunks it produced.
func (ing *Ingestor) IngestPDF(ctx context.Context, bucket, key string, req UploadRequest) (*PDFResult, error) {
	if ing.pdfs == nil {
		return nil, errdefs.Newf(errdefs.KindUnavailable, "ingest.pdf",
			"pdf support is not configured")
	}

	start := time.Now()
	extraction, err := ing.pdfs.ExtractText(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if req.Title == "" {
		req.Title = extraction.Title
	}
	if req.Title == "" {
		req.Title = key
	}
	req.Content = extraction.Text

	uploaded, docChunks, err := ing.upload(ctx, req)
	if err != nil {
		return nil, err
	}

	report := make([]ChunkInfo, len(docChunks))
	for i, chunk := range docChunks {
		report[i] = ChunkInfo{Position: chunk.Position, WordCount: chunk.WordCount}
	}

	return &PDFResult{
		UploadResult: *uploaded,
		Title:        extraction.Title,
		Pages:        extraction.Pages,
		Chunks:       report,
		Timing:       elapsed,
	}, nil
}

func (ing *Ingestor) refreshCorpusGauge(ctx context.Context) {
	n, err := ing.store.DocumentCount(ctx)
	if err != nil {
		return
	}
	ing.metrics.SetCorpusSize(n)
}
