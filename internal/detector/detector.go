package detector

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veriscan/veriscan/internal/chunking"
	"github.com/veriscan/veriscan/internal/clients/analyzer"
	"github.com/veriscan/veriscan/internal/clients/embedding"
	"github.com/veriscan/veriscan/internal/config"
	"github.com/veriscan/veriscan/internal/errdefs"
	"github.com/veriscan/veriscan/internal/metrics"
	"github.com/veriscan/veriscan/internal/pdf"
	"github.com/veriscan/veriscan/internal/store"
	"github.com/veriscan/veriscan/internal/textutil"
)

// maxTopK bounds how many matches a single request may ask for.
const maxTopK = 100

// analysisMatchLimit caps how many matches are handed to the analyzer.
const analysisMatchLimit = 5

// ChunkSearcher is the vector store surface the detector needs.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, opts store.SearchOptions) ([]store.ChunkMatch, error)
	DocumentCount(ctx context.Context) (int, error)
}

// Analyzer produces the optional prose analysis of a finished verdict.
type Analyzer interface {
	Analyze(ctx context.Context, percentage float64, severity string, matches []analyzer.MatchSummary) (*analyzer.Analysis, error)
}

// Deps are the detector's collaborators. Analyzer, PDF, and Metrics
// are optional.
type Deps struct {
	Chunker  *chunking.Chunker
	Embedder embedding.Embedder
	Searcher ChunkSearcher
	Analyzer Analyzer
	PDF      *pdf.Pipeline
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Detector runs plagiarism checks against the corpus.
type Detector struct {
	cfg      config.DetectionConfig
	chunker  *chunking.Chunker
	embedder embedding.Embedder
	searcher ChunkSearcher
	analyzer Analyzer
	pdfs     *pdf.Pipeline
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New creates a detector.
func New(cfg config.DetectionConfig, deps Deps) *Detector {
	return &Detector{
		cfg:      cfg,
		chunker:  deps.Chunker,
		embedder: deps.Embedder,
		searcher: deps.Searcher,
		analyzer: deps.Analyzer,
		pdfs:     deps.PDF,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}
}

func (d *Detector) applyDefaults(opts CheckOptions) CheckOptions {
	if opts.TopK == 0 {
		opts.TopK = d.cfg.TopKResults
	}
	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = d.cfg.Thresholds.Low
	}
	return opts
}

func validateOptions(opts CheckOptions) error {
	if opts.TopK < 0 || opts.TopK > maxTopK {
		return errdefs.Newf(errdefs.KindInvalidArgument, "detector.check",
			"top_k must be in [1,%d], got %d", maxTopK, opts.TopK)
	}
	if opts.MinSimilarity < 0 || opts.MinSimilarity > 1 {
		return errdefs.Newf(errdefs.KindInvalidArgument, "detector.check",
			"min_similarity must be in [0,1], got %g", opts.MinSimilarity)
	}
	for _, id := range opts.ExcludeDocIDs {
		if _, err := uuid.Parse(id); err != nil {
			return errdefs.Newf(errdefs.KindInvalidArgument, "detector.check",
				"malformed excluded document id %q", id)
		}
	}
	return nil
}

// Check runs the full pipeline on one text. Empty or whitespace-only
// input yields a SAFE verdict with zero percent, not an error.
func (d *Detector) Check(ctx context.Context, text string, opts CheckOptions) (*Verdict, error) {
	opts = d.applyDefaults(opts)
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()
	log := d.log.With(zap.String("request_id", requestID))

	chunks := d.chunker.Chunk(text)
	if len(chunks) == 0 {
		verdict := d.emptyVerdict(requestID, start)
		d.metrics.ObserveCheck(string(verdict.Severity), verdict.Metrics.TotalDuration, 0, 0)
		return verdict, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embedStart := time.Now()
	embedCtx, cancelEmbed := context.WithTimeout(ctx, d.cfg.EmbedTimeout)
	vectors, err := d.embedder.EmbedBatch(embedCtx, texts)
	cancelEmbed()
	embedDur := time.Since(embedStart)
	if err != nil {
		return nil, err
	}

	corpusSize, err := d.searcher.DocumentCount(ctx)
	if err != nil {
		log.Warn("corpus count failed", zap.Error(err))
		corpusSize = -1
	} else {
		d.metrics.SetCorpusSize(corpusSize)
	}

	// Index-addressed results keep chunk order stable no matter how
	// the parallel searches complete.
	results := make([][]store.ChunkMatch, len(chunks))
	var searchDur time.Duration
	if corpusSize != 0 {
		limit := d.cfg.MaxParallelSearches
		if limit <= 0 {
			limit = runtime.GOMAXPROCS(0)
		}
		searchStart := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i := range chunks {
			g.Go(func() error {
				sctx, cancel := context.WithTimeout(gctx, d.cfg.SearchTimeout)
				defer cancel()
				hits, err := d.searcher.SearchChunks(sctx, vectors[i], store.SearchOptions{
					TopK:               opts.TopK,
					MinScore:           opts.MinSimilarity,
					ExcludeDocumentIDs: opts.ExcludeDocIDs,
					MaxPerSource:       d.cfg.MaxResultsPerSource,
				})
				if err != nil {
					return err
				}
				results[i] = hits
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		searchDur = time.Since(searchStart)
	}

	analyses := make([]ChunkAnalysis, len(chunks))
	var all []CandidateMatch
	qualifying := 0
	for i, chunk := range chunks {
		candidates := scoreCandidates(chunk, results[i], opts.MinSimilarity, d.cfg.MaxResultsPerSource)
		analysis := ChunkAnalysis{
			ChunkIndex: chunk.Index,
			Text:       chunk.Text,
			Severity:   SeveritySafe,
		}
		if len(candidates) > 0 {
			analysis.MaxSimilarity = candidates[0].CombinedScore
			analysis.BestMatchID = candidates[0].DocumentID
			analysis.Severity = band(analysis.MaxSimilarity, d.cfg.Thresholds)
			all = append(all, candidates...)
		}
		if analysis.MaxSimilarity >= d.cfg.Thresholds.Low {
			qualifying++
		}
		analyses[i] = analysis
	}

	percentage := weightedPercentage(chunks, analyses, d.cfg.Thresholds.Low)
	severity := band(percentage/100, d.cfg.Thresholds)

	verdict := &Verdict{
		RequestID:   requestID,
		Percentage:  percentage,
		Severity:    severity,
		Explanation: explain(severity, qualifying, len(chunks)),
		Matches:     dedupeGlobal(all, opts.TopK),
		Chunks:      analyses,
		Metrics: ProcessingMetrics{
			ChunkCount:     len(chunks),
			EmbedDuration:  embedDur,
			SearchDuration: searchDur,
			TotalDuration:  time.Since(start),
		},
	}

	d.metrics.ObserveCheck(string(severity), verdict.Metrics.TotalDuration, embedDur, searchDur)
	log.Info("check complete",
		zap.Float64("percentage", percentage),
		zap.String("severity", string(severity)),
		zap.Int("chunks", len(chunks)),
		zap.Int("matches", len(verdict.Matches)),
		zap.Duration("elapsed", verdict.Metrics.TotalDuration))

	if d.analyzer != nil && opts.IncludeAIAnalysis {
		d.attachAnalysis(ctx, verdict, log)
	}
	return verdict, nil
}

// CheckPDF extracts an uploaded PDF from object storage and runs the
// standard check over its text.
func (d *Detector) CheckPDF(ctx context.Context, bucket, key string, opts CheckOptions) (*PDFVerdict, error) {
	if d.pdfs == nil {
		return nil, errdefs.Newf(errdefs.KindUnavailable, "detector.check_pdf",
			"pdf support is not configured")
	}

	extractStart := time.Now()
	extraction, err := d.pdfs.ExtractText(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	extractDur := time.Since(extractStart)

	verdict, err := d.Check(ctx, extraction.Text, opts)
	if err != nil {
		return nil, err
	}
	return &PDFVerdict{
		Verdict: *verdict,
		PDF: PDFMetrics{
			Title:           extraction.Title,
			Pages:           extraction.Pages,
			TextLength:      len(extraction.Text),
			ExtractDuration: extractDur,
		},
	}, nil
}

func (d *Detector) emptyVerdict(requestID string, start time.Time) *Verdict {
	return &Verdict{
		RequestID:   requestID,
		Percentage:  0,
		Severity:    SeveritySafe,
		Explanation: explain(SeveritySafe, 0, 0),
		Matches:     []CandidateMatch{},
		Chunks:      []ChunkAnalysis{},
		Metrics:     ProcessingMetrics{TotalDuration: time.Since(start)},
	}
}

// attachAnalysis asks the analyzer for prose and attaches it. The
// numbers in the verdict are final before this runs; a failed analysis
// is logged and dropped.
func (d *Detector) attachAnalysis(ctx context.Context, verdict *Verdict, log *zap.Logger) {
	limit := analysisMatchLimit
	if len(verdict.Matches) < limit {
		limit = len(verdict.Matches)
	}
	summaries := make([]analyzer.MatchSummary, 0, limit)
	for _, m := range verdict.Matches[:limit] {
		summaries = append(summaries, analyzer.MatchSummary{
			InputExcerpt:   textutil.Truncate(m.InputChunkText, 200),
			MatchedExcerpt: textutil.Truncate(m.MatchedChunkText, 200),
			SourceTitle:    m.DocumentTitle,
			Similarity:     m.CombinedScore,
		})
	}

	analysis, err := d.analyzer.Analyze(ctx, verdict.Percentage, string(verdict.Severity), summaries)
	if err != nil {
		log.Warn("analysis failed", zap.Error(err))
		return
	}
	verdict.Analysis = analysis
}
