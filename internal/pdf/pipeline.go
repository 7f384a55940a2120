// Package pdf turns an uploaded PDF into clean plain text: download
// from object storage, parse through the extraction service, drop
// boilerplate segments, strip markdown.
package pdf

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/veriscan/veriscan/internal/clients/extractor"
	"github.com/veriscan/veriscan/internal/errdefs"
	"github.com/veriscan/veriscan/internal/storage"
	"github.com/veriscan/veriscan/internal/textutil"
)

// minSegmentChars drops fragments too short to carry prose. Captions
// and stray line numbers fall under this.
const minSegmentChars = 200

// skipClasses are segment classes that never contain the author's own
// prose.
var skipClasses = map[string]struct{}{
	"table-of-contents": {},
	"header":            {},
	"footer":            {},
	"list-of-figures":   {},
	"list-of-tables":    {},
	"bibliography":      {},
}

// Extraction is the text recovered from one PDF.
type Extraction struct {
	Title string
	Pages int
	Text  string
}

// Pipeline coordinates storage and extraction for PDFs.
type Pipeline struct {
	storage   *storage.Client
	extractor *extractor.Client
	log       *zap.Logger
}

// NewPipeline creates a PDF extraction pipeline.
func NewPipeline(st *storage.Client, ex *extractor.Client, log *zap.Logger) *Pipeline {
	return &Pipeline{storage: st, extractor: ex, log: log}
}

// FilterSegments keeps only segments with body prose: skip classes on
// the boilerplate list and fragments shorter than minSegmentChars.
func FilterSegments(segments []extractor.Segment) []extractor.Segment {
	kept := make([]extractor.Segment, 0, len(segments))
	for _, seg := range segments {
		if _, skip := skipClasses[strings.ToLower(seg.Class)]; skip {
			continue
		}
		content := seg.Markdown
		if content == "" {
			content = seg.Text
		}
		if len(strings.TrimSpace(content)) < minSegmentChars {
			continue
		}
		kept = append(kept, seg)
	}
	return kept
}

// ExtractText downloads the object, parses it, and returns the plain
// text of the kept segments.
func (p *Pipeline) ExtractText(ctx context.Context, bucket, key string) (*Extraction, error) {
	data, err := p.storage.DownloadObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	p.log.Debug("downloaded pdf",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)))

	result, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	kept := FilterSegments(result.Segments)
	if len(kept) == 0 {
		return nil, errdefs.Newf(errdefs.KindInvalidArgument, "pdf.extract",
			"no prose segments in %s/%s", bucket, key)
	}

	var sb strings.Builder
	for _, seg := range kept {
		content := seg.Markdown
		if content != "" {
			content = textutil.StripMarkdown(content)
		} else {
			content = seg.Text
		}
		content = textutil.SanitizeUTF8(strings.TrimSpace(content))
		if content == "" {
			continue
		}
		sb.WriteString(content)
		sb.WriteByte('\n')
	}

	return &Extraction{
		Title: result.Title,
		Pages: result.Pages,
		Text:  sb.String(),
	}, nil
}
