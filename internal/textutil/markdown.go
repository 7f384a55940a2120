// Package textutil holds text cleanup helpers shared by the ingest and
// PDF pipelines.
package textutil

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New()

// StripMarkdown converts markdown source to plain text by walking the
// parsed AST and collecting text segments. Block boundaries become
// newlines so downstream whitespace normalization can collapse them.
func StripMarkdown(src string) string {
	source := []byte(src)
	root := markdownParser.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.AutoLink:
			sb.Write(t.URL(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(sb.String())
}
