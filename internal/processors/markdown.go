package processors

import (
	"bytes"
	"context"

	"github.com/conneroisu/sitewright/internal/files"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

const MarkdownName = "markdown"

// Markdown renders Markdown to HTML with GitHub flavoured extensions and
// switches the file to its output extension.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown is the markdown Factory
func NewMarkdown(Environment) (Processor, error) {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			// raw HTML in views is intentional
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}, nil
}

// Process implements Processor
func (m *Markdown) Process(_ context.Context, file *files.PipelineFile) error {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(file.Contents), &buf); err != nil {
		return err
	}
	file.Contents = buf.String()
	file.SetExtension(outputExtension(file))
	return nil
}

// outputExtension is the configured output extension, html by default.
func outputExtension(file *files.PipelineFile) string {
	if ext := file.ExtOut(); ext != "" {
		return ext
	}
	return "html"
}
