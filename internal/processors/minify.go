package processors

import (
	"context"
	"strings"

	"github.com/conneroisu/sitewright/internal/files"
)

const MinifyWhitespaceName = "minify-whitespace"

// MinifyWhitespace drops blank lines and trailing whitespace.
type MinifyWhitespace struct{}

// NewMinifyWhitespace is the minify-whitespace Factory
func NewMinifyWhitespace(Environment) (Processor, error) {
	return MinifyWhitespace{}, nil
}

// Process implements Processor
func (MinifyWhitespace) Process(_ context.Context, file *files.PipelineFile) error {
	lines := strings.Split(strings.ReplaceAll(file.Contents, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	file.Contents = strings.Join(kept, "\n")
	if file.Contents != "" {
		file.Contents += "\n"
	}
	return nil
}
