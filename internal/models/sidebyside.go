package models

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/sidebyside"
	"github.com/spf13/afero"
)

// decoderForExtension picks the decoder for a data file extension
func decoderForExtension(ext string) (DecodeFunc, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return DecodeJSON, true
	case "yaml", "yml":
		return DecodeYAML, true
	case "toml":
		return DecodeTOML, true
	default:
		return nil, false
	}
}

// SideBySide merges the data files next to the source file, for example
// about.json and _about.json for about.md. Later files override earlier
// ones.
type SideBySide struct {
	fs       afero.Fs
	resolver *sidebyside.Resolver
}

// NewSideBySide creates a SideBySide injector
func NewSideBySide(fs afero.Fs, resolver *sidebyside.Resolver) *SideBySide {
	return &SideBySide{fs: fs, resolver: resolver}
}

// Inject implements Injector
func (s *SideBySide) Inject(_ context.Context, file *files.PipelineFile) error {
	// a data file is never its own side-by-side file
	if s.resolver.IsSideBySideFile(file.FileName) {
		return nil
	}

	for _, ext := range s.resolver.Extensions() {
		decode, ok := decoderForExtension(ext)
		if !ok {
			continue
		}
		for _, path := range s.resolver.GetSideBySideFiles(file.FileName, ext) {
			data, err := afero.ReadFile(s.fs, path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
			}
			values, err := decode(data)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
			}
			file.Merge(values)
		}
	}
	return nil
}
