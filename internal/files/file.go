// Package files holds the file entities that flow through the view pipeline
// and the collaborators that load and enumerate them.
package files

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/conneroisu/sitewright/internal/dirconfig"
)

// Data keys read by the PipelineFile accessors.
const (
	KeyLayout  = "layout"
	KeyModel   = "model"
	KeyExtOut  = "extout"
	KeyPublish = "publish"
)

// TextFile is a file read fully into memory. Contents is set once by the
// loader.
type TextFile struct {
	FileName string
	Contents string
	FileInfo os.FileInfo
}

// PipelineFile is one source file on its way through the view pipeline.
// FileName and FileInfo describe the source and never change; processors
// rewrite Contents and WorkingFileName.
type PipelineFile struct {
	TextFile

	WorkingFileName string
	Data            map[string]any
	// UserData is never read or written by sitewright itself.
	UserData any

	DefaultConfiguration *dirconfig.DirectoryConfiguration
}

// NewPipelineFile creates a pipeline file whose working name starts as the
// source name.
func NewPipelineFile(text TextFile, cfg *dirconfig.DirectoryConfiguration) *PipelineFile {
	return &PipelineFile{
		TextFile:             text,
		WorkingFileName:      text.FileName,
		Data:                 make(map[string]any),
		DefaultConfiguration: cfg,
	}
}

// ExtensionConfiguration returns the mapping for the source file's
// extension, or the zero value when the extension is unmapped.
func (f *PipelineFile) ExtensionConfiguration() dirconfig.ExtensionConfiguration {
	cfg, _ := f.DefaultConfiguration.Lookup(filepath.Ext(f.FileName))
	return cfg
}

// Layout returns the layout partial name. A layout set in Data, even to an
// empty value, takes precedence over the configured default.
func (f *PipelineFile) Layout() string {
	if v, ok := f.Data[KeyLayout]; ok {
		return stringValue(v)
	}
	return f.ExtensionConfiguration().DefaultLayout
}

// ModelName returns the named model to load, if any.
func (f *PipelineFile) ModelName() string {
	if v, ok := f.Data[KeyModel]; ok {
		if s, isString := v.(string); isString {
			return s
		}
	}
	return f.ExtensionConfiguration().DefaultModelName
}

// ExtOut returns the output extension without a leading dot, or "" when
// neither Data nor configuration names one.
func (f *PipelineFile) ExtOut() string {
	if v, ok := f.Data[KeyExtOut]; ok {
		if ext := dirconfig.NormalizeExtension(stringValue(v)); ext != "" {
			return ext
		}
	}
	return dirconfig.NormalizeExtension(f.ExtensionConfiguration().DefaultExtOut)
}

// Publish reports whether the file should be written. It defaults to true.
func (f *PipelineFile) Publish() bool {
	if v, ok := f.Data[KeyPublish]; ok {
		switch p := v.(type) {
		case bool:
			return p
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(p)); err == nil {
				return b
			}
		}
	}
	if p := f.ExtensionConfiguration().DefaultPublish; p != nil {
		return *p
	}
	return true
}

// Extension returns the lowercase extension of WorkingFileName without the
// dot.
func (f *PipelineFile) Extension() string {
	return dirconfig.NormalizeExtension(filepath.Ext(f.WorkingFileName))
}

// PenultimateExtension returns the extension before the current one, e.g.
// "md" for Foo.md.html.
func (f *PipelineFile) PenultimateExtension() string {
	stripped := strings.TrimSuffix(f.WorkingFileName, filepath.Ext(f.WorkingFileName))
	return dirconfig.NormalizeExtension(filepath.Ext(stripped))
}

// SetExtension replaces the extension of WorkingFileName.
func (f *PipelineFile) SetExtension(ext string) {
	ext = dirconfig.NormalizeExtension(ext)
	base := strings.TrimSuffix(f.WorkingFileName, filepath.Ext(f.WorkingFileName))
	if ext == "" {
		f.WorkingFileName = base
		return
	}
	f.WorkingFileName = base + "." + ext
}

// StripExtension removes the current extension of WorkingFileName.
func (f *PipelineFile) StripExtension() {
	f.SetExtension("")
}

// Merge copies values into Data, overwriting existing keys.
func (f *PipelineFile) Merge(values map[string]any) {
	if f.Data == nil {
		f.Data = make(map[string]any, len(values))
	}
	for k, v := range values {
		f.Data[k] = v
	}
}

// IsText reports whether data looks like text: valid UTF-8 with no NUL
// bytes.
func IsText(data []byte) bool {
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(data)
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if !s {
			return ""
		}
		return "true"
	default:
		return ""
	}
}
