package files

import (
	"context"
	"fmt"

	"github.com/conneroisu/sitewright/internal/dirconfig"
	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/spf13/afero"
)

// ConfigurationSource resolves the directory configuration of a path.
type ConfigurationSource interface {
	GetConfiguration(path string) (*dirconfig.DirectoryConfiguration, error)
}

// Loader reads source files into PipelineFiles.
type Loader struct {
	fs      afero.Fs
	configs ConfigurationSource
}

// NewLoader creates a Loader
func NewLoader(fs afero.Fs, configs ConfigurationSource) *Loader {
	return &Loader{fs: fs, configs: configs}
}

// Load reads path and attaches the configuration of its directory.
func (l *Loader) Load(ctx context.Context, path string) (*PipelineFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := ReadText(l.fs, path)
	if err != nil {
		return nil, err
	}

	cfg, err := l.configs.GetConfiguration(path)
	if err != nil {
		return nil, err
	}

	return NewPipelineFile(*text, cfg), nil
}

// ReadText reads path as a TextFile. It does not check that the content is
// text; see IsText.
func ReadText(fs afero.Fs, path string) (*TextFile, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, siteerrors.NewIOError(siteerrors.ErrCodeFileNotFound, "stat failed", err).WithFile(path)
	}
	if info.IsDir() {
		return nil, siteerrors.NewValidationError(siteerrors.ErrCodeInvalidPath,
			fmt.Sprintf("%s is a directory", path)).WithFile(path)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, siteerrors.NewIOError(siteerrors.ErrCodeLoad, "read failed", err).WithFile(path)
	}

	return &TextFile{FileName: path, Contents: string(data), FileInfo: info}, nil
}
