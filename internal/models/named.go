package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/spf13/afero"
)

// KeyModelData holds the loaded named model.
const KeyModelData = "modeldata"

// NamedModel loads <Dir>/<name>.json, .yaml, .yml or .toml for the model
// name of a file and stores it under KeyModelData.
type NamedModel struct {
	fs  afero.Fs
	dir string
}

// NewNamedModel creates a NamedModel injector reading from dir
func NewNamedModel(fs afero.Fs, dir string) *NamedModel {
	return &NamedModel{fs: fs, dir: dir}
}

// Inject implements Injector
func (n *NamedModel) Inject(_ context.Context, file *files.PipelineFile) error {
	name := file.ModelName()
	if name == "" {
		return nil
	}
	if filepath.IsAbs(name) || filepath.Clean(name) != name || strings.HasPrefix(name, "..") {
		return siteerrors.NewValidationError(siteerrors.ErrCodeInvalidPath,
			fmt.Sprintf("model name %q must be a plain name", name))
	}

	for _, ext := range []string{".json", ".yaml", ".yml", ".toml"} {
		path := filepath.Join(n.dir, name+ext)
		data, err := afero.ReadFile(n.fs, path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading model %s: %w", path, err)
		}

		decode, _ := decoderForExtension(ext)
		values, err := decode(data)
		if err != nil {
			return fmt.Errorf("parsing model %s: %w", path, err)
		}
		file.Merge(map[string]any{KeyModelData: values})
		return nil
	}

	return siteerrors.NewPipelineError(siteerrors.ErrCodeFileNotFound,
		fmt.Sprintf("model %q not found in %s", name, n.dir), nil)
}
