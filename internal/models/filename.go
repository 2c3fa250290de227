package models

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitewright/internal/files"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Keys set by the FileName injector.
const (
	KeyTitle    = "title"
	KeyFileName = "filename"
	KeyRelPath  = "relpath"
)

// FileName derives defaults from the source path: a title made from the
// base name, the file name and the path relative to Root. Values already in
// Data are kept.
type FileName struct {
	Root string
}

// Inject implements Injector
func (fn FileName) Inject(_ context.Context, file *files.PipelineFile) error {
	setDefault(file, KeyTitle, TitleFromFileName(file.FileName))
	setDefault(file, KeyFileName, filepath.Base(file.FileName))

	rel := filepath.Base(file.FileName)
	if fn.Root != "" {
		if r, err := filepath.Rel(fn.Root, file.FileName); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	setDefault(file, KeyRelPath, filepath.ToSlash(rel))
	return nil
}

// TitleFromFileName turns "_about-our_team.md.html" into "About Our Team".
func TitleFromFileName(path string) string {
	name := filepath.Base(path)
	for ext := filepath.Ext(name); ext != "" && ext != name; ext = filepath.Ext(name) {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.TrimLeft(name, "_.")
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.English).String(name)
}

func setDefault(file *files.PipelineFile, key string, value any) {
	if _, ok := file.Data[key]; ok {
		return
	}
	file.Merge(map[string]any{key: value})
}
