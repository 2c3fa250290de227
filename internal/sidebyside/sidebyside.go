// Package sidebyside finds companion data files that sit next to a source
// file and share its base name, such as about.json next to about.md.
package sidebyside

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultExtensions are the side-by-side data file extensions used when none
// are configured.
var DefaultExtensions = []string{"json", "yaml"}

// Resolver looks up side-by-side files on a filesystem.
type Resolver struct {
	fs         afero.Fs
	extensions []string
}

// New creates a Resolver. With no extensions DefaultExtensions apply.
func New(fs afero.Fs, extensions ...string) *Resolver {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		normalized = append(normalized, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return &Resolver{fs: fs, extensions: normalized}
}

// Extensions returns the configured side-by-side extensions
func (r *Resolver) Extensions() []string {
	return append([]string(nil), r.extensions...)
}

// GetSideBySideFiles returns the existing files <base>.<ext> and
// _<base>.<ext> next to file, in that order.
func (r *Resolver) GetSideBySideFiles(file, ext string) []string {
	dir := filepath.Dir(file)
	base := trimExt(filepath.Base(file))
	ext = strings.TrimPrefix(ext, ".")

	var found []string
	for _, name := range []string{base + "." + ext, "_" + base + "." + ext} {
		candidate := filepath.Join(dir, name)
		if info, err := r.fs.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
	}
	return found
}

// IsSideBySideFile reports whether path has one of exts, or one of the
// configured extensions when exts is empty. It does not touch the disk.
func (r *Resolver) IsSideBySideFile(path string, exts ...string) bool {
	if len(exts) == 0 {
		exts = r.extensions
	}
	return hasExtension(path, exts)
}

// GetMainFile returns the single sibling of the side-by-side file path that
// shares its base name and is not itself a side-by-side file. A leading
// underscore on path is dropped for a second attempt. It returns "" when
// there is no such sibling or more than one.
func (r *Resolver) GetMainFile(path string, exts ...string) string {
	if len(exts) == 0 {
		exts = r.extensions
	}

	dir := filepath.Dir(path)
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return ""
	}

	base := trimExt(filepath.Base(path))
	main, ambiguous := findMain(entries, base, exts)
	if main == "" && !ambiguous && strings.HasPrefix(base, "_") {
		main, _ = findMain(entries, strings.TrimPrefix(base, "_"), exts)
	}
	if main == "" {
		return ""
	}
	return filepath.Join(dir, main)
}

func findMain(entries []os.FileInfo, base string, exts []string) (string, bool) {
	var match string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(trimExt(name), base) || hasExtension(name, exts) {
			continue
		}
		if match != "" {
			return "", true
		}
		match = name
	}
	return match, false
}

func hasExtension(path string, exts []string) bool {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(ext, strings.TrimPrefix(e, ".")) {
			return true
		}
	}
	return false
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
