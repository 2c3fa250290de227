package files

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/sitewright/internal/classify"
	"github.com/conneroisu/sitewright/internal/sidebyside"
	"github.com/spf13/afero"
)

// EnumeratorOptions configures which files ViewFiles leaves out.
type EnumeratorOptions struct {
	ConfigFileName string
	PartialsDir    string
	WebsiteDir     string
	SideBySide     *sidebyside.Resolver
	Ignore         *IgnoreRules
}

// Enumerator lists the buildable files of a views directory.
type Enumerator struct {
	fs   afero.Fs
	opts EnumeratorOptions
}

// NewEnumerator creates an Enumerator
func NewEnumerator(fs afero.Fs, opts EnumeratorOptions) *Enumerator {
	if opts.SideBySide == nil {
		opts.SideBySide = sidebyside.New(fs)
	}
	if opts.PartialsDir != "" {
		opts.PartialsDir = filepath.Clean(opts.PartialsDir)
	}
	if opts.WebsiteDir != "" {
		opts.WebsiteDir = filepath.Clean(opts.WebsiteDir)
	}
	return &Enumerator{fs: fs, opts: opts}
}

// IsHiddenName reports whether a file or directory name is never built on
// its own: names starting with an underscore or a dot.
func IsHiddenName(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// ViewFiles walks dir and returns every file that should go through the
// pipeline, sorted. It skips hidden names, the directory configuration
// file, the partials and website directories, ignored paths and side-by-side
// data files that belong to a main file.
func (e *Enumerator) ViewFiles(ctx context.Context, dir string) ([]string, error) {
	root := filepath.Clean(dir)
	var result []string

	err := afero.Walk(e.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if info.IsDir() {
			if path == root {
				return nil
			}
			if e.skipDir(path, info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if e.Include(path) {
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(result)
	return result, nil
}

// Include reports whether a single file passes the enumeration filters.
func (e *Enumerator) Include(path string) bool {
	name := filepath.Base(path)
	if IsHiddenName(name) {
		return false
	}
	if e.opts.ConfigFileName != "" && strings.EqualFold(name, e.opts.ConfigFileName) {
		return false
	}
	if e.opts.Ignore.Matches(path) {
		return false
	}
	if e.opts.WebsiteDir != "" && classify.HasPathPrefix(path, e.opts.WebsiteDir) {
		return false
	}
	if e.opts.SideBySide.IsSideBySideFile(path) && e.opts.SideBySide.GetMainFile(path) != "" {
		return false
	}
	return true
}

func (e *Enumerator) skipDir(path, name string) bool {
	if IsHiddenName(name) {
		return true
	}
	if e.opts.PartialsDir != "" && strings.EqualFold(path, e.opts.PartialsDir) {
		return true
	}
	if e.opts.WebsiteDir != "" && strings.EqualFold(path, e.opts.WebsiteDir) {
		return true
	}
	return e.opts.Ignore.MatchesDir(path)
}
