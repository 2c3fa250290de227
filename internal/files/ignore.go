package files

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// IgnoreRules matches project paths against gitignore-style patterns taken
// from the settings and the project's ignore file.
type IgnoreRules struct {
	root  string
	rules *ignore.GitIgnore
}

// LoadIgnoreRules compiles patterns plus the lines of ignoreFile, read
// relative to root when it exists.
func LoadIgnoreRules(fs afero.Fs, root, ignoreFile string, patterns []string) *IgnoreRules {
	lines := append([]string(nil), patterns...)

	if ignoreFile != "" {
		path := ignoreFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if data, err := afero.ReadFile(fs, path); err == nil {
			scanner := bufio.NewScanner(bytes.NewReader(data))
			for scanner.Scan() {
				lines = append(lines, scanner.Text())
			}
		}
	}

	r := &IgnoreRules{root: filepath.Clean(root)}
	if len(lines) > 0 {
		r.rules = ignore.CompileIgnoreLines(lines...)
	}
	return r
}

// Matches reports whether path is ignored. Paths outside the root are never
// ignored.
func (r *IgnoreRules) Matches(path string) bool {
	rel, ok := r.relative(path)
	if !ok {
		return false
	}
	return r.rules.MatchesPath(rel)
}

// MatchesDir reports whether the directory dir is ignored, including
// patterns such as "node_modules/" that only match directories.
func (r *IgnoreRules) MatchesDir(dir string) bool {
	rel, ok := r.relative(dir)
	if !ok {
		return false
	}
	return r.rules.MatchesPath(rel) || r.rules.MatchesPath(rel+"/")
}

func (r *IgnoreRules) relative(path string) (string, bool) {
	if r == nil || r.rules == nil {
		return "", false
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
