// Package classify maps project paths to the kind of source file they hold.
package classify

import (
	"path/filepath"
	"strings"
)

// FileClass is the semantic kind of a project file
type FileClass int

const (
	Unknown FileClass = iota
	Content
	Script
	Image
	Partial
	View
)

// String returns the string representation of the FileClass
func (c FileClass) String() string {
	switch c {
	case Content:
		return "content"
	case Script:
		return "script"
	case Image:
		return "image"
	case Partial:
		return "partial"
	case View:
		return "view"
	default:
		return "unknown"
	}
}

// Directories are the configured source roots a Classifier matches against.
type Directories struct {
	Content  string
	Images   string
	Scripts  string
	Partials string
	Views    string
}

type rule struct {
	dir   string
	class FileClass
}

// Classifier classifies paths by directory prefix. It performs no I/O.
type Classifier struct {
	rules []rule
}

// New creates a Classifier. Directories are checked in the order content,
// images, scripts, partials, views and the first match wins.
func New(dirs Directories) *Classifier {
	ordered := []rule{
		{dirs.Content, Content},
		{dirs.Images, Image},
		{dirs.Scripts, Script},
		{dirs.Partials, Partial},
		{dirs.Views, View},
	}

	c := &Classifier{rules: make([]rule, 0, len(ordered))}
	for _, r := range ordered {
		if r.dir == "" {
			continue
		}
		c.rules = append(c.rules, rule{dir: filepath.Clean(r.dir), class: r.class})
	}
	return c
}

// Classify returns the class of path, or Unknown when it is under none of
// the configured directories.
func (c *Classifier) Classify(path string) FileClass {
	if path == "" {
		return Unknown
	}
	path = filepath.Clean(path)
	for _, r := range c.rules {
		if HasPathPrefix(path, r.dir) {
			return r.class
		}
	}
	return Unknown
}

// HasPathPrefix reports whether path equals dir or lies beneath it, comparing
// case-insensitively and only at path segment boundaries. Both arguments
// must already be cleaned.
func HasPathPrefix(path, dir string) bool {
	if len(path) < len(dir) || !strings.EqualFold(path[:len(dir)], dir) {
		return false
	}
	if len(path) == len(dir) {
		return true
	}
	// dir may be a filesystem root such as "/" which already ends in a separator
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return true
	}
	return path[len(dir)] == filepath.Separator
}
