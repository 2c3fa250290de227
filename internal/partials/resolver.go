package partials

import (
	"fmt"
	"path/filepath"
	"strings"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
)

// View is the read-only face of one cache snapshot handed to a Resolver.
type View struct {
	root string
	snap *snapshot
}

// Root returns the partials directory
func (v View) Root() string { return v.root }

// Lookup returns the cached file at path, compared case-insensitively.
func (v View) Lookup(path string) (*files.TextFile, bool) {
	tf, ok := v.snap.byPath[pathKey(path)]
	return tf, ok
}

// Files returns the cached files. Callers must not modify the slice.
func (v View) Files() []*files.TextFile { return v.snap.files }

// Resolver maps a partial name to a cached file.
type Resolver interface {
	Resolve(view View, name, relativeTo string) (*files.TextFile, error)
}

// PathResolver tries name as a path relative to the requesting file, then
// relative to the partials root, then as a unique suffix of a cached path.
// Suffix matches only count on a path segment boundary, so "Layout.hbs"
// does not match "_Layout.hbs".
type PathResolver struct{}

// Resolve implements Resolver
func (PathResolver) Resolve(view View, name, relativeTo string) (*files.TextFile, error) {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return nil, siteerrors.NewPipelineError(siteerrors.ErrCodePartialNotFound, "empty partial name", nil).
			WithComponent("PartialResolver")
	}

	if relativeTo != "" {
		if tf, ok := view.Lookup(filepath.Join(filepath.Dir(relativeTo), clean)); ok {
			return tf, nil
		}
	}
	if tf, ok := view.Lookup(filepath.Join(view.Root(), clean)); ok {
		return tf, nil
	}

	suffix := "/" + strings.TrimPrefix(strings.TrimPrefix(pathKey(clean), "./"), "/")
	var matches []*files.TextFile
	for _, tf := range view.Files() {
		if strings.HasSuffix(pathKey(tf.FileName), suffix) {
			matches = append(matches, tf)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, siteerrors.NewPipelineError(siteerrors.ErrCodePartialNotFound,
			fmt.Sprintf("partial %q not found in %s", name, view.Root()), nil).
			WithComponent("PartialResolver").
			WithFile(relativeTo)
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.FileName)
		}
		return nil, siteerrors.NewPipelineError(siteerrors.ErrCodePartialAmbiguous,
			fmt.Sprintf("partial %q is ambiguous: %s", name, strings.Join(names, ", ")), nil).
			WithComponent("PartialResolver").
			WithFile(relativeTo)
	}
}
