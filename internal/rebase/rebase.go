// Package rebase maps source paths to their destinations in the website
// directory and rewrites root-relative markers for the destination depth.
package rebase

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitewright/internal/classify"
)

// DefaultMarker is replaced by the relative path back to the website root.
const DefaultMarker = "{PATHTOROOT}"

// Rebaser knows the project, views and website directories.
type Rebaser struct {
	projectDir string
	viewsDir   string
	websiteDir string
}

// New creates a Rebaser. All directories should be absolute.
func New(projectDir, viewsDir, websiteDir string) *Rebaser {
	return &Rebaser{
		projectDir: filepath.Clean(projectDir),
		viewsDir:   filepath.Clean(viewsDir),
		websiteDir: filepath.Clean(websiteDir),
	}
}

// WebsiteDir returns the output root
func (r *Rebaser) WebsiteDir() string { return r.websiteDir }

// ViewDestination maps a processed view to the website. The views directory
// is the website root, so views/blog/post.html becomes website/blog/post.html.
// Views outside the views directory keep their project-relative path.
func (r *Rebaser) ViewDestination(path string) string {
	if classify.HasPathPrefix(path, r.viewsDir) {
		return r.join(r.viewsDir, path)
	}
	return r.AssetDestination(path)
}

// AssetDestination maps a copied asset to website/<project-relative path>.
func (r *Rebaser) AssetDestination(path string) string {
	return r.join(r.projectDir, path)
}

func (r *Rebaser) join(base, path string) string {
	path = filepath.Clean(path)
	if classify.HasPathPrefix(path, base) {
		rel := strings.TrimLeft(path[len(base):], string(filepath.Separator))
		if rel != "" {
			return filepath.Join(r.websiteDir, rel)
		}
	}
	return filepath.Join(r.websiteDir, filepath.Base(path))
}

// Depth is the number of directories between the website root and dest.
// A file directly in the website root has depth 0.
func (r *Rebaser) Depth(dest string) int {
	rel, err := filepath.Rel(r.websiteDir, filepath.Clean(dest))
	if err != nil || strings.HasPrefix(rel, "..") {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/")
}

// RewritePathToRoot replaces every marker with "../" repeated depth times.
// The URL-escaped form of the marker, as left behind by Markdown link
// rendering, is replaced too.
func RewritePathToRoot(contents string, depth int, marker string) string {
	if marker == "" {
		return contents
	}
	if depth < 0 {
		depth = 0
	}
	prefix := strings.Repeat("../", depth)
	if escaped := url.PathEscape(marker); escaped != marker {
		contents = strings.ReplaceAll(contents, escaped, prefix)
	}
	return strings.ReplaceAll(contents, marker, prefix)
}
