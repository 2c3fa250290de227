package rebase

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestinations(t *testing.T) {
	r := New("/site", "/site/views", "/site/website")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"view at root", r.ViewDestination("/site/views/index.html"), "/site/website/index.html"},
		{"nested view", r.ViewDestination("/site/views/blog/post.html"), "/site/website/blog/post.html"},
		{"view case insensitive", r.ViewDestination("/site/Views/about.html"), "/site/website/about.html"},
		{"view outside views", r.ViewDestination("/site/pages/a.html"), "/site/website/pages/a.html"},
		{"image", r.AssetDestination("/site/images/logo.png"), "/site/website/images/logo.png"},
		{"outside project", r.AssetDestination("/elsewhere/x.png"), "/site/website/x.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), tt.got)
		})
	}
}

func TestDepth(t *testing.T) {
	r := New("/site", "/site/views", "/site/website")
	assert.Equal(t, 0, r.Depth("/site/website/index.html"))
	assert.Equal(t, 1, r.Depth("/site/website/blog/post.html"))
	assert.Equal(t, 2, r.Depth("/site/website/a/b/c.html"))
	assert.Equal(t, 0, r.Depth("/tmp/other.html"))
}

func TestRewritePathToRoot(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		depth    int
		marker   string
		want     string
	}{
		{"depth zero", `<link href="{PATHTOROOT}site.css">`, 0, DefaultMarker, `<link href="site.css">`},
		{"depth two", `<a href="{PATHTOROOT}">{PATHTOROOT}x</a>`, 2, DefaultMarker, `<a href="../../">../../x</a>`},
		{"escaped marker", `<a href="%7BPATHTOROOT%7Dabout.html">`, 1, DefaultMarker, `<a href="../about.html">`},
		{"custom marker", `~/img.png`, 1, "~/", `../img.png`},
		{"no marker", `plain`, 3, DefaultMarker, `plain`},
		{"empty marker", `{PATHTOROOT}`, 1, "", `{PATHTOROOT}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewritePathToRoot(tt.contents, tt.depth, tt.marker))
		})
	}
}
