package files

import (
	"context"
	"testing"

	"github.com/conneroisu/sitewright/internal/sidebyside"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
	}
}

func TestViewFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs,
		"/site/views/index.cshtml",
		"/site/views/about.md",
		"/site/views/about.json",
		"/site/views/orphan.yaml",
		"/site/views/_ViewStart.cshtml",
		"/site/views/_siteconfig.yaml",
		"/site/views/.DS_Store",
		"/site/views/shared/_Layout.hbs",
		"/site/views/blog/post.md",
		"/site/views/blog/draft.tmp",
		"/site/views/.hidden/secret.md",
		"/site/views/_drafts/wip.md",
		"/site/views/partials/nav.hbs",
		"/site/views/node_modules/pkg/readme.md",
		"/site/views/logo.png",
	)

	e := NewEnumerator(fs, EnumeratorOptions{
		ConfigFileName: "_siteconfig.yaml",
		PartialsDir:    "/site/views/partials",
		SideBySide:     sidebyside.New(fs),
		Ignore:         LoadIgnoreRules(fs, "/site", "", []string{"*.tmp", "node_modules/"}),
	})

	got, err := e.ViewFiles(context.Background(), "/site/views")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/site/views/about.md",
		"/site/views/blog/post.md",
		"/site/views/index.cshtml",
		"/site/views/logo.png",
		"/site/views/orphan.yaml",
	}, got)
}

func TestViewFilesCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/site/views/index.md")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEnumerator(fs, EnumeratorOptions{}).ViewFiles(ctx, "/site/views")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestViewFilesMissingDirectory(t *testing.T) {
	_, err := NewEnumerator(afero.NewMemMapFs(), EnumeratorOptions{}).ViewFiles(context.Background(), "/nope")
	assert.Error(t, err)
}

func TestIgnoreRules(t *testing.T) {
	fs := afero.NewMemMapFs()
	seed(t, fs, "/site/.siteignore")
	require.NoError(t, afero.WriteFile(fs, "/site/.siteignore", []byte("# comment\ndrafts/\n*.bak\n"), 0o644))

	rules := LoadIgnoreRules(fs, "/site", ".siteignore", []string{"*.tmp"})

	assert.True(t, rules.Matches("/site/views/a.tmp"))
	assert.True(t, rules.Matches("/site/views/a.bak"))
	assert.True(t, rules.Matches("/site/drafts/a.md"))
	assert.True(t, rules.MatchesDir("/site/drafts"))
	assert.False(t, rules.Matches("/site/views/a.md"))
	assert.False(t, rules.Matches("/other/a.tmp"), "paths outside the root are not matched")

	var none *IgnoreRules
	assert.False(t, none.Matches("/site/a.tmp"))
}
