package processors

import (
	"context"
	"testing"

	"github.com/conneroisu/sitewright/internal/dirconfig"
	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/conneroisu/sitewright/internal/partials"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, partialFiles map[string]string) Environment {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site/views/shared", 0o755))
	for name, contents := range partialFiles {
		require.NoError(t, afero.WriteFile(fs, name, []byte(contents), 0o644))
	}
	logger := logging.NewNopLogger()
	return Environment{
		Partials: partials.NewCache(fs, "/site/views/shared", logger),
		Logger:   logger,
	}
}

func newFile(name, contents string) *files.PipelineFile {
	return files.NewPipelineFile(files.TextFile{FileName: name, Contents: contents}, nil)
}

func TestRegistry(t *testing.T) {
	r := Builtin()
	assert.Equal(t, []string{"layout", "markdown", "minify-whitespace", "template"}, r.Names())
	assert.Error(t, r.Register(MarkdownName, NewMarkdown), "duplicate names are rejected")
	assert.Error(t, r.Register("", NewMarkdown))

	set, err := r.Instantiate(Environment{})
	require.NoError(t, err)

	p, err := set.Get(MarkdownName)
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = set.Get("sass")
	require.Error(t, err)
	var siteErr *siteerrors.SiteError
	require.ErrorAs(t, err, &siteErr)
	assert.Equal(t, siteerrors.ErrCodeUnknownProcessor, siteErr.Code)
}

func TestMarkdown(t *testing.T) {
	p, err := NewMarkdown(Environment{})
	require.NoError(t, err)

	f := newFile("/site/views/post.md", "# Hello\n\n| a |\n|---|\n| 1 |\n\n<div>raw</div>\n")
	require.NoError(t, p.Process(context.Background(), f))

	assert.Equal(t, "/site/views/post.html", f.WorkingFileName)
	assert.Contains(t, f.Contents, `<h1 id="hello">Hello</h1>`)
	assert.Contains(t, f.Contents, "<table>")
	assert.Contains(t, f.Contents, "<div>raw</div>")
}

func TestMarkdownExtOut(t *testing.T) {
	p, err := NewMarkdown(Environment{})
	require.NoError(t, err)

	f := newFile("/site/views/feed.md", "text")
	f.Data[files.KeyExtOut] = ".xml"
	require.NoError(t, p.Process(context.Background(), f))
	assert.Equal(t, "/site/views/feed.xml", f.WorkingFileName)
}

func TestTemplate(t *testing.T) {
	env := newEnv(t, map[string]string{
		"/site/views/shared/_nav.hbs":  `<nav>{{ .title }}</nav>`,
		"/site/views/shared/_item.hbs": `<li>{{ .value }}</li>`,
	})
	p, err := NewTemplate(env)
	require.NoError(t, err)

	f := newFile("/site/views/index.cshtml",
		`{{ partial "_nav.hbs" }}{{ range .items }}{{ partial "_item.hbs" . }}{{ end }}{{ default "none" .missing }}`)
	f.Data["title"] = "Home"
	f.Data["items"] = []string{"a", "b"}

	require.NoError(t, p.Process(context.Background(), f))
	assert.Equal(t, "<nav>Home</nav><li>a</li><li>b</li>none", f.Contents)
	assert.Equal(t, "/site/views/index.html", f.WorkingFileName)
}

func TestTemplateErrors(t *testing.T) {
	env := newEnv(t, map[string]string{
		"/site/views/shared/_loop.hbs": `{{ partial "_loop.hbs" }}`,
	})
	p, err := NewTemplate(env)
	require.NoError(t, err)

	tests := []struct {
		name     string
		contents string
	}{
		{"parse error", "{{ .title "},
		{"missing partial", `{{ partial "_nope.hbs" }}`},
		{"recursive partial", `{{ partial "_loop.hbs" }}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, p.Process(context.Background(), newFile("/site/views/x.tmpl", tt.contents)))
		})
	}
}

func TestLayout(t *testing.T) {
	env := newEnv(t, map[string]string{
		"/site/views/shared/_Layout.hbs": `<html><title>{{ .title }}</title>{{ .body }}</html>`,
	})
	p, err := NewLayout(env)
	require.NoError(t, err)

	f := newFile("/site/views/index.html", "<p>hi</p>")
	f.Data["title"] = "Home"
	f.Data[files.KeyLayout] = "_Layout.hbs"

	require.NoError(t, p.Process(context.Background(), f))
	assert.Equal(t, "<html><title>Home</title><p>hi</p></html>", f.Contents)

	require.NoError(t, p.Process(context.Background(), f), "the layout is consumed")
	assert.Equal(t, "<html><title>Home</title><p>hi</p></html>", f.Contents)
}

func TestLayoutWaitsForInnerExtension(t *testing.T) {
	env := newEnv(t, map[string]string{
		"/site/views/shared/_Layout.hbs": `<main>{{ .body }}</main>`,
	})
	p, err := NewLayout(env)
	require.NoError(t, err)

	f := files.NewPipelineFile(files.TextFile{FileName: "/site/views/Foo.md.html", Contents: "# Foo"}, dirconfig.Default())
	require.NoError(t, p.Process(context.Background(), f))
	assert.Equal(t, "# Foo", f.Contents, "md is still to be rendered")

	f.WorkingFileName = "/site/views/Foo.html"
	require.NoError(t, p.Process(context.Background(), f))
	assert.Equal(t, "<main># Foo</main>", f.Contents)
}

func TestLayoutMissing(t *testing.T) {
	env := newEnv(t, nil)
	p, err := NewLayout(env)
	require.NoError(t, err)

	explicit := newFile("/site/views/index.html", "<p>hi</p>")
	explicit.Data[files.KeyLayout] = "_Wide.hbs"
	assert.Error(t, p.Process(context.Background(), explicit))

	none := newFile("/site/views/index.html", "<p>hi</p>")
	none.Data[files.KeyLayout] = ""
	require.NoError(t, p.Process(context.Background(), none))
	assert.Equal(t, "<p>hi</p>", none.Contents)
}

func TestMinifyWhitespace(t *testing.T) {
	f := newFile("/site/views/a.html", "<p>  \r\n\n\t<b>x</b>\t\n\n")
	require.NoError(t, MinifyWhitespace{}.Process(context.Background(), f))
	assert.Equal(t, "<p>\n\t<b>x</b>\n", f.Contents)

	empty := newFile("/site/views/b.html", "\n \n")
	require.NoError(t, MinifyWhitespace{}.Process(context.Background(), empty))
	assert.Equal(t, "", empty.Contents)
}
