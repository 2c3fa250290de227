package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/conneroisu/sitewright/internal/dirconfig"
	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/conneroisu/sitewright/internal/models"
	"github.com/conneroisu/sitewright/internal/output"
	"github.com/conneroisu/sitewright/internal/partials"
	"github.com/conneroisu/sitewright/internal/processors"
	"github.com/conneroisu/sitewright/internal/rebase"
	"github.com/conneroisu/sitewright/internal/sidebyside"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layout = `<html><head><link href="{PATHTOROOT}site.css"></head><body>{{ .body }}</body></html>`

func newPipeline(t *testing.T, registry *processors.Registry, sources map[string]string) (*ViewPipeline, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site/website", 0o755))
	for name, contents := range sources {
		require.NoError(t, afero.WriteFile(fs, name, []byte(contents), 0o644))
	}

	logger := logging.NewNopLogger()
	sbs := sidebyside.New(fs)
	cache := partials.NewCache(fs, "/site/views/shared", logger)
	if registry == nil {
		registry = processors.Builtin()
	}
	procs, err := registry.Instantiate(processors.Environment{Partials: cache, Logger: logger})
	require.NoError(t, err)

	p, err := New(Options{
		Fs:      fs,
		Configs: dirconfig.NewResolver(fs, "/site", dirconfig.DefaultFileName, logger),
		Enumerator: files.NewEnumerator(fs, files.EnumeratorOptions{
			ConfigFileName: dirconfig.DefaultFileName,
			PartialsDir:    "/site/views/shared",
			WebsiteDir:     "/site/website",
			SideBySide:     sbs,
		}),
		Injector: models.NewDefault(models.Options{
			Fs:         fs,
			SideBySide: sbs,
			ViewsDir:   "/site/views",
			ModelsDir:  "/site/models",
		}),
		Processors:  procs,
		Partials:    cache,
		Rebaser:     rebase.New("/site", "/site/views", "/site/website"),
		Writer:      output.NewWriter(fs, "/site/website", logger),
		Parallelism: 2,
		Logger:      logger,
	})
	require.NoError(t, err)
	return p, fs
}

func websiteFiles(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	var found []string
	require.NoError(t, afero.Walk(fs, "/site/website", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			found = append(found, filepath.ToSlash(path))
		}
		return nil
	}))
	sort.Strings(found)
	return found
}

func read(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestRazorViewWithLayoutProducesOnlyIndex(t *testing.T) {
	p, fs := newPipeline(t, nil, map[string]string{
		"/site/views/index.cshtml":       "---\ntitle: Home\n---\n<h1>{{ .title }}</h1>",
		"/site/views/shared/_Layout.hbs": layout,
	})

	report := p.ProcessDirectory(context.Background(), "/site/views")

	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{"/site/website/index.html"}, websiteFiles(t, fs))
	assert.Equal(t, `<html><head><link href="site.css"></head><body><h1>Home</h1></body></html>`,
		read(t, fs, "/site/website/index.html"))
	assert.Equal(t, []string{filepath.FromSlash("/site/website/index.html")}, report.Written)
	assert.NotEqual(t, [16]byte{}, [16]byte(report.RunID))
}

func TestRazorViewWithoutFrontMatter(t *testing.T) {
	p, fs := newPipeline(t, nil, map[string]string{
		"/site/views/index.cshtml":       "<h1>Hello</h1>",
		"/site/views/shared/_Layout.hbs": layout,
	})

	report := p.ProcessDirectory(context.Background(), "/site/views")

	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{"/site/website/index.html"}, websiteFiles(t, fs))
	assert.Equal(t, `<html><head><link href="site.css"></head><body><h1>Hello</h1></body></html>`,
		read(t, fs, "/site/website/index.html"))
	assert.Equal(t, []string{filepath.FromSlash("/site/website/index.html")}, report.Written)
}

func TestMarkdownInsideHTMLChain(t *testing.T) {
	p, fs := newPipeline(t, nil, map[string]string{
		"/site/views/docs/Foo.md.html":   "# Foo\n",
		"/site/views/shared/_Layout.hbs": layout,
	})

	report := p.ProcessFile(context.Background(), "/site/views/docs/Foo.md.html")

	require.Empty(t, report.Errors)
	assert.Equal(t, []string{"/site/website/docs/Foo.html"}, websiteFiles(t, fs))
	assert.Equal(t, `<html><head><link href="../site.css"></head><body><h1 id="foo">Foo</h1>`+"\n"+`</body></html>`,
		read(t, fs, "/site/website/docs/Foo.html"))
}

func TestOuterExtensionWithoutProcessorsStillRunsTheChain(t *testing.T) {
	p, fs := newPipeline(t, nil, map[string]string{
		"/site/_siteconfig.yaml":       "mappings:\n  - extensions: [md]\n    processors: [markdown]\n",
		"/site/views/docs/Foo.md.html": "# Foo\n",
	})

	report := p.ProcessFile(context.Background(), "/site/views/docs/Foo.md.html")

	require.Empty(t, report.Errors)
	assert.Empty(t, report.Copied)
	assert.Equal(t, []string{filepath.FromSlash("/site/website/docs/Foo.html")}, report.Written)
	assert.Equal(t, []string{"/site/website/docs/Foo.html"}, websiteFiles(t, fs))
	assert.Equal(t, `<h1 id="foo">Foo</h1>`+"\n", read(t, fs, "/site/website/docs/Foo.html"))
}

func TestMixedDirectory(t *testing.T) {
	p, fs := newPipeline(t, nil, map[string]string{
		"/site/views/about.md":           "Hello {{ About }}\n",
		"/site/views/about.yaml":         "title: About\n",
		"/site/views/draft.md":           "---\npublish: false\n---\n# Draft\n",
		"/site/views/robots.txt":         "User-agent: *\n",
		"/site/views/_ViewStart.cshtml":  "ignored",
		"/site/views/shared/_Layout.hbs": `{{ .title }}|{{ .body }}`,
		"/site/website/stale.html":       "old",
	})

	report := p.ProcessDirectory(context.Background(), "/site/views")

	assert.Empty(t, report.Errors)
	assert.Equal(t, []string{
		"/site/website/about.html",
		"/site/website/robots.txt",
		"/site/website/stale.html",
	}, websiteFiles(t, fs))
	assert.Equal(t, "About|<p>Hello {{ About }}</p>\n", read(t, fs, "/site/website/about.html"))
	assert.Equal(t, []string{filepath.FromSlash("/site/website/robots.txt")}, report.Copied)
	assert.Equal(t, []string{"/site/views/draft.md"}, report.Skipped)
}

func TestPerFileErrorsDoNotStopTheRun(t *testing.T) {
	p, fs := newPipeline(t, nil, map[string]string{
		"/site/views/good.tmpl":    "ok",
		"/site/views/broken.tmpl":  "{{ .title ",
		"/site/views/badmodel.md":  "---\nmodel: nope\n---\n# x\n",
		"/site/views/badfront.md":  "---\ntitle: [\n---\n",
		"/site/views/unclosed.md":  "---\ntitle: x\n",
		"/site/views/shared/.keep": "",
	})

	report := p.ProcessDirectory(context.Background(), "/site/views")

	assert.Equal(t, []string{"/site/website/good.html"}, websiteFiles(t, fs))
	assert.Equal(t, 4, report.ErrorCount())
	assert.Equal(t, map[string]int{StageInject: 3, StageProcess: 1}, report.ErrorsByStage())

	for _, e := range report.Errors {
		assert.True(t, siteerrors.IsPipelineError(e.Err), "%s: %v", e.File, e.Err)
	}
}

func TestProcessorCycle(t *testing.T) {
	registry := processors.NewRegistry()
	setExt := func(ext string) processors.Factory {
		return func(processors.Environment) (processors.Processor, error) {
			return processors.ProcessorFunc(func(_ context.Context, f *files.PipelineFile) error {
				f.SetExtension(ext)
				return nil
			}), nil
		}
	}
	registry.MustRegister("to-b", setExt("b"))
	registry.MustRegister("to-a", setExt("a"))

	p, fs := newPipeline(t, registry, map[string]string{
		"/site/views/_siteconfig.yaml": "mappings:\n  - extensions: [a]\n    processors: [to-b]\n  - extensions: [b]\n    processors: [to-a]\n",
		"/site/views/x.a":              "x",
	})

	report := p.ProcessFile(context.Background(), "/site/views/x.a")

	require.Len(t, report.Errors, 1)
	var siteErr *siteerrors.SiteError
	require.ErrorAs(t, report.Errors[0].Err, &siteErr)
	assert.Equal(t, siteerrors.ErrCodeProcessorCycle, siteErr.Code)
	assert.Empty(t, websiteFiles(t, fs))
}

func TestUnknownProcessor(t *testing.T) {
	p, _ := newPipeline(t, nil, map[string]string{
		"/site/views/_siteconfig.yaml": "mappings:\n  - extensions: [scss]\n    processors: [sass]\n",
		"/site/views/site.scss":        "a { b: c }",
	})

	report := p.ProcessFile(context.Background(), "/site/views/site.scss")

	require.Len(t, report.Errors, 1)
	var siteErr *siteerrors.SiteError
	require.ErrorAs(t, report.Errors[0].Err, &siteErr)
	assert.Equal(t, siteerrors.ErrCodeUnknownProcessor, siteErr.Code)
}

func TestMissingInput(t *testing.T) {
	p, _ := newPipeline(t, nil, nil)

	report := p.ProcessDirectory(context.Background(), "/site/nothing")
	require.Len(t, report.Errors, 1)
	assert.Equal(t, StageEnumerate, report.Errors[0].Stage)

	report = p.ProcessFile(context.Background(), "/site/views/gone.md")
	require.Len(t, report.Errors, 1)
	assert.Equal(t, StageLoad, report.Errors[0].Stage)
}

func TestCancelledRunReturns(t *testing.T) {
	p, fs := newPipeline(t, nil, map[string]string{
		"/site/views/a.md": "# a",
		"/site/views/b.md": "# b",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := p.ProcessDirectory(ctx, "/site/views")
	assert.NotNil(t, report)
	assert.Empty(t, websiteFiles(t, fs))
}

func TestPanickingProcessorFailsOnlyItsFile(t *testing.T) {
	registry := processors.Builtin()
	registry.MustRegister("explode", func(processors.Environment) (processors.Processor, error) {
		return processors.ProcessorFunc(func(context.Context, *files.PipelineFile) error {
			panic("boom")
		}), nil
	})

	p, fs := newPipeline(t, registry, map[string]string{
		"/site/views/_siteconfig.yaml": "mappings:\n  - extensions: [boom]\n    processors: [explode]\n",
		"/site/views/x.boom":           "x",
		"/site/views/ok.md":            "ok",
	})

	report := p.ProcessDirectory(context.Background(), "/site/views")

	require.Len(t, report.Errors, 1)
	assert.Equal(t, StageProcess, report.Errors[0].Stage)
	assert.Equal(t, []string{"/site/website/ok.html"}, websiteFiles(t, fs))
}

func TestNextStep(t *testing.T) {
	cfg := dirconfig.Default()
	file := func(working string) *files.PipelineFile {
		f := files.NewPipelineFile(files.TextFile{FileName: working}, cfg)
		return f
	}

	tests := []struct {
		name    string
		working string
		before  string
		want    transition
	}{
		{"extension changed", "/v/Foo.html", "md", transitionRerun},
		{"penultimate mapped", "/v/Foo.md.html", "html", transitionStrip},
		{"penultimate unmapped", "/v/Foo.txt.html", "html", transitionDone},
		{"single extension", "/v/Foo.html", "html", transitionDone},
		{"no extension left", "/v/Foo", "", transitionDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextStep(tt.before, file(tt.working)), tt.want.String())
		})
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
