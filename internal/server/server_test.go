package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/pipeline"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	fs := afero.NewMemMapFs()
	pages := map[string]string{
		"/site/website/index.html":      "<html><head><title>Home</title></head><body><h1>Home</h1></body></html>",
		"/site/website/blog/index.html": "<p>Blog</p>",
		"/site/website/css/site.css":    "body{margin:0}",
	}
	for name, contents := range pages {
		require.NoError(t, afero.WriteFile(fs, name, []byte(contents), 0o644))
	}
	opts.Fs = fs
	opts.WebsiteDir = "/site/website"
	opts.Host = "localhost"
	opts.Port = 8080
	return New(opts)
}

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestInjectReloadScript(t *testing.T) {
	tests := []struct {
		name     string
		document string
		keep     string
	}{
		{name: "full document", document: "<html><body><h1>Hi</h1></body></html>", keep: "<h1>Hi</h1>"},
		{name: "fragment", document: "<p>fragment</p>", keep: "<p>fragment</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := InjectReloadScript([]byte(tt.document))
			require.NoError(t, err)
			body := string(out)
			assert.Contains(t, body, tt.keep)
			assert.Contains(t, body, `<script data-sitewright="reload">`)
			assert.Contains(t, body, ReloadPath)
			assert.True(t, strings.HasSuffix(body, "</script></body></html>"))
		})
	}
}

func TestStaticFiles(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		contains   string
		injected   bool
	}{
		{name: "root index", method: http.MethodGet, target: "/", wantStatus: http.StatusOK, contains: "<h1>Home</h1>", injected: true},
		{name: "explicit page", method: http.MethodGet, target: "/blog/index.html", wantStatus: http.StatusOK, contains: "<p>Blog</p>", injected: true},
		{name: "directory index", method: http.MethodGet, target: "/blog/", wantStatus: http.StatusOK, contains: "<p>Blog</p>", injected: true},
		{name: "stylesheet untouched", method: http.MethodGet, target: "/css/site.css", wantStatus: http.StatusOK, contains: "body{margin:0}"},
		{name: "missing page", method: http.MethodGet, target: "/missing.html", wantStatus: http.StatusNotFound},
		{name: "post rejected", method: http.MethodPost, target: "/", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.method, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.injected, strings.Contains(rec.Body.String(), "data-sitewright"))
			}
		})
	}
}

func TestStatusPage(t *testing.T) {
	report := &pipeline.RunReport{
		RunID:    uuid.New(),
		Input:    "/site/views",
		Started:  time.Now(),
		Duration: 15 * time.Millisecond,
		Written:  []string{"/site/website/index.html"},
		Errors: []siteerrors.StageError{
			{Stage: "process", File: "/site/views/bad.md", Err: errors.New("unclosed <tag>")},
		},
	}
	s := newTestServer(t, Options{Status: func() Status {
		return Status{
			Version:    "1.2.3",
			ProjectDir: "/site/<drafts>",
			LastRun:    report,
			Commands: []CommandSummary{{Description: "BuildViews(/site/views)", Finished: time.Now(), Err: "1 file failed"}},
		}
	}})

	rec := get(t, s.Handler(), http.MethodGet, StatusPath)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "sitewright 1.2.3")
	assert.Contains(t, body, report.RunID.String())
	assert.Contains(t, body, "unclosed &lt;tag&gt;")
	assert.Contains(t, body, "/site/&lt;drafts&gt;")
	assert.Contains(t, body, "BuildViews(/site/views)")
	assert.Contains(t, body, "1 file failed")
	assert.NotContains(t, body, "data-sitewright")
}

func TestStatusPageBeforeFirstRun(t *testing.T) {
	rec := get(t, newTestServer(t, Options{}).Handler(), http.MethodGet, StatusPath)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No views built yet.")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{Status: func() Status { return Status{Version: "dev"} }})

	rec := get(t, s.Handler(), http.MethodGet, HealthPath)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "dev", health["version"])
	assert.NotContains(t, health, "last_run")
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sitewright_runs 1\n"))
	})

	with := newTestServer(t, Options{Metrics: metrics})
	rec := get(t, with.Handler(), http.MethodGet, MetricsPath)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sitewright_runs 1\n", rec.Body.String())

	without := newTestServer(t, Options{})
	rec = get(t, without.Handler(), http.MethodGet, MetricsPath)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "localhost:8080", newTestServer(t, Options{}).Addr())
}

func TestStartStopsWithContext(t *testing.T) {
	s := New(Options{Fs: afero.NewMemMapFs(), WebsiteDir: "/site/website", Host: "127.0.0.1", Port: 0})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(Options{Fs: afero.NewMemMapFs(), WebsiteDir: "/site/website", Host: "127.0.0.1", Port: 0})
	require.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Start(context.Background()))
}
