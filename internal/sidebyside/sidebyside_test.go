package sidebyside

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFs(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("x"), 0o644))
	}
	return fs
}

func TestGetSideBySideFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected []string
	}{
		{"neither exists", []string{"/v/foo.cshtml"}, nil},
		{"plain only", []string{"/v/foo.cshtml", "/v/foo.json"}, []string{"/v/foo.json"}},
		{"both", []string{"/v/foo.cshtml", "/v/foo.json", "/v/_foo.json"}, []string{"/v/foo.json", "/v/_foo.json"}},
		{"underscore only", []string{"/v/foo.cshtml", "/v/_foo.json"}, []string{"/v/_foo.json"}},
		{"other extension ignored", []string{"/v/foo.cshtml", "/v/foo.yaml"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(newFs(t, tt.files...))
			assert.Equal(t, tt.expected, r.GetSideBySideFiles("/v/foo.cshtml", "json"))
		})
	}
}

func TestIsSideBySideFile(t *testing.T) {
	r := New(afero.NewMemMapFs())

	assert.True(t, r.IsSideBySideFile("/v/about.json"))
	assert.True(t, r.IsSideBySideFile("/v/about.YAML"))
	assert.False(t, r.IsSideBySideFile("/v/about.md"))
	assert.False(t, r.IsSideBySideFile("/v/README"))
	assert.True(t, r.IsSideBySideFile("/v/about.toml", "toml"))
	assert.False(t, r.IsSideBySideFile("/v/about.json", "toml"))
}

func TestGetMainFile(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		path     string
		expected string
	}{
		{"single main", []string{"/v/about.md", "/v/about.json"}, "/v/about.json", "/v/about.md"},
		{"underscore retries without it", []string{"/v/about.md", "/v/_about.yaml"}, "/v/_about.yaml", "/v/about.md"},
		{"underscore main wins first", []string{"/v/_about.md", "/v/about.md", "/v/_about.json"}, "/v/_about.json", "/v/_about.md"},
		{"ambiguous", []string{"/v/about.md", "/v/about.cshtml", "/v/about.json"}, "/v/about.json", ""},
		{"absent", []string{"/v/about.json"}, "/v/about.json", ""},
		{"only other data files", []string{"/v/about.json", "/v/about.yaml"}, "/v/about.json", ""},
		{"missing directory", nil, "/nope/about.json", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(newFs(t, tt.files...))
			assert.Equal(t, tt.expected, r.GetMainFile(tt.path))
		})
	}
}

func TestNewNormalizesExtensions(t *testing.T) {
	r := New(afero.NewMemMapFs(), ".JSON", "toml")
	assert.Equal(t, []string{"json", "toml"}, r.Extensions())
}
