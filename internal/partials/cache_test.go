package partials

import (
	"context"
	"sync"
	"testing"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	write := func(path string, data []byte) {
		require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	}
	write("/site/partials/_Layout.hbs", []byte("<html>{{ .body }}</html>"))
	write("/site/partials/shared/_Nav.hbs", []byte("<nav></nav>"))
	write("/site/partials/blog/_Nav.hbs", []byte("<nav class=blog></nav>"))
	write("/site/partials/blog/_Card.hbs", []byte("<div></div>"))
	write("/site/partials/logo.png", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01})
	write("/site/partials/latin1.txt", []byte{0xe9, 0xe8})

	return NewCache(fs, "/site/partials", logging.NewNopLogger()), fs
}

func TestCacheLoadCountsTextFilesOnly(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	assert.False(t, c.Loaded())
	assert.Equal(t, 0, c.Count())

	require.NoError(t, c.Load(ctx))
	assert.True(t, c.Loaded())
	assert.Equal(t, 4, c.Count())
	assert.Equal(t, []string{"/site/partials/latin1.txt", "/site/partials/logo.png"}, c.BadFiles())

	require.NoError(t, c.Load(ctx), "second load is a no-op")
	assert.Equal(t, 4, c.Count())
}

func TestCacheFlush(t *testing.T) {
	c, fs := newTestCache(t)
	ctx := context.Background()

	assert.Equal(t, 0, c.Flush(), "flushing an unloaded cache")

	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 4, c.Flush())
	assert.Equal(t, 0, c.Count())
	assert.False(t, c.Loaded())
	assert.Nil(t, c.Files())

	require.NoError(t, afero.WriteFile(fs, "/site/partials/_Footer.hbs", []byte("<footer/>"), 0o644))
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 5, c.Count())
}

func TestCacheFilesIsACopy(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Load(context.Background()))

	files := c.Files()
	files[0] = nil
	assert.NotNil(t, c.Files()[0])
}

func TestCacheMissingDirectory(t *testing.T) {
	c := NewCache(afero.NewMemMapFs(), "/site/partials", logging.NewNopLogger())
	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.Loaded())
	assert.Equal(t, 0, c.Count())
}

func TestResolvePartial(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		partial    string
		relativeTo string
		expected   string
		code       string
	}{
		{"root relative", "_Layout.hbs", "", "/site/partials/_Layout.hbs", ""},
		{"case insensitive", "_layout.HBS", "", "/site/partials/_Layout.hbs", ""},
		{"relative to requesting file", "_Nav.hbs", "/site/partials/blog/_Card.hbs", "/site/partials/blog/_Nav.hbs", ""},
		{"unique suffix", "_Card.hbs", "/site/views/index.hbs", "/site/partials/blog/_Card.hbs", ""},
		{"qualified path", "shared/_Nav.hbs", "", "/site/partials/shared/_Nav.hbs", ""},
		{"ambiguous suffix", "_Nav.hbs", "/site/views/index.hbs", "", siteerrors.ErrCodePartialAmbiguous},
		{"segment boundary", "Layout.hbs", "", "", siteerrors.ErrCodePartialNotFound},
		{"non-text excluded", "logo.png", "", "", siteerrors.ErrCodePartialNotFound},
		{"missing", "_Missing.hbs", "", "", siteerrors.ErrCodePartialNotFound},
		{"empty", " ", "", "", siteerrors.ErrCodePartialNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf, err := c.ResolvePartial(ctx, tt.partial, tt.relativeTo)
			if tt.code != "" {
				require.Error(t, err)
				var se *siteerrors.SiteError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.code, se.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tf.FileName)
		})
	}
}

func TestResolvePartialLoadsLazily(t *testing.T) {
	c, _ := newTestCache(t)

	tf, err := c.ResolvePartial(context.Background(), "_Layout.hbs", "")
	require.NoError(t, err)
	assert.Contains(t, tf.Contents, "{{ .body }}")
	assert.True(t, c.Loaded())
}

func TestCacheConcurrentLoadAndFlush(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.ResolvePartial(ctx, "_Layout.hbs", "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			n := c.Flush()
			assert.True(t, n == 0 || n == 4)
		}()
	}
	wg.Wait()

	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 4, c.Count())
}
