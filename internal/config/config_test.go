package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, "website", s.Project.Website)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, "{PATHTOROOT}", s.Build.PathToRootMarker)
	assert.Equal(t, "_siteconfig.yaml", s.Build.DirectoryConfigFile)
	assert.Equal(t, []string{"json", "yaml"}, s.Build.SideBySideExtensions)
	assert.Equal(t, DefaultViewDegreeOfParallelism(), s.Build.ViewDegreeOfParallelism)
	assert.Equal(t, 300*time.Millisecond, s.Watch.Debounce)
}

func TestForProjectResolvesDirectories(t *testing.T) {
	root := t.TempDir()

	s, err := ForProject(root)
	require.NoError(t, err)

	assert.Equal(t, root, s.Project.Directory)
	assert.Equal(t, filepath.Join(root, "website"), s.Project.Website)
	assert.Equal(t, filepath.Join(root, "views"), s.Project.Views)
	assert.Equal(t, filepath.Join(root, "models"), s.Project.Models)
	assert.NoError(t, s.Validate())
}

func TestLoadFromSettingsFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "sitewright.yaml")
	content := `project:
  directory: .
  website: out
server:
  port: 9000
build:
  viewdop: 3
logging:
  level: verbose
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)

	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, root, s.Project.Directory)
	assert.Equal(t, filepath.Join(root, "out"), s.Project.Website)
	assert.Equal(t, filepath.Join(root, "content"), s.Project.Content)
	assert.Equal(t, 9000, s.Server.Port)
	assert.Equal(t, 3, s.Build.ViewDegreeOfParallelism)
	assert.Equal(t, "verbose", s.Logging.Level)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("SITEWRIGHT_SERVER_PORT", "9191")
	t.Setenv("SITEWRIGHT_PROJECT_DIRECTORY", t.TempDir())

	v, err := NewViper("")
	require.NoError(t, err)

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9191, s.Server.Port)
}

func TestLoadMissingSettingsFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(s *Settings) {},
		},
		{
			name:    "port out of range",
			mutate:  func(s *Settings) { s.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "zero view parallelism",
			mutate:  func(s *Settings) { s.Build.ViewDegreeOfParallelism = -1 },
			wantErr: "build.viewdop",
		},
		{
			name:    "website is project",
			mutate:  func(s *Settings) { s.Project.Website = s.Project.Directory },
			wantErr: "must not be the project directory",
		},
		{
			name: "source inside website",
			mutate: func(s *Settings) {
				s.Project.Views = filepath.Join(s.Project.Website, "views")
			},
			wantErr: "project.views",
		},
		{
			name:    "bad log level",
			mutate:  func(s *Settings) { s.Logging.Level = "chatty" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(s *Settings) { s.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "unknown build step",
			mutate:  func(s *Settings) { s.Build.Steps = []string{"content", "deploy"} },
			wantErr: "build.steps",
		},
		{
			name:    "side by side extension with dot",
			mutate:  func(s *Settings) { s.Build.SideBySideExtensions = []string{".json"} },
			wantErr: "build.side_by_side_extensions",
		},
		{
			name:    "config file with separator",
			mutate:  func(s *Settings) { s.Build.DirectoryConfigFile = "conf/site.yaml" },
			wantErr: "build.directory_config_file",
		},
		{
			name:    "negative debounce",
			mutate:  func(s *Settings) { s.Watch.Debounce = -time.Second },
			wantErr: "watch.debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ForProject(t.TempDir())
			require.NoError(t, err)

			tt.mutate(s)
			err = s.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sitewright.yaml")

	require.NoError(t, WriteStarter(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# sitewright settings")
	assert.Contains(t, string(data), "PATHTOROOT")

	err = WriteStarter(path)
	assert.Error(t, err, "existing settings must not be overwritten")

	v, err := NewViper(path)
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "website"), s.Project.Website)
}
