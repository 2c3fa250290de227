// Package config provides settings management for sitewright using Viper
// for loading from a settings file, environment variables and command-line
// flags.
//
// Settings describe the project layout (content, scripts, images, partials,
// views and models directories plus the website output directory), the
// view pipeline's tuning knobs, the development server and logging. All
// directories are resolved to absolute paths under the project directory by
// Load, so downstream components can compare paths by prefix.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override settings,
// e.g. SITEWRIGHT_SERVER_PORT.
const EnvPrefix = "SITEWRIGHT"

// DefaultSettingsFile is looked up in the working directory when no
// --settings flag is given.
const DefaultSettingsFile = "sitewright.yaml"

type Settings struct {
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Build   BuildConfig   `mapstructure:"build" yaml:"build"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

type ProjectConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Website   string `mapstructure:"website" yaml:"website"`
	Content   string `mapstructure:"content" yaml:"content"`
	Scripts   string `mapstructure:"scripts" yaml:"scripts"`
	Images    string `mapstructure:"images" yaml:"images"`
	Partials  string `mapstructure:"partials" yaml:"partials"`
	Views     string `mapstructure:"views" yaml:"views"`
	Models    string `mapstructure:"models" yaml:"models"`
}

type BuildConfig struct {
	ViewDegreeOfParallelism int      `mapstructure:"viewdop" yaml:"viewdop"`
	Steps                   []string `mapstructure:"steps" yaml:"steps"`
	PathToRootMarker        string   `mapstructure:"path_to_root_marker" yaml:"path_to_root_marker"`
	DirectoryConfigFile     string   `mapstructure:"directory_config_file" yaml:"directory_config_file"`
	SideBySideExtensions    []string `mapstructure:"side_by_side_extensions" yaml:"side_by_side_extensions"`
	Ignore                  []string `mapstructure:"ignore" yaml:"ignore"`
	IgnoreFile              string   `mapstructure:"ignore_file" yaml:"ignore_file"`
	AllowedProcesses        []string `mapstructure:"allowed_processes" yaml:"allowed_processes"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// DefaultViewDegreeOfParallelism is twice the number of available CPUs.
func DefaultViewDegreeOfParallelism() int {
	return 2 * runtime.NumCPU()
}

// Default returns settings with every default applied. Directories are
// relative until Resolve is called.
func Default() *Settings {
	return &Settings{
		Project: ProjectConfig{
			Directory: ".",
			Website:   "website",
			Content:   "content",
			Scripts:   "scripts",
			Images:    "images",
			Partials:  "partials",
			Views:     "views",
			Models:    "models",
		},
		Build: BuildConfig{
			ViewDegreeOfParallelism: DefaultViewDegreeOfParallelism(),
			Steps:                   []string{"content", "scripts", "images", "views"},
			PathToRootMarker:        "{PATHTOROOT}",
			DirectoryConfigFile:     "_siteconfig.yaml",
			SideBySideExtensions:    []string{"json", "yaml"},
			Ignore:                  []string{"node_modules/", ".git/", "*.tmp", "*~"},
			IgnoreFile:              ".siteignore",
			AllowedProcesses:        []string{"npm", "node", "npx"},
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "normal",
			Format: "text",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
	}
}

// SetDefaults registers every default with v so that environment variables
// and partial settings files are layered on top of them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("project.directory", d.Project.Directory)
	v.SetDefault("project.website", d.Project.Website)
	v.SetDefault("project.content", d.Project.Content)
	v.SetDefault("project.scripts", d.Project.Scripts)
	v.SetDefault("project.images", d.Project.Images)
	v.SetDefault("project.partials", d.Project.Partials)
	v.SetDefault("project.views", d.Project.Views)
	v.SetDefault("project.models", d.Project.Models)
	v.SetDefault("build.viewdop", d.Build.ViewDegreeOfParallelism)
	v.SetDefault("build.steps", d.Build.Steps)
	v.SetDefault("build.path_to_root_marker", d.Build.PathToRootMarker)
	v.SetDefault("build.directory_config_file", d.Build.DirectoryConfigFile)
	v.SetDefault("build.side_by_side_extensions", d.Build.SideBySideExtensions)
	v.SetDefault("build.ignore", d.Build.Ignore)
	v.SetDefault("build.ignore_file", d.Build.IgnoreFile)
	v.SetDefault("build.allowed_processes", d.Build.AllowedProcesses)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
}

// NewViper returns a viper instance reading settingsFile (when non-empty) or
// the default settings file, with SITEWRIGHT_ environment overrides.
func NewViper(settingsFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", settingsFile, err)
		}
		return v, nil
	}

	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetConfigName(strings.TrimSuffix(DefaultSettingsFile, filepath.Ext(DefaultSettingsFile)))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals settings from v, resolves every directory against the
// project directory and validates the result.
func Load(v *viper.Viper) (*Settings, error) {
	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	// When a settings file was read, a relative project directory is
	// relative to that file rather than to the working directory.
	if used := v.ConfigFileUsed(); used != "" && !filepath.IsAbs(settings.Project.Directory) {
		settings.Project.Directory = filepath.Join(filepath.Dir(used), settings.Project.Directory)
	}

	if err := settings.Resolve(); err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &settings, nil
}

// Resolve makes the project directory absolute and joins every other
// project directory onto it.
func (s *Settings) Resolve() error {
	dir := s.Project.Directory
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving project directory %s: %w", dir, err)
	}
	s.Project.Directory = abs

	for _, p := range []*string{
		&s.Project.Website,
		&s.Project.Content,
		&s.Project.Scripts,
		&s.Project.Images,
		&s.Project.Partials,
		&s.Project.Views,
		&s.Project.Models,
	} {
		if *p == "" {
			continue
		}
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(abs, *p)
		}
		*p = filepath.Clean(*p)
	}

	if s.Build.ViewDegreeOfParallelism == 0 {
		s.Build.ViewDegreeOfParallelism = DefaultViewDegreeOfParallelism()
	}

	return nil
}

// ForProject returns default settings resolved under dir.
func ForProject(dir string) (*Settings, error) {
	s := Default()
	s.Project.Directory = dir
	if err := s.Resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteStarter writes a starter settings document to path. It refuses to
// overwrite an existing file.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("settings file %s already exists", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding starter settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", path, err)
		}
	}

	header := []byte("# sitewright settings\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
