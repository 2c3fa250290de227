package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitewright/internal/commands/steps"
	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/logging"
)

// Validate checks settings values for correctness. Every problem is
// reported, not just the first one.
func (s *Settings) Validate() error {
	vec := &siteerrors.ValidationErrorCollection{}

	validateProjectConfig(&s.Project, vec)
	validateBuildConfig(&s.Build, vec)
	validateServerConfig(&s.Server, vec)
	validateLoggingConfig(&s.Logging, vec)

	if s.Watch.Debounce < 0 {
		vec.AddField("watch.debounce", s.Watch.Debounce, "must not be negative")
	}

	return vec.ErrOrNil()
}

func validateProjectConfig(p *ProjectConfig, vec *siteerrors.ValidationErrorCollection) {
	dirs := map[string]string{
		"project.website":  p.Website,
		"project.content":  p.Content,
		"project.scripts":  p.Scripts,
		"project.images":   p.Images,
		"project.partials": p.Partials,
		"project.views":    p.Views,
	}
	for field, dir := range dirs {
		if dir == "" {
			vec.AddField(field, dir, "must not be empty")
		}
	}

	if p.Website == "" {
		return
	}

	// The website directory is wiped by --clean, so it must never be the
	// project itself or contain any source directory.
	if filepath.Clean(p.Website) == filepath.Clean(p.Directory) {
		vec.AddField("project.website", p.Website, "must not be the project directory")
	}
	for field, dir := range dirs {
		if field == "project.website" || dir == "" {
			continue
		}
		if isUnder(dir, p.Website) {
			vec.AddField(field, dir, "must not be inside the website directory")
		}
	}
}

func validateBuildConfig(b *BuildConfig, vec *siteerrors.ValidationErrorCollection) {
	if b.ViewDegreeOfParallelism < 1 || b.ViewDegreeOfParallelism > 1024 {
		vec.AddField("build.viewdop", b.ViewDegreeOfParallelism, "must be between 1 and 1024")
	}

	if strings.TrimSpace(b.PathToRootMarker) == "" {
		vec.AddField("build.path_to_root_marker", b.PathToRootMarker, "must not be empty")
	}

	if b.DirectoryConfigFile == "" || strings.ContainsAny(b.DirectoryConfigFile, `/\`) {
		vec.AddField("build.directory_config_file", b.DirectoryConfigFile, "must be a plain file name")
	}

	if _, err := steps.Normalize(b.Steps); err != nil {
		vec.AddField("build.steps", b.Steps, err.Error())
	}

	for _, ext := range b.SideBySideExtensions {
		if ext == "" || strings.Contains(ext, ".") {
			vec.AddField("build.side_by_side_extensions", ext, "must be an extension without a dot")
		}
	}
}

func validateServerConfig(s *ServerConfig, vec *siteerrors.ValidationErrorCollection) {
	if s.Port < 1 || s.Port > 65535 {
		vec.AddField("server.port", s.Port, fmt.Sprintf("port %d is not in valid range 1-65535", s.Port))
	}
	if s.Host == "" {
		vec.AddField("server.host", s.Host, "must not be empty")
	}
}

func validateLoggingConfig(l *LoggingConfig, vec *siteerrors.ValidationErrorCollection) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		vec.AddField("logging.level", l.Level, err.Error())
	}
	if l.Format != "" && l.Format != "text" && l.Format != "json" {
		vec.AddField("logging.format", l.Format, "must be text or json")
	}
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
