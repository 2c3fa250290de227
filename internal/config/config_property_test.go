//go:build property
// +build property

package config

import (
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSettingsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	dirName := gen.RegexMatch(`[a-z][a-z0-9]{0,15}`)

	// Property: every resolved directory is absolute and under the project
	properties.Property("resolve anchors directories", prop.ForAll(
		func(project, website, views string) bool {
			s := Default()
			s.Project.Directory = filepath.Join(string(filepath.Separator), project)
			s.Project.Website = website
			s.Project.Views = views
			if err := s.Resolve(); err != nil {
				return false
			}
			for _, dir := range []string{s.Project.Website, s.Project.Views, s.Project.Content, s.Project.Models} {
				if !filepath.IsAbs(dir) || !isUnder(dir, s.Project.Directory) {
					return false
				}
			}
			return true
		},
		dirName, dirName, dirName,
	))

	// Property: valid ports pass validation and out-of-range ports fail
	properties.Property("port range", prop.ForAll(
		func(port int) bool {
			s, err := ForProject("/site")
			if err != nil {
				return false
			}
			s.Server.Port = port
			valid := port >= 1 && port <= 65535
			return (s.Validate() == nil) == valid
		},
		gen.IntRange(-1000, 70000),
	))

	// Property: a source directory inside the website directory is rejected
	properties.Property("sources outside website", prop.ForAll(
		func(name string) bool {
			s, err := ForProject("/site")
			if err != nil {
				return false
			}
			s.Project.Views = filepath.Join(s.Project.Website, name)
			return s.Validate() != nil
		},
		dirName,
	))

	properties.TestingRun(t)
}
