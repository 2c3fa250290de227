// Package dirconfig resolves the per-directory extension mappings that decide
// which processors run for a file and with which defaults.
//
// Each directory may hold a configuration file (_siteconfig.yaml by default).
// A directory without one inherits its parent's configuration, and a
// directory with one is merged over its parent: extensions the child does not
// mention are inherited, and fields the child leaves unset are backfilled
// from the parent's mapping for the same extension. Resolution stops at the
// project root, which uses its own file or the built-in default.
package dirconfig

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// ExtensionConfiguration holds the settings for one file extension.
type ExtensionConfiguration struct {
	Processors       []string
	DefaultPublish   *bool
	DefaultLayout    string
	DefaultModelName string
	DefaultExtOut    string
}

// Clone returns a deep copy
func (e ExtensionConfiguration) Clone() ExtensionConfiguration {
	clone := e
	clone.Processors = append([]string(nil), e.Processors...)
	if e.DefaultPublish != nil {
		publish := *e.DefaultPublish
		clone.DefaultPublish = &publish
	}
	return clone
}

// backfill returns e with every unset field taken from parent.
func (e ExtensionConfiguration) backfill(parent ExtensionConfiguration) ExtensionConfiguration {
	merged := e.Clone()
	if len(merged.Processors) == 0 {
		merged.Processors = append([]string(nil), parent.Processors...)
	}
	if merged.DefaultPublish == nil && parent.DefaultPublish != nil {
		publish := *parent.DefaultPublish
		merged.DefaultPublish = &publish
	}
	if merged.DefaultLayout == "" {
		merged.DefaultLayout = parent.DefaultLayout
	}
	if merged.DefaultModelName == "" {
		merged.DefaultModelName = parent.DefaultModelName
	}
	if merged.DefaultExtOut == "" {
		merged.DefaultExtOut = parent.DefaultExtOut
	}
	return merged
}

// DirectoryConfiguration maps lowercase extensions (without the dot) to
// their configuration.
type DirectoryConfiguration struct {
	// Source is the file the configuration was read from, or "" for the
	// built-in default and inherited configurations.
	Source            string
	ExtensionMappings map[string]ExtensionConfiguration
}

// Lookup returns the mapping for ext. The extension may carry a leading dot
// and any case.
func (d *DirectoryConfiguration) Lookup(ext string) (ExtensionConfiguration, bool) {
	if d == nil {
		return ExtensionConfiguration{}, false
	}
	cfg, ok := d.ExtensionMappings[NormalizeExtension(ext)]
	return cfg, ok
}

// IsMapped reports whether ext has at least one processor.
func (d *DirectoryConfiguration) IsMapped(ext string) bool {
	cfg, ok := d.Lookup(ext)
	return ok && len(cfg.Processors) > 0
}

// Extensions returns the mapped extensions in sorted order
func (d *DirectoryConfiguration) Extensions() []string {
	exts := make([]string, 0, len(d.ExtensionMappings))
	for ext := range d.ExtensionMappings {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// NormalizeExtension lowercases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

type mappingDocument struct {
	Mappings []mappingEntry `yaml:"mappings"`
}

type mappingEntry struct {
	Extensions []string `yaml:"extensions"`
	Processors []string `yaml:"processors"`
	Publish    *bool    `yaml:"publish"`
	Layout     string   `yaml:"layout"`
	Model      string   `yaml:"model"`
	ExtOut     string   `yaml:"extout"`
}

// Parse decodes a configuration document. Unknown keys are rejected. When an
// extension appears in several entries the last one wins.
func Parse(data []byte, source string) (*DirectoryConfiguration, error) {
	var doc mappingDocument

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, configError(source, "malformed directory configuration", err)
	}

	cfg := &DirectoryConfiguration{
		Source:            source,
		ExtensionMappings: make(map[string]ExtensionConfiguration),
	}

	for i, entry := range doc.Mappings {
		if len(entry.Extensions) == 0 {
			return nil, configError(source, fmt.Sprintf("mapping %d has no extensions", i+1), nil)
		}
		for _, raw := range entry.Extensions {
			ext := NormalizeExtension(raw)
			if ext == "" {
				return nil, configError(source, fmt.Sprintf("mapping %d has an empty extension", i+1), nil)
			}
			cfg.ExtensionMappings[ext] = ExtensionConfiguration{
				Processors:       append([]string(nil), entry.Processors...),
				DefaultPublish:   entry.Publish,
				DefaultLayout:    entry.Layout,
				DefaultModelName: entry.Model,
				DefaultExtOut:    NormalizeExtension(entry.ExtOut),
			}.Clone()
		}
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *DirectoryConfiguration {
	cfg, err := Parse(defaultConfig, "")
	if err != nil {
		panic(fmt.Sprintf("built-in directory configuration is invalid: %v", err))
	}
	return cfg
}

// Merge layers child over parent. Neither argument is modified.
func Merge(parent, child *DirectoryConfiguration) *DirectoryConfiguration {
	merged := &DirectoryConfiguration{
		ExtensionMappings: make(map[string]ExtensionConfiguration),
	}
	if child != nil {
		merged.Source = child.Source
	}

	if parent != nil {
		for ext, cfg := range parent.ExtensionMappings {
			merged.ExtensionMappings[ext] = cfg.Clone()
		}
	}

	if child != nil {
		for ext, cfg := range child.ExtensionMappings {
			if inherited, ok := merged.ExtensionMappings[ext]; ok {
				merged.ExtensionMappings[ext] = cfg.backfill(inherited)
				continue
			}
			merged.ExtensionMappings[ext] = cfg.Clone()
		}
	}

	return merged
}

func configError(source, msg string, cause error) *siteerrors.SiteError {
	err := siteerrors.NewConfigError(siteerrors.ErrCodeConfigInvalid, msg, cause).
		WithComponent("ConfigurationResolver")
	if source != "" {
		err.WithFile(filepath.ToSlash(source))
	}
	return err
}
