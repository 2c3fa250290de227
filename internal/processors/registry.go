// Package processors holds the content transformations the view pipeline
// applies per extension, and the registry that builds them by name.
package processors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
)

// Processor transforms a pipeline file. It may rewrite Contents and change
// the extension of WorkingFileName.
type Processor interface {
	Process(ctx context.Context, file *files.PipelineFile) error
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc func(ctx context.Context, file *files.PipelineFile) error

// Process calls f
func (f ProcessorFunc) Process(ctx context.Context, file *files.PipelineFile) error {
	return f(ctx, file)
}

// PartialSource resolves partial and layout names.
type PartialSource interface {
	ResolvePartial(ctx context.Context, name, relativeTo string) (*files.TextFile, error)
}

// Environment is what factories get to build a processor.
type Environment struct {
	Partials PartialSource
	Logger   logging.Logger
}

// Factory builds a processor.
type Factory func(env Environment) (Processor, error)

// Registry maps processor names, as used in directory configuration, to
// factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Builtin returns a registry holding markdown, template, layout and
// minify-whitespace.
func Builtin() *Registry {
	r := NewRegistry()
	r.MustRegister(MarkdownName, NewMarkdown)
	r.MustRegister(TemplateName, NewTemplate)
	r.MustRegister(LayoutName, NewLayout)
	r.MustRegister(MinifyWhitespaceName, NewMinifyWhitespace)
	return r
}

// Register adds a factory. Names must be unique.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("processor registration needs a name and a factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("processor %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register that panics on error
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered names sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate builds every registered processor for env.
func (r *Registry) Instantiate(env Environment) (*Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := &Set{processors: make(map[string]Processor, len(r.factories))}
	for name, factory := range r.factories {
		p, err := factory(env)
		if err != nil {
			return nil, fmt.Errorf("building processor %s: %w", name, err)
		}
		set.processors[name] = p
	}
	return set, nil
}

// Set is a group of built processors. It is read-only and safe for
// concurrent use.
type Set struct {
	processors map[string]Processor
}

// Get returns the processor called name.
func (s *Set) Get(name string) (Processor, error) {
	p, ok := s.processors[name]
	if !ok {
		return nil, siteerrors.NewPipelineError(siteerrors.ErrCodeUnknownProcessor,
			fmt.Sprintf("unknown processor %q", name), nil)
	}
	return p, nil
}
