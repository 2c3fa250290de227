// Package models injects structured data into pipeline files: front matter,
// side-by-side data files, file name defaults and named models.
package models

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/sidebyside"
	"github.com/spf13/afero"
)

// Injector merges data into a pipeline file.
type Injector interface {
	Inject(ctx context.Context, file *files.PipelineFile) error
}

// InjectorFunc adapts a function to the Injector interface
type InjectorFunc func(ctx context.Context, file *files.PipelineFile) error

// Inject calls f
func (f InjectorFunc) Inject(ctx context.Context, file *files.PipelineFile) error {
	return f(ctx, file)
}

type namedInjector struct {
	name     string
	injector Injector
}

// Composite runs its injectors in registration order and stops at the
// first failure.
type Composite struct {
	mu        sync.RWMutex
	injectors []namedInjector
}

// NewComposite creates an empty Composite
func NewComposite() *Composite {
	return &Composite{}
}

// Register appends an injector under name. Registering a name twice
// replaces the earlier injector in place.
func (c *Composite) Register(name string, injector Injector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.injectors {
		if c.injectors[i].name == name {
			c.injectors[i].injector = injector
			return
		}
	}
	c.injectors = append(c.injectors, namedInjector{name: name, injector: injector})
}

// Names returns the registered injector names in order
func (c *Composite) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.injectors))
	for _, ni := range c.injectors {
		names = append(names, ni.name)
	}
	return names
}

// Inject implements Injector
func (c *Composite) Inject(ctx context.Context, file *files.PipelineFile) error {
	c.mu.RLock()
	injectors := append([]namedInjector(nil), c.injectors...)
	c.mu.RUnlock()

	for _, ni := range injectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ni.injector.Inject(ctx, file); err != nil {
			return fmt.Errorf("%s injector: %w", ni.name, err)
		}
	}
	return nil
}

// Options configures the built-in injector set.
type Options struct {
	Fs         afero.Fs
	SideBySide *sidebyside.Resolver
	ViewsDir   string
	ModelsDir  string
}

// NewDefault returns the built-in injectors in the order they run:
// side-by-side files, then front matter (which overrides them), then file
// name defaults, then the named model chosen by any of the above.
func NewDefault(opts Options) *Composite {
	if opts.SideBySide == nil {
		opts.SideBySide = sidebyside.New(opts.Fs)
	}

	c := NewComposite()
	c.Register("sidebyside", NewSideBySide(opts.Fs, opts.SideBySide))
	c.Register("frontmatter-yaml", YAMLFrontMatter())
	c.Register("frontmatter-json", JSONFrontMatter())
	c.Register("frontmatter-toml", TOMLFrontMatter())
	c.Register("filename", FileName{Root: opts.ViewsDir})
	c.Register("namedmodel", NewNamedModel(opts.Fs, opts.ModelsDir))
	return c
}
