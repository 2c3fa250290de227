package commands

import (
	"path/filepath"

	"github.com/conneroisu/sitewright/internal/classify"
	"github.com/conneroisu/sitewright/internal/commands/steps"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/sidebyside"
)

// ViewFilter decides whether a changed view is built on its own.
type ViewFilter func(path string) bool

// DefaultViewFilter rejects names starting with an underscore or a dot,
// such as _ViewStart.cshtml or _Layout.hbs.
func DefaultViewFilter(path string) bool {
	return !files.IsHiddenName(filepath.Base(path))
}

// Request is what the command line asked for.
type Request struct {
	Help    bool
	Clean   bool
	Rebuild bool
	// Build holds the requested steps; BuildSet is true when --build was
	// given at all.
	Build    []string
	BuildSet bool
	Serve    bool
	Watch    bool
	Port     int
	Files    []string
}

// Problem returns why the request contradicts itself, or "".
func (r Request) Problem() string {
	switch {
	case r.Watch && !r.Serve:
		return "--watch requires --serve"
	case r.Rebuild && r.Clean:
		return "--rebuild already cleans; do not combine it with --clean"
	case r.Rebuild && len(r.Files) > 0:
		return "--rebuild cannot be combined with a file list"
	case r.Rebuild && r.BuildSet:
		return "--rebuild already builds every step; do not combine it with --build"
	case !r.Clean && !r.Rebuild && !r.BuildSet && !r.Serve && len(r.Files) == 0:
		return "nothing to do"
	}
	return ""
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	Classifier *classify.Classifier
	SideBySide *sidebyside.Resolver
	ViewsDir   string
	ViewFilter ViewFilter
}

// Generator produces command triples. It does no I/O beyond side-by-side
// lookups.
type Generator struct {
	classifier *classify.Classifier
	sideBySide *sidebyside.Resolver
	viewsDir   string
	viewFilter ViewFilter
}

// NewGenerator creates a Generator
func NewGenerator(opts GeneratorOptions) *Generator {
	if opts.ViewFilter == nil {
		opts.ViewFilter = DefaultViewFilter
	}
	return &Generator{
		classifier: opts.Classifier,
		sideBySide: opts.SideBySide,
		viewsDir:   filepath.Clean(opts.ViewsDir),
		viewFilter: opts.ViewFilter,
	}
}

// GetCommands converts a command line request. A contradictory request
// yields a single Help command carrying the reason.
func (g *Generator) GetCommands(req Request) ([]Triple, error) {
	if req.Help {
		return []Triple{NewTriple(Help{})}, nil
	}
	if reason := req.Problem(); reason != "" {
		return []Triple{NewTriple(Help{Reason: reason})}, nil
	}

	var result []Triple
	if req.Clean || req.Rebuild {
		result = append(result, NewTriple(Clean{}))
	}

	switch {
	case req.Rebuild:
		build, err := g.GetBuildCommands(steps.All)
		if err != nil {
			return nil, err
		}
		result = append(result, build...)
	case req.BuildSet:
		requested := req.Build
		if len(requested) == 0 {
			requested = steps.All
		}
		build, err := g.GetBuildCommands(requested)
		if err != nil {
			return nil, err
		}
		result = append(result, build...)
	}

	if len(req.Files) > 0 {
		result = append(result, g.GetFilePathCommands(req.Files)...)
	}
	if req.Serve {
		result = append(result, NewTriple(Serve{Port: req.Port}))
	}
	if req.Watch {
		result = append(result, NewTriple(Watch{}))
	}
	return result, nil
}

// GetBuildCommands converts build step names. Adjacent content and scripts
// steps share one BuildAssets command.
func (g *Generator) GetBuildCommands(raw []string) ([]Triple, error) {
	parsed, err := steps.Normalize(raw)
	if err != nil {
		return nil, err
	}

	var cmds []Command
	for _, step := range parsed {
		switch step.Kind {
		case steps.Npm:
			cmds = append(cmds, RunProcess{Name: "npm", Args: []string{"install"}})
		case steps.NpmScript:
			cmds = append(cmds, RunProcess{Name: "npm", Args: []string{"run", step.Arg}})
		case steps.Node:
			cmds = append(cmds, RunProcess{Name: "node", Args: []string{step.Arg}})
		case steps.Content, steps.Scripts:
			assets := BuildAssets{Content: step.Kind == steps.Content, Scripts: step.Kind == steps.Scripts}
			if n := len(cmds); n > 0 {
				if prev, ok := cmds[n-1].(BuildAssets); ok {
					cmds[n-1] = BuildAssets{
						Content: prev.Content || assets.Content,
						Scripts: prev.Scripts || assets.Scripts,
					}
					continue
				}
			}
			cmds = append(cmds, assets)
		case steps.Images:
			cmds = append(cmds, BuildImages{})
		case steps.Views:
			cmds = append(cmds, BuildViews{Directory: g.viewsDir})
		}
	}

	return wrap(cmds), nil
}

// GetFilePathCommands treats every path as a build notification.
func (g *Generator) GetFilePathCommands(paths []string) []Triple {
	notes := make([]FileNotification, len(paths))
	for i, p := range paths {
		notes[i] = FileNotification{Type: BuildNotification, FileName: p}
	}
	return g.GetFileCommands(notes)
}

// GetFileCommands converts a batch of file notifications into the minimal
// command list. Content and script changes collapse into one BuildAssets,
// any partial change flushes the cache and rebuilds every view, and a
// changed side-by-side data file rebuilds its main view. Removed views
// produce nothing.
func (g *Generator) GetFileCommands(notes []FileNotification) []Triple {
	notes = Dedupe(notes)
	done := make([]bool, len(notes))
	builtViews := make(map[string]struct{})

	var cmds []Command
	for i, n := range notes {
		if done[i] {
			continue
		}
		done[i] = true

		switch g.classifier.Classify(n.FileName) {
		case classify.Content, classify.Script:
			assets := BuildAssets{}
			for j := i; j < len(notes); j++ {
				if j != i && done[j] {
					continue
				}
				switch g.classifier.Classify(notes[j].FileName) {
				case classify.Content:
					assets.Content = true
					done[j] = true
				case classify.Script:
					assets.Scripts = true
					done[j] = true
				}
			}
			cmds = append(cmds, assets)

		case classify.Image:
			if n.Type == CleanNotification {
				cmds = append(cmds, DeleteFile{Path: n.FileName})
			} else {
				cmds = append(cmds, CopyFile{Path: n.FileName})
			}

		case classify.Partial:
			for j := i + 1; j < len(notes); j++ {
				if g.classifier.Classify(notes[j].FileName) == classify.Partial {
					done[j] = true
				}
			}
			cmds = append(cmds, FlushPartials{}, BuildViews{Directory: g.viewsDir})

		case classify.View:
			if n.Type == CleanNotification {
				continue
			}
			path := n.FileName
			if g.sideBySide != nil && g.sideBySide.IsSideBySideFile(path) {
				main := g.sideBySide.GetMainFile(path)
				if main == "" {
					continue
				}
				path = main
			}
			if !g.viewFilter(path) {
				continue
			}
			key := (FileNotification{FileName: path}).Key()
			if _, ok := builtViews[key]; ok {
				continue
			}
			builtViews[key] = struct{}{}
			cmds = append(cmds, BuildView{Path: path})

		default:
			cmds = append(cmds, UnknownFile{Path: n.FileName})
		}
	}

	return wrap(cmds)
}

func wrap(cmds []Command) []Triple {
	triples := make([]Triple, len(cmds))
	for i, c := range cmds {
		triples[i] = NewTriple(c)
	}
	return triples
}
