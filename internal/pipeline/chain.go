package pipeline

import (
	"context"
	"fmt"
	"strings"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
)

// transition is the decision taken after one pass of processors.
type transition int

const (
	// transitionDone ends the chain
	transitionDone transition = iota
	// transitionRerun runs the processors of the new extension
	transitionRerun
	// transitionStrip drops the current extension so the penultimate one
	// runs next, e.g. Foo.md.html continues as Foo.md
	transitionStrip
)

func (t transition) String() string {
	switch t {
	case transitionDone:
		return "done"
	case transitionRerun:
		return "rerun"
	case transitionStrip:
		return "strip"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// nextStep decides what follows a pass that started with extension before.
func nextStep(before string, file *files.PipelineFile) transition {
	if file.Extension() != before {
		return transitionRerun
	}
	if file.DefaultConfiguration.IsMapped(file.PenultimateExtension()) {
		return transitionStrip
	}
	return transitionDone
}

// applyProcessors runs the processor chain on file until nextStep says it
// is done. Seeing the same working file name twice means the configured
// processors loop.
func (p *ViewPipeline) applyProcessors(ctx context.Context, file *files.PipelineFile) error {
	visited := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state := strings.ToLower(file.WorkingFileName)
		if _, seen := visited[state]; seen {
			return siteerrors.NewPipelineError(siteerrors.ErrCodeProcessorCycle,
				fmt.Sprintf("processor chain revisits %s", file.WorkingFileName), nil).
				WithComponent("ViewPipeline").
				WithFile(file.FileName)
		}
		visited[state] = struct{}{}

		ext := file.Extension()
		if cfg, ok := file.DefaultConfiguration.Lookup(ext); ok {
			for _, name := range cfg.Processors {
				proc, err := p.processors.Get(name)
				if err != nil {
					return siteerrors.WrapPipeline(err, siteerrors.ErrCodeUnknownProcessor, "ViewPipeline", file.FileName)
				}
				if err := proc.Process(ctx, file); err != nil {
					return siteerrors.WrapPipeline(fmt.Errorf("%s processor: %w", name, err),
						siteerrors.ErrCodeProcess, "ViewPipeline", file.FileName)
				}
			}
		}

		switch nextStep(ext, file) {
		case transitionDone:
			return nil
		case transitionStrip:
			file.StripExtension()
		}
	}
}
