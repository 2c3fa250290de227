// Package pipeline implements the view pipeline: a staged dataflow that
// enumerates source files, copies unmapped ones, and loads, injects,
// processes and publishes mapped ones into the website directory.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/sitewright/internal/dirconfig"
	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/conneroisu/sitewright/internal/metrics"
	"github.com/conneroisu/sitewright/internal/models"
	"github.com/conneroisu/sitewright/internal/output"
	"github.com/conneroisu/sitewright/internal/partials"
	"github.com/conneroisu/sitewright/internal/processors"
	"github.com/conneroisu/sitewright/internal/rebase"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Stage names used in logs, metrics and the run report.
const (
	StageEnumerate = "enumerate"
	StageCopy      = "copy"
	StageLoad      = "load"
	StageInject    = "inject"
	StageProcess   = "process"
	StageWrite     = "write"
	StageRun       = "run"
)

// ConfigurationSource is the part of the directory configuration resolver
// the pipeline needs.
type ConfigurationSource interface {
	GetConfiguration(path string) (*dirconfig.DirectoryConfiguration, error)
	IsMappedExtension(file string) (bool, error)
}

// Options wires a ViewPipeline.
type Options struct {
	Fs         afero.Fs
	Configs    ConfigurationSource
	Enumerator *files.Enumerator
	Injector   models.Injector
	Processors *processors.Set
	Partials   *partials.Cache
	Rebaser    *rebase.Rebaser
	Writer     *output.Writer
	// Marker is rewritten to the relative path back to the website root.
	Marker string
	// Parallelism bounds the processor stage. Zero means 2*NumCPU.
	Parallelism int
	Recorder    metrics.Recorder
	Logger      logging.Logger
}

// ViewPipeline runs one pipeline at a time.
type ViewPipeline struct {
	fs          afero.Fs
	configs     ConfigurationSource
	enumerator  *files.Enumerator
	loader      *files.Loader
	injector    models.Injector
	processors  *processors.Set
	partials    *partials.Cache
	rebaser     *rebase.Rebaser
	writer      *output.Writer
	marker      string
	parallelism int
	recorder    metrics.Recorder
	logger      logging.Logger

	runMu sync.Mutex
}

// New validates opts and creates a ViewPipeline.
func New(opts Options) (*ViewPipeline, error) {
	switch {
	case opts.Fs == nil:
		return nil, fmt.Errorf("pipeline: filesystem is required")
	case opts.Configs == nil:
		return nil, fmt.Errorf("pipeline: configuration source is required")
	case opts.Enumerator == nil:
		return nil, fmt.Errorf("pipeline: enumerator is required")
	case opts.Processors == nil:
		return nil, fmt.Errorf("pipeline: processors are required")
	case opts.Rebaser == nil || opts.Writer == nil:
		return nil, fmt.Errorf("pipeline: rebaser and writer are required")
	}

	if opts.Injector == nil {
		opts.Injector = models.NewComposite()
	}
	if opts.Marker == "" {
		opts.Marker = rebase.DefaultMarker
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2 * runtime.NumCPU()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	return &ViewPipeline{
		fs:          opts.Fs,
		configs:     opts.Configs,
		enumerator:  opts.Enumerator,
		loader:      files.NewLoader(opts.Fs, opts.Configs),
		injector:    opts.Injector,
		processors:  opts.Processors,
		partials:    opts.Partials,
		rebaser:     opts.Rebaser,
		writer:      opts.Writer,
		marker:      opts.Marker,
		parallelism: opts.Parallelism,
		recorder:    opts.Recorder,
		logger:      opts.Logger.WithComponent("ViewPipeline"),
	}, nil
}

// RunReport summarizes one pipeline run. Paths are destinations in the
// website directory, except Skipped which holds source paths.
type RunReport struct {
	RunID    uuid.UUID
	Input    string
	Started  time.Time
	Duration time.Duration
	Written  []string
	Copied   []string
	Skipped  []string
	Errors   []siteerrors.StageError
}

// ErrorCount returns the number of failed files
func (r *RunReport) ErrorCount() int {
	return len(r.Errors)
}

// ErrorsByStage counts errors per stage
func (r *RunReport) ErrorsByStage() map[string]int {
	counts := make(map[string]int)
	for _, e := range r.Errors {
		counts[e.Stage]++
	}
	return counts
}

// ProcessFile runs the pipeline for a single source file.
func (p *ViewPipeline) ProcessFile(ctx context.Context, path string) *RunReport {
	return p.run(ctx, path, func(ctx context.Context) ([]string, error) {
		return []string{path}, nil
	})
}

// ProcessDirectory runs the pipeline for every view file under dir.
func (p *ViewPipeline) ProcessDirectory(ctx context.Context, dir string) *RunReport {
	return p.run(ctx, dir, func(ctx context.Context) ([]string, error) {
		return p.enumerator.ViewFiles(ctx, dir)
	})
}

// run serializes pipeline runs and turns panics and pipeline-level
// failures into log lines and report entries. It always returns a report.
func (p *ViewPipeline) run(ctx context.Context, input string, source func(context.Context) ([]string, error)) (report *RunReport) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	report = &RunReport{RunID: uuid.New(), Input: input, Started: time.Now()}
	logger := p.logger.With("run_id", report.RunID.String())
	collector := siteerrors.NewErrorCollector()

	defer func() {
		if r := recover(); r != nil {
			err := siteerrors.NewInternalError(siteerrors.ErrCodeInternalError,
				fmt.Sprintf("pipeline panic: %v", r), nil).WithComponent("ViewPipeline")
			logger.Error(ctx, err, "Pipeline run failed", "input", input, "stack", string(debug.Stack()))
			collector.Add(StageRun, input, err)
		}
		report.Errors = collector.GetErrors()
		report.Duration = time.Since(report.Started)
		p.recorder.ObserveRunDuration(report.Duration)
		sort.Strings(report.Written)
		sort.Strings(report.Copied)
		sort.Strings(report.Skipped)

		logger.Info(ctx, "Pipeline run finished",
			"input", input,
			"written", len(report.Written),
			"copied", len(report.Copied),
			"skipped", len(report.Skipped),
			"errors", len(report.Errors),
			"duration", report.Duration)
	}()

	if p.partials != nil {
		if err := p.partials.Load(ctx); err != nil {
			logger.Error(ctx, err, "Loading partials failed", "directory", p.partials.Root())
			collector.Add(StageRun, p.partials.Root(), err)
			return report
		}
		p.recorder.SetPartials(p.partials.Count())
	}

	r := &runState{
		pipeline:  p,
		report:    report,
		collector: collector,
		logger:    logger,
	}
	r.execute(ctx, input, source)
	return report
}
