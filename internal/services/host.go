// Package services wires the build components together from settings and
// runs command lists against them.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/conneroisu/sitewright/internal/classify"
	"github.com/conneroisu/sitewright/internal/commands"
	"github.com/conneroisu/sitewright/internal/config"
	"github.com/conneroisu/sitewright/internal/dirconfig"
	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/conneroisu/sitewright/internal/metrics"
	"github.com/conneroisu/sitewright/internal/models"
	"github.com/conneroisu/sitewright/internal/output"
	"github.com/conneroisu/sitewright/internal/partials"
	"github.com/conneroisu/sitewright/internal/pipeline"
	"github.com/conneroisu/sitewright/internal/processors"
	"github.com/conneroisu/sitewright/internal/rebase"
	"github.com/conneroisu/sitewright/internal/server"
	"github.com/conneroisu/sitewright/internal/sidebyside"
	"github.com/conneroisu/sitewright/internal/validation"
	"github.com/conneroisu/sitewright/internal/version"
	"github.com/conneroisu/sitewright/internal/watcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
)

// historySize bounds the command history kept for the status page
const historySize = 20

// ErrFilesFailed is returned when a view build finished with per-file
// errors. Those files were already logged.
var ErrFilesFailed = errors.New("some files failed to build")

// PreHook runs before a command. Setting t.Pre.Handled skips the command.
type PreHook func(ctx context.Context, t commands.Triple)

// PostHook runs after a command, skipped or not.
type PostHook func(ctx context.Context, t commands.Triple)

// Options supplies the collaborators that are not derived from settings.
type Options struct {
	Fs     afero.Fs
	Logger logging.Logger
	// Registry enables Prometheus metrics when set.
	Registry *prometheus.Registry
	// Processors defaults to the built-in processors.
	Processors *processors.Registry
	Runner     ProcessRunner
	// Usage prints help. A non-empty reason explains a rejected request.
	Usage func(reason string)
}

// Host owns the build components and executes commands one list at a
// time.
type Host struct {
	settings  *config.Settings
	fs        afero.Fs
	logger    logging.Logger
	recorder  metrics.Recorder
	registry  *prometheus.Registry
	resolver  *dirconfig.Resolver
	partials  *partials.Cache
	ignore    *files.IgnoreRules
	rebaser   *rebase.Rebaser
	writer    *output.Writer
	pipeline  *pipeline.ViewPipeline
	generator *commands.Generator
	runner    ProcessRunner
	allowed   map[string]bool
	usage     func(reason string)

	mu sync.Mutex

	hookMutex sync.RWMutex
	pre       []PreHook
	post      []PostHook

	statusMutex sync.RWMutex
	lastReport  *pipeline.RunReport
	history     []server.CommandSummary

	serveMutex sync.Mutex
	server     *server.Server
	watcher    *watcher.DirectoryWatcher
	background sync.WaitGroup
}

// New builds every component from settings. Settings must be resolved.
func New(settings *config.Settings, opts Options) (*Host, error) {
	if settings == nil {
		return nil, siteerrors.NewConfigError(siteerrors.ErrCodeConfigInvalid, "settings are required", nil)
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Processors == nil {
		opts.Processors = processors.Builtin()
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if opts.Registry != nil {
		recorder = metrics.NewPrometheusRecorder(opts.Registry)
	}

	fs := opts.Fs
	logger := opts.Logger
	project := settings.Project
	build := settings.Build

	resolver := dirconfig.NewResolver(fs, project.Directory, build.DirectoryConfigFile, logger)
	cache := partials.NewCache(fs, project.Partials, logger)
	sideBySide := sidebyside.New(fs, build.SideBySideExtensions...)
	ignore := files.LoadIgnoreRules(fs, project.Directory, build.IgnoreFile, build.Ignore)

	set, err := opts.Processors.Instantiate(processors.Environment{Partials: cache, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("creating processors: %w", err)
	}

	rebaser := rebase.New(project.Directory, project.Views, project.Website)
	writer := output.NewWriter(fs, project.Website, logger)

	vp, err := pipeline.New(pipeline.Options{
		Fs:      fs,
		Configs: resolver,
		Enumerator: files.NewEnumerator(fs, files.EnumeratorOptions{
			ConfigFileName: resolver.FileName(),
			PartialsDir:    project.Partials,
			WebsiteDir:     project.Website,
			SideBySide:     sideBySide,
			Ignore:         ignore,
		}),
		Injector: models.NewDefault(models.Options{
			Fs:         fs,
			SideBySide: sideBySide,
			ViewsDir:   project.Views,
			ModelsDir:  project.Models,
		}),
		Processors:  set,
		Partials:    cache,
		Rebaser:     rebaser,
		Writer:      writer,
		Marker:      build.PathToRootMarker,
		Parallelism: build.ViewDegreeOfParallelism,
		Recorder:    recorder,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	generator := commands.NewGenerator(commands.GeneratorOptions{
		Classifier: classify.New(classify.Directories{
			Content:  project.Content,
			Images:   project.Images,
			Scripts:  project.Scripts,
			Partials: project.Partials,
			Views:    project.Views,
		}),
		SideBySide: sideBySide,
		ViewsDir:   project.Views,
	})

	return &Host{
		settings:  settings,
		fs:        fs,
		logger:    logger.WithComponent("Host"),
		recorder:  recorder,
		registry:  opts.Registry,
		resolver:  resolver,
		partials:  cache,
		ignore:    ignore,
		rebaser:   rebaser,
		writer:    writer,
		pipeline:  vp,
		generator: generator,
		runner:    opts.Runner,
		allowed:   validation.AllowList(build.AllowedProcesses),
		usage:     opts.Usage,
	}, nil
}

// Generator returns the command generator
func (h *Host) Generator() *commands.Generator {
	return h.generator
}

// AddPreHook registers a hook run before every command
func (h *Host) AddPreHook(hook PreHook) {
	h.hookMutex.Lock()
	defer h.hookMutex.Unlock()
	h.pre = append(h.pre, hook)
}

// AddPostHook registers a hook run after every command
func (h *Host) AddPostHook(hook PostHook) {
	h.hookMutex.Lock()
	defer h.hookMutex.Unlock()
	h.post = append(h.post, hook)
}

// Run converts a command line request and processes the result.
func (h *Host) Run(ctx context.Context, req commands.Request) error {
	triples, err := h.generator.GetCommands(req)
	if err != nil {
		return siteerrors.NewValidationError(siteerrors.ErrCodeValidationFailed, err.Error())
	}
	return h.ProcessCommands(ctx, triples)
}

// ProcessCommands runs triples in order. Only one list runs at a time, so
// command line and watcher runs never interleave. A failed command is
// logged and the list continues, except for configuration errors, which
// stop the list and are returned.
func (h *Host) ProcessCommands(ctx context.Context, triples []commands.Triple) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hookMutex.RLock()
	pre := h.pre
	post := h.post
	h.hookMutex.RUnlock()

	for _, t := range triples {
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, hook := range pre {
			hook(ctx, t)
		}

		if !t.Pre.Handled {
			description := commands.Describe(t.Command)
			h.logger.Debug(ctx, "Running command", "command", description, "id", t.ID.String())

			start := time.Now()
			err := h.dispatch(ctx, t.Command)
			t.Post.Err = err
			t.Post.Duration = time.Since(start)

			h.recorder.IncCommand(t.Command.Kind(), err == nil)
			h.remember(t, description)

			switch {
			case err == nil:
			case errors.Is(err, ErrFilesFailed):
				h.logger.Warn(ctx, err, "Command finished with failures", "command", description)
			case siteerrors.IsConfigError(err):
				h.logger.Error(ctx, err, "Invalid configuration", "command", description)
				for _, hook := range post {
					hook(ctx, t)
				}
				return err
			default:
				h.logger.Error(ctx, err, "Command failed", "command", description)
			}
		}

		for _, hook := range post {
			hook(ctx, t)
		}
	}
	return nil
}

// LastReport returns the report of the most recent pipeline run, or nil
func (h *Host) LastReport() *pipeline.RunReport {
	h.statusMutex.RLock()
	defer h.statusMutex.RUnlock()
	return h.lastReport
}

// Status describes the host for the status page.
func (h *Host) Status() server.Status {
	h.statusMutex.RLock()
	defer h.statusMutex.RUnlock()

	history := make([]server.CommandSummary, len(h.history))
	// newest first
	for i, c := range h.history {
		history[len(h.history)-1-i] = c
	}

	return server.Status{
		Version:    version.GetShortVersion(),
		ProjectDir: h.settings.Project.Directory,
		WebsiteDir: h.settings.Project.Website,
		LastRun:    h.lastReport,
		Commands:   history,
	}
}

func (h *Host) remember(t commands.Triple, description string) {
	summary := server.CommandSummary{
		ID:          t.ID.String(),
		Description: description,
		Finished:    time.Now(),
		Duration:    t.Post.Duration,
	}
	if t.Post.Err != nil {
		summary.Err = t.Post.Err.Error()
	}

	h.statusMutex.Lock()
	defer h.statusMutex.Unlock()
	h.history = append(h.history, summary)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
}

func (h *Host) setReport(report *pipeline.RunReport) {
	h.statusMutex.Lock()
	defer h.statusMutex.Unlock()
	h.lastReport = report
}
