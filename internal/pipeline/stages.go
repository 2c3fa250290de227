package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/conneroisu/sitewright/internal/metrics"
	"github.com/conneroisu/sitewright/internal/rebase"
)

// item is the payload that travels between stages. A stage that fails
// records err and routes the item to its error sink.
type item struct {
	path   string
	mapped bool
	file   *files.PipelineFile
	dest   string
	err    error
}

// runState holds what one run's stages share.
type runState struct {
	pipeline  *ViewPipeline
	report    *RunReport
	collector *siteerrors.ErrorCollector
	logger    logging.Logger

	mu sync.Mutex
}

// execute wires the stages and blocks until every item reached a terminal
// stage or an error sink.
func (r *runState) execute(ctx context.Context, input string, source func(context.Context) ([]string, error)) {
	var sinks sync.WaitGroup

	enumerated, enumErrs := r.enumerate(ctx, input, source)
	r.sink(ctx, &sinks, StageEnumerate, enumErrs)

	mapped, unmapped := split(enumerated)

	copied, copyErrs := stage(ctx, unmapped, 0, r.copy)
	r.sink(ctx, &sinks, StageCopy, copyErrs)

	loaded, loadErrs := stage(ctx, mapped, 0, r.load)
	r.sink(ctx, &sinks, StageLoad, loadErrs)

	injected, injectErrs := stage(ctx, loaded, 0, r.inject)
	r.sink(ctx, &sinks, StageInject, injectErrs)

	processed, processErrs := stage(ctx, injected, r.pipeline.parallelism, r.process)
	r.sink(ctx, &sinks, StageProcess, processErrs)

	published, publishErrs := stage(ctx, processed, 0, r.publish)
	r.sink(ctx, &sinks, StageWrite, publishErrs)

	drain(&sinks, copied)
	drain(&sinks, published)
	sinks.Wait()
}

// enumerate expands the input and tags every path as mapped or not.
func (r *runState) enumerate(ctx context.Context, input string, source func(context.Context) ([]string, error)) (<-chan *item, <-chan *item) {
	out := make(chan *item)
	errs := make(chan *item)

	go func() {
		defer close(out)
		defer close(errs)

		paths, err := source(ctx)
		if err != nil {
			errs <- &item{path: input, err: siteerrors.NewPipelineError(siteerrors.ErrCodeEnumerate,
				"enumerating input", err).WithComponent("ViewPipeline").WithFile(input)}
			return
		}

		for _, path := range paths {
			if ctx.Err() != nil {
				return
			}
			it := &item{path: path}
			mapped, err := r.pipeline.configs.IsMappedExtension(path)
			if err != nil {
				it.err = err
				errs <- it
				continue
			}
			it.mapped = mapped
			out <- it
		}
	}()

	return out, errs
}

// split routes mapped items to the load stage and the rest to the copy
// fast path.
func split(in <-chan *item) (<-chan *item, <-chan *item) {
	mapped := make(chan *item)
	unmapped := make(chan *item)

	go func() {
		defer close(mapped)
		defer close(unmapped)
		for it := range in {
			if it.mapped {
				mapped <- it
			} else {
				unmapped <- it
			}
		}
	}()

	return mapped, unmapped
}

// stage applies fn to every item from in and routes it to out or errs.
// With workers > 0 that many goroutines share the input, otherwise each
// item gets its own goroutine. Both outputs close after every item has been
// routed. A panic in fn fails only that item.
func stage(ctx context.Context, in <-chan *item, workers int, fn func(context.Context, *item) error) (<-chan *item, <-chan *item) {
	out := make(chan *item)
	errs := make(chan *item)

	handle := func(it *item) {
		if err := protect(ctx, it, fn); err != nil {
			it.err = err
			errs <- it
			return
		}
		out <- it
	}

	go func() {
		var wg sync.WaitGroup
		if workers > 0 {
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for it := range in {
						handle(it)
					}
				}()
			}
		} else {
			for it := range in {
				wg.Add(1)
				go func(it *item) {
					defer wg.Done()
					handle(it)
				}(it)
			}
		}
		wg.Wait()
		close(out)
		close(errs)
	}()

	return out, errs
}

func protect(ctx context.Context, it *item, fn func(context.Context, *item) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = siteerrors.NewInternalError(siteerrors.ErrCodeInternalError,
				fmt.Sprintf("panic: %v", r), nil).WithFile(it.path)
		}
	}()
	return fn(ctx, it)
}

// sink records every failed item of a stage.
func (r *runState) sink(ctx context.Context, wg *sync.WaitGroup, stageName string, errs <-chan *item) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for it := range errs {
			r.collector.Add(stageName, it.path, it.err)
			r.pipeline.recorder.IncFileResult(stageName, metrics.ResultFailed)
			r.logger.Error(ctx, it.err, "Pipeline stage failed",
				"stage", stageName, "file", it.path)
		}
	}()
}

// drain consumes a terminal stage's successful items
func drain(wg *sync.WaitGroup, in <-chan *item) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range in {
		}
	}()
}

func (r *runState) copy(ctx context.Context, it *item) error {
	it.dest = r.pipeline.rebaser.ViewDestination(it.path)
	if err := r.pipeline.writer.CopyFile(ctx, it.path, it.dest); err != nil {
		return err
	}
	r.record(&r.report.Copied, it.dest)
	r.pipeline.recorder.IncFileResult(StageCopy, metrics.ResultCopied)
	return nil
}

func (r *runState) load(ctx context.Context, it *item) error {
	file, err := r.pipeline.loader.Load(ctx, it.path)
	if err != nil {
		return siteerrors.WrapPipeline(err, siteerrors.ErrCodeLoad, "PipelineFileLoader", it.path)
	}
	it.file = file
	return nil
}

func (r *runState) inject(ctx context.Context, it *item) error {
	if err := r.pipeline.injector.Inject(ctx, it.file); err != nil {
		return siteerrors.WrapPipeline(err, siteerrors.ErrCodeInject, "ModelInjector", it.path)
	}
	return nil
}

func (r *runState) process(ctx context.Context, it *item) error {
	start := time.Now()
	if err := r.pipeline.applyProcessors(ctx, it.file); err != nil {
		return err
	}
	r.pipeline.recorder.ObserveFileDuration(time.Since(start))

	it.dest = r.pipeline.rebaser.ViewDestination(it.file.WorkingFileName)
	depth := r.pipeline.rebaser.Depth(it.dest)
	it.file.Contents = rebase.RewritePathToRoot(it.file.Contents, depth, r.pipeline.marker)
	return nil
}

func (r *runState) publish(ctx context.Context, it *item) error {
	if !it.file.Publish() {
		r.record(&r.report.Skipped, it.path)
		r.pipeline.recorder.IncFileResult(StageWrite, metrics.ResultSkipped)
		r.logger.Debug(ctx, "Skipping unpublished file", "file", it.path)
		return nil
	}
	if err := r.pipeline.writer.WriteFile(ctx, it.dest, it.file.Contents); err != nil {
		return err
	}
	r.record(&r.report.Written, it.dest)
	r.pipeline.recorder.IncFileResult(StageWrite, metrics.ResultWritten)
	return nil
}

func (r *runState) record(list *[]string, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*list = append(*list, path)
}
