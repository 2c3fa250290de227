package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitewright/internal/commands"
	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/pipeline"
	"github.com/conneroisu/sitewright/internal/validation"
)

func (h *Host) dispatch(ctx context.Context, c commands.Command) error {
	switch cmd := c.(type) {
	case commands.Help:
		h.help(ctx, cmd.Reason)
		return nil
	case commands.Clean:
		return h.writer.Clean(ctx)
	case commands.CreateDirectory:
		return h.writer.CreateDirectory(ctx, h.rebaser.AssetDestination(cmd.Path))
	case commands.DeleteFile:
		return h.writer.DeleteFile(ctx, h.rebaser.AssetDestination(cmd.Path))
	case commands.CopyFile:
		return h.writer.CopyFile(ctx, cmd.Path, h.rebaser.AssetDestination(cmd.Path))
	case commands.RunProcess:
		return h.runProcess(ctx, cmd)
	case commands.BuildAssets:
		return h.buildAssets(ctx, cmd)
	case commands.BuildImages:
		return h.copyTree(ctx, h.settings.Project.Images)
	case commands.BuildView:
		return h.buildViews(ctx, cmd.Path, h.pipeline.ProcessFile)
	case commands.BuildViews:
		return h.buildViews(ctx, cmd.Directory, h.pipeline.ProcessDirectory)
	case commands.FlushPartials:
		n := h.partials.Flush()
		h.logger.Debug(ctx, "Flushed partials", "count", n)
		return nil
	case commands.UnknownFile:
		h.logger.Info(ctx, "No handler for changed file", "file", cmd.Path)
		return nil
	case commands.Serve:
		return h.serve(ctx, cmd.Port)
	case commands.Watch:
		return h.watch(ctx)
	default:
		return siteerrors.NewInternalError(siteerrors.ErrCodeInternalError,
			fmt.Sprintf("no handler for command %s", c.Kind()), nil)
	}
}

func (h *Host) help(ctx context.Context, reason string) {
	if reason != "" {
		h.logger.Warn(ctx, nil, "Request rejected", "reason", reason)
	}
	if h.usage != nil {
		h.usage(reason)
	}
}

func (h *Host) runProcess(ctx context.Context, cmd commands.RunProcess) error {
	if err := validation.ValidateProcess(cmd.Name, cmd.Args, h.allowed); err != nil {
		return siteerrors.NewValidationError(siteerrors.ErrCodeCommandRejected, err.Error()).
			WithComponent("Host").
			WithContext("command", commands.Describe(cmd))
	}

	dir := h.settings.Project.Directory
	h.logger.Info(ctx, "Running process", "command", cmd.Name, "args", strings.Join(cmd.Args, " "), "directory", dir)
	out, err := h.runner.Run(ctx, dir, cmd.Name, cmd.Args...)
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			h.logger.Debug(ctx, line, "command", cmd.Name)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return siteerrors.NewIOError(siteerrors.ErrCodeRunProcess,
			fmt.Sprintf("%s failed", commands.Describe(cmd)), err).WithComponent("Host")
	}
	return nil
}

func (h *Host) buildAssets(ctx context.Context, cmd commands.BuildAssets) error {
	if cmd.Content {
		if err := h.copyTree(ctx, h.settings.Project.Content); err != nil {
			return err
		}
	}
	if cmd.Scripts {
		if err := h.copyTree(ctx, h.settings.Project.Scripts); err != nil {
			return err
		}
	}
	return nil
}

// copyTree mirrors a source directory into the website, leaving out
// ignored paths and directory configuration files.
func (h *Host) copyTree(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}
	configName := h.resolver.FileName()
	n, err := h.writer.CopyDirectory(ctx, dir, h.rebaser.AssetDestination(dir), func(path string, isDir bool) bool {
		if isDir {
			return h.ignore.MatchesDir(path)
		}
		return h.ignore.Matches(path) || strings.EqualFold(filepath.Base(path), configName)
	})
	if err != nil {
		return err
	}
	h.logger.Info(ctx, "Copied directory", "directory", dir, "files", n)
	return nil
}

// buildViews runs the pipeline and turns its report into an error. The
// configuration of target is resolved first so that a malformed config
// file stops the command list.
func (h *Host) buildViews(ctx context.Context, target string, run func(context.Context, string) *pipeline.RunReport) error {
	if _, err := h.resolver.GetConfiguration(target); err != nil && siteerrors.IsConfigError(err) {
		return err
	}

	report := run(ctx, target)
	h.setReport(report)

	for _, se := range report.Errors {
		if siteerrors.IsConfigError(se.Err) {
			return se.Err
		}
	}
	if n := report.ErrorCount(); n > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFilesFailed, n, n+len(report.Written)+len(report.Copied)+len(report.Skipped))
	}
	return nil
}
