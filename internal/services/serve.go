package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/conneroisu/sitewright/internal/classify"
	"github.com/conneroisu/sitewright/internal/commands"
	"github.com/conneroisu/sitewright/internal/metrics"
	"github.com/conneroisu/sitewright/internal/server"
	"github.com/conneroisu/sitewright/internal/watcher"
)

// shutdownTimeout bounds how long Wait gives the server to drain
const shutdownTimeout = 5 * time.Second

// serve starts the development server in the background. A zero port means
// the configured one.
func (h *Host) serve(ctx context.Context, port int) error {
	h.serveMutex.Lock()
	defer h.serveMutex.Unlock()

	if h.server != nil {
		return fmt.Errorf("development server already running on %s", h.server.Addr())
	}
	if port == 0 {
		port = h.settings.Server.Port
	}

	opts := server.Options{
		Fs:         h.fs,
		WebsiteDir: h.settings.Project.Website,
		Host:       h.settings.Server.Host,
		Port:       port,
		Status:     h.Status,
		Logger:     h.logger,
	}
	if h.registry != nil {
		opts.Metrics = metrics.Handler(h.registry)
	}
	h.server = server.New(opts)

	srv := h.server
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		if err := srv.Start(ctx); err != nil {
			h.logger.Error(ctx, err, "Development server stopped", "address", srv.Addr())
		}
	}()
	return nil
}

// watch starts the directory watcher. Each debounced batch is turned into
// commands and run like any other command list.
func (h *Host) watch(ctx context.Context) error {
	h.serveMutex.Lock()
	defer h.serveMutex.Unlock()

	if h.watcher != nil {
		return fmt.Errorf("already watching %s", h.settings.Project.Directory)
	}

	w, err := watcher.New(watcher.Options{
		Root:       h.settings.Project.Directory,
		WebsiteDir: h.settings.Project.Website,
		Ignore:     h.ignore,
		Debounce:   h.settings.Watch.Debounce,
	}, h.logger)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.AddHandler(h.HandleBatch)

	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return err
	}
	h.watcher = w
	return nil
}

// HandleBatch rebuilds whatever a batch of file notifications touched and
// then asks connected browsers to reload. A changed directory configuration
// file drops the resolved configurations and rebuilds its directory.
func (h *Host) HandleBatch(ctx context.Context, batch []commands.FileNotification) {
	names := make([]string, 0, len(batch))
	var configDirs []commands.Command
	seen := make(map[string]struct{})
	for _, n := range batch {
		names = append(names, n.FileName)
		if !h.resolver.IsConfigFile(n.FileName) {
			continue
		}
		h.resolver.Invalidate()
		h.logger.Info(ctx, "Directory configuration changed", "file", n.FileName)
		dir := filepath.Dir(n.FileName)
		if classify.HasPathPrefix(h.settings.Project.Views, dir) {
			// an ancestor of the views directory affects every view
			dir = h.settings.Project.Views
		} else if !classify.HasPathPrefix(dir, h.settings.Project.Views) {
			continue
		}
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			configDirs = append(configDirs, commands.BuildViews{Directory: dir})
		}
	}

	triples := h.generator.GetFileCommands(batch)
	for _, c := range configDirs {
		triples = append(triples, commands.NewTriple(c))
	}
	if len(triples) == 0 {
		return
	}
	if err := h.ProcessCommands(ctx, triples); err != nil {
		// already logged; keep watching so the next save can fix it
		return
	}

	h.serveMutex.Lock()
	srv := h.server
	h.serveMutex.Unlock()
	if srv != nil {
		srv.Reload(names)
	}
}

// Wait blocks until ctx is done when the server or watcher is running, then
// stops them. It returns immediately otherwise.
func (h *Host) Wait(ctx context.Context) {
	h.serveMutex.Lock()
	running := h.server != nil || h.watcher != nil
	h.serveMutex.Unlock()
	if !running {
		return
	}

	<-ctx.Done()
	h.Close()
}

// Close stops the server and the watcher.
func (h *Host) Close() {
	h.serveMutex.Lock()
	srv, w := h.server, h.watcher
	h.serveMutex.Unlock()

	if w != nil {
		if err := w.Close(); err != nil {
			h.logger.Warn(context.Background(), err, "Closing watcher failed")
		}
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			h.logger.Warn(ctx, err, "Server shutdown failed")
		}
	}
	h.background.Wait()
}
