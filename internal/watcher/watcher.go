// Package watcher turns filesystem events under the project directory into
// debounced batches of file notifications.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sitewright/internal/classify"
	"github.com/conneroisu/sitewright/internal/commands"
	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// ChangeEvent is one filesystem change.
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Notification converts the event. Deleted and renamed paths need their
// output removed; everything else needs building.
func (e ChangeEvent) Notification() commands.FileNotification {
	kind := commands.BuildNotification
	if e.Type == EventTypeDeleted || e.Type == EventTypeRenamed {
		kind = commands.CleanNotification
	}
	return commands.FileNotification{Type: kind, FileName: e.Path}
}

// FileFilter determines if a path is reported
type FileFilter func(path string) bool

// BatchHandler receives each debounced batch
type BatchHandler func(ctx context.Context, batch []commands.FileNotification)

// Options configures a DirectoryWatcher.
type Options struct {
	Root       string
	WebsiteDir string
	Ignore     *files.IgnoreRules
	Debounce   time.Duration
}

// DirectoryWatcher watches a project tree recursively.
type DirectoryWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	opts      Options
	filters   []FileFilter
	handlers  []BatchHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// New creates a DirectoryWatcher. Nothing is watched until Start.
func New(opts Options, logger logging.Logger) (*DirectoryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	opts.Root = filepath.Clean(opts.Root)
	if opts.WebsiteDir != "" {
		opts.WebsiteDir = filepath.Clean(opts.WebsiteDir)
	}

	dw := &DirectoryWatcher{
		watcher:   w,
		debouncer: NewDebouncer(opts.Debounce),
		opts:      opts,
		logger:    logger.WithComponent("DirectoryWatcher"),
	}
	dw.filters = []FileFilter{NoEditorFilter, dw.outsideWebsite, dw.notIgnored}
	return dw, nil
}

// AddFilter adds a file filter
func (dw *DirectoryWatcher) AddFilter(filter FileFilter) {
	dw.mutex.Lock()
	defer dw.mutex.Unlock()
	dw.filters = append(dw.filters, filter)
}

// AddHandler adds a batch handler
func (dw *DirectoryWatcher) AddHandler(handler BatchHandler) {
	dw.mutex.Lock()
	defer dw.mutex.Unlock()
	dw.handlers = append(dw.handlers, handler)
}

// Start watches the root recursively and delivers batches until ctx is
// done.
func (dw *DirectoryWatcher) Start(ctx context.Context) error {
	if err := dw.addRecursive(dw.opts.Root, nil); err != nil {
		return fmt.Errorf("watching %s: %w", dw.opts.Root, err)
	}

	go dw.debouncer.Run(ctx)
	go dw.processBatches(ctx)
	go dw.watchLoop(ctx)

	dw.logger.Info(ctx, "Watching for changes", "directory", dw.opts.Root, "debounce", dw.debouncer.delay)
	return nil
}

// Close stops the underlying watcher
func (dw *DirectoryWatcher) Close() error {
	dw.debouncer.Stop()
	return dw.watcher.Close()
}

// addRecursive watches root and every directory below it. onFile, when
// non-nil, is called for each file found on the way.
func (dw *DirectoryWatcher) addRecursive(root string, onFile func(path string)) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			if onFile != nil {
				onFile(path)
			}
			return nil
		}
		if path != root && dw.skipDir(path) {
			return filepath.SkipDir
		}
		return dw.watcher.Add(path)
	})
}

func (dw *DirectoryWatcher) skipDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	if dw.opts.WebsiteDir != "" && classify.HasPathPrefix(path, dw.opts.WebsiteDir) {
		return true
	}
	return dw.opts.Ignore.MatchesDir(path)
}

func (dw *DirectoryWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (dw *DirectoryWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !dw.skipDir(event.Name) {
				// a copied or checked out tree arrives with its files already in it
				err := dw.addRecursive(event.Name, func(path string) {
					if dw.accept(path) {
						dw.queue(ctx, ChangeEvent{Type: EventTypeCreated, Path: path})
					}
				})
				if err != nil {
					dw.logger.Warn(ctx, err, "Could not watch new directory", "directory", event.Name)
				}
			}
			return
		}
	}

	changeEvent, ok := convert(event)
	if !ok || !dw.accept(event.Name) {
		return
	}
	dw.queue(ctx, changeEvent)
}

func (dw *DirectoryWatcher) queue(ctx context.Context, event ChangeEvent) {
	if !dw.debouncer.Add(event) {
		dw.logger.Warn(ctx, nil, "Change queue full, dropping event",
			"file", event.Path, "event", event.Type.String())
	}
}

func convert(event fsnotify.Event) (ChangeEvent, bool) {
	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		// chmod only
		return ChangeEvent{}, false
	}
	return ChangeEvent{Type: eventType, Path: event.Name}, true
}

func (dw *DirectoryWatcher) accept(path string) bool {
	dw.mutex.RLock()
	filters := dw.filters
	dw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

func (dw *DirectoryWatcher) processBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-dw.debouncer.Output():
			batch := make([]commands.FileNotification, len(events))
			for i, e := range events {
				batch[i] = e.Notification()
			}

			dw.mutex.RLock()
			handlers := dw.handlers
			dw.mutex.RUnlock()

			dw.logger.Debug(ctx, "Delivering change batch", "files", len(batch))
			for _, handler := range handlers {
				handler(ctx, batch)
			}
		}
	}
}

func (dw *DirectoryWatcher) outsideWebsite(path string) bool {
	return dw.opts.WebsiteDir == "" || !classify.HasPathPrefix(filepath.Clean(path), dw.opts.WebsiteDir)
}

func (dw *DirectoryWatcher) notIgnored(path string) bool {
	return !dw.opts.Ignore.Matches(path)
}

// NoEditorFilter drops editor swap and backup files and anything inside a
// dot directory such as .git.
func NoEditorFilter(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".swp", ".swx", ".tmp":
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}
