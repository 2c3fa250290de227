// Package partials caches the text files under the partials directory and
// resolves partial and layout names against them.
package partials

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/conneroisu/sitewright/internal/files"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/spf13/afero"
)

// snapshot is an immutable view of the cache. It is replaced as a whole,
// never modified in place.
type snapshot struct {
	byPath map[string]*files.TextFile
	files  []*files.TextFile
	bad    []string
}

// Cache lazily loads every text file under the partials directory.
// Readers see either no snapshot (unloaded) or a complete one.
type Cache struct {
	fs       afero.Fs
	root     string
	resolver Resolver
	logger   logging.Logger

	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewCache creates an unloaded cache over root.
func NewCache(fs afero.Fs, root string, logger logging.Logger) *Cache {
	return &Cache{
		fs:       fs,
		root:     filepath.Clean(root),
		resolver: PathResolver{},
		logger:   logger.WithComponent("PartialCache"),
	}
}

// WithResolver replaces the name resolver
func (c *Cache) WithResolver(r Resolver) *Cache {
	c.resolver = r
	return c
}

// Root returns the partials directory
func (c *Cache) Root() string {
	return c.root
}

// Loaded reports whether Load has run since the last Flush
func (c *Cache) Loaded() bool {
	return c.current.Load() != nil
}

// Load reads the partials directory once. Later calls are no-ops until the
// next Flush. A missing directory loads as an empty cache.
func (c *Cache) Load(ctx context.Context) error {
	_, err := c.load(ctx)
	return err
}

// load returns the current snapshot, reading it first when unloaded.
func (c *Cache) load(ctx context.Context) (*snapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}

	snap, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)

	c.logger.Debug(ctx, "Loaded partials", "dir", c.root, "count", len(snap.files), "bad", len(snap.bad))
	return snap, nil
}

// Flush empties the cache and returns how many files it held. The next
// access loads again.
func (c *Cache) Flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.current.Swap(nil)
	if prev == nil {
		return 0
	}
	return len(prev.files)
}

// Count returns the number of cached files, 0 when unloaded.
func (c *Cache) Count() int {
	snap := c.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.files)
}

// Files returns a copy of the cached files in path order.
func (c *Cache) Files() []*files.TextFile {
	snap := c.current.Load()
	if snap == nil {
		return nil
	}
	return append([]*files.TextFile(nil), snap.files...)
}

// BadFiles returns the paths that were skipped because they are not text.
func (c *Cache) BadFiles() []string {
	snap := c.current.Load()
	if snap == nil {
		return nil
	}
	return append([]string(nil), snap.bad...)
}

// ResolvePartial finds the partial called name. relativeTo, when set, is the
// file asking for it; names are tried relative to its directory first.
func (c *Cache) ResolvePartial(ctx context.Context, name, relativeTo string) (*files.TextFile, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.resolver.Resolve(View{root: c.root, snap: snap}, name, relativeTo)
}

func (c *Cache) read(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{byPath: make(map[string]*files.TextFile)}

	if _, err := c.fs.Stat(c.root); err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return nil, err
	}

	err := afero.Walk(c.fs, c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			if path != c.root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		data, err := afero.ReadFile(c.fs, path)
		if err != nil || !files.IsText(data) {
			snap.bad = append(snap.bad, path)
			c.logger.Debug(ctx, "Skipping non-text partial", "file", path)
			return nil
		}

		tf := &files.TextFile{FileName: path, Contents: string(data), FileInfo: info}
		snap.byPath[pathKey(path)] = tf
		snap.files = append(snap.files, tf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(snap.files, func(i, j int) bool { return snap.files[i].FileName < snap.files[j].FileName })
	sort.Strings(snap.bad)
	return snap, nil
}

func pathKey(path string) string {
	return strings.ToLower(filepath.ToSlash(filepath.Clean(path)))
}
