package dirconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/sitewright/internal/classify"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/spf13/afero"
)

// DefaultFileName is the per-directory configuration file name.
const DefaultFileName = "_siteconfig.yaml"

// Resolver resolves and caches the configuration of every directory under
// the project root. A single mutex guards the cache for the whole of a
// resolution, so concurrent pipeline stages never observe a partially
// built chain.
type Resolver struct {
	fs       afero.Fs
	root     string
	fileName string
	logger   logging.Logger

	mu    sync.Mutex
	cache map[string]*DirectoryConfiguration
}

// NewResolver creates a Resolver rooted at the project directory.
func NewResolver(fs afero.Fs, root, fileName string, logger logging.Logger) *Resolver {
	if fileName == "" {
		fileName = DefaultFileName
	}
	return &Resolver{
		fs:       fs,
		root:     filepath.Clean(root),
		fileName: fileName,
		logger:   logger.WithComponent("ConfigurationResolver"),
		cache:    make(map[string]*DirectoryConfiguration),
	}
}

// FileName returns the configuration file name the resolver looks for
func (r *Resolver) FileName() string {
	return r.fileName
}

// GetConfiguration returns the resolved configuration for path, which may be
// a file or a directory. Paths outside the project root resolve to the root
// configuration.
func (r *Resolver) GetConfiguration(path string) (*DirectoryConfiguration, error) {
	dir := filepath.Clean(path)
	if info, err := r.fs.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(dir)
}

// IsMappedExtension reports whether any extension of file has processors in
// the configuration of its directory. Foo.md.html is mapped when either html
// or md is.
func (r *Resolver) IsMappedExtension(file string) (bool, error) {
	exts := Extensions(filepath.Base(file))
	if len(exts) == 0 {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, err := r.resolveLocked(filepath.Clean(filepath.Dir(file)))
	if err != nil {
		return false, err
	}
	for _, ext := range exts {
		if cfg.IsMapped(ext) {
			return true, nil
		}
	}
	return false, nil
}

// Extensions returns the extensions of name from last to first, without
// dots: Foo.md.html gives html, md. A leading dot does not start an
// extension.
func Extensions(name string) []string {
	var exts []string
	for {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		if ext == "" || stem == "" {
			return exts
		}
		if norm := NormalizeExtension(ext); norm != "" {
			exts = append(exts, norm)
		}
		name = stem
	}
}

// IsMapped reports whether ext has processors in the configuration of dir.
func (r *Resolver) IsMapped(dir, ext string) (bool, error) {
	if NormalizeExtension(ext) == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, err := r.resolveLocked(filepath.Clean(dir))
	if err != nil {
		return false, err
	}
	return cfg.IsMapped(ext), nil
}

// Invalidate drops every cached configuration.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*DirectoryConfiguration)
}

// IsConfigFile reports whether path names a directory configuration file
func (r *Resolver) IsConfigFile(path string) bool {
	return filepath.Base(path) == r.fileName
}

func (r *Resolver) resolveLocked(dir string) (*DirectoryConfiguration, error) {
	if !classify.HasPathPrefix(dir, r.root) {
		dir = r.root
	}

	if cfg, ok := r.cache[dir]; ok {
		return cfg, nil
	}

	if dir == r.root || filepath.Dir(dir) == dir {
		cfg, err := r.load(dir)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			cfg = Default()
		}
		r.cache[dir] = cfg
		return cfg, nil
	}

	parent, err := r.resolveLocked(filepath.Dir(dir))
	if err != nil {
		return nil, err
	}

	local, err := r.load(dir)
	if err != nil {
		return nil, err
	}

	resolved := parent
	if local != nil {
		resolved = Merge(parent, local)
	}
	r.cache[dir] = resolved
	return resolved, nil
}

// load reads the configuration file in dir. It returns nil without error
// when the directory has none.
func (r *Resolver) load(dir string) (*DirectoryConfiguration, error) {
	path := filepath.Join(dir, r.fileName)
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, configError(path, "reading directory configuration", err)
	}

	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	r.logger.Debug(context.Background(), "Loaded directory configuration",
		"file", path, "extensions", len(cfg.ExtensionMappings))
	return cfg, nil
}
