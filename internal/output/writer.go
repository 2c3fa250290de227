// Package output writes pipeline results into the website directory. Every
// destination is checked against the website root before anything touches
// the filesystem.
package output

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	siteerrors "github.com/conneroisu/sitewright/internal/errors"
	"github.com/conneroisu/sitewright/internal/logging"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Writer is sandboxed to one website directory.
type Writer struct {
	fs     afero.Fs
	root   string
	logger logging.Logger
}

// NewWriter creates a writer rooted at websiteDir.
func NewWriter(fs afero.Fs, websiteDir string, logger logging.Logger) *Writer {
	return &Writer{
		fs:     fs,
		root:   filepath.Clean(websiteDir),
		logger: logger.WithComponent("OutputFileWriter"),
	}
}

// Root returns the website directory
func (w *Writer) Root() string {
	return w.root
}

// Check returns a sandbox error when dest is not strictly inside the
// website directory.
func (w *Writer) Check(dest string) error {
	clean := filepath.Clean(dest)
	rel, err := filepath.Rel(w.root, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return siteerrors.NewSandboxError(dest, w.root).WithComponent("OutputFileWriter")
	}
	return nil
}

// WriteFile writes contents to dest, creating parent directories.
func (w *Writer) WriteFile(ctx context.Context, dest, contents string) error {
	if err := w.Check(dest); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.fs.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return w.ioError("creating directory", dest, err)
	}
	if err := afero.WriteFile(w.fs, dest, []byte(contents), filePerm); err != nil {
		return w.ioError("writing file", dest, err)
	}
	w.logger.Debug(ctx, "Wrote file", "file", dest, "bytes", len(contents))
	return nil
}

// CreateDirectory makes sure dest and its parents exist.
func (w *Writer) CreateDirectory(ctx context.Context, dest string) error {
	if err := w.Check(dest); err != nil {
		return err
	}
	if err := w.fs.MkdirAll(dest, dirPerm); err != nil {
		return w.ioError("creating directory", dest, err)
	}
	w.logger.Debug(ctx, "Created directory", "directory", dest)
	return nil
}

// CopyFile copies src to dest.
func (w *Writer) CopyFile(ctx context.Context, src, dest string) error {
	if err := w.Check(dest); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := w.fs.Open(src)
	if err != nil {
		return w.ioError("opening source", src, err)
	}
	defer in.Close()

	if err := w.fs.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return w.ioError("creating directory", dest, err)
	}
	out, err := w.fs.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return w.ioError("creating file", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return w.ioError("copying file", dest, err)
	}
	if err := out.Close(); err != nil {
		return w.ioError("closing file", dest, err)
	}
	w.logger.Debug(ctx, "Copied file", "file", src, "destination", dest)
	return nil
}

// CopyDirectory copies the tree under src into dest. skip, when non-nil,
// excludes a source path (and, for directories, everything below it).
// It returns the number of files copied.
func (w *Writer) CopyDirectory(ctx context.Context, src, dest string, skip func(path string, dir bool) bool) (int, error) {
	if err := w.Check(dest); err != nil {
		return 0, err
	}

	copied := 0
	err := afero.Walk(w.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != src && skip != nil && skip(path, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if err := w.CopyFile(ctx, path, filepath.Join(dest, rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	if os.IsNotExist(err) {
		return copied, nil
	}
	return copied, err
}

// DeleteFile removes dest. A missing file is not an error.
func (w *Writer) DeleteFile(ctx context.Context, dest string) error {
	if err := w.Check(dest); err != nil {
		return err
	}
	if err := w.fs.Remove(dest); err != nil && !os.IsNotExist(err) {
		return w.ioError("deleting file", dest, err)
	}
	w.logger.Debug(ctx, "Deleted file", "file", dest)
	return nil
}

// Clean removes everything inside the website directory, keeping the
// directory itself.
func (w *Writer) Clean(ctx context.Context) error {
	entries, err := afero.ReadDir(w.fs, w.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return w.ioError("reading website directory", w.root, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.root, entry.Name())
		if err := w.fs.RemoveAll(path); err != nil {
			return w.ioError("removing", path, err)
		}
	}
	w.logger.Info(ctx, "Cleaned website directory", "directory", w.root, "entries", len(entries))
	return nil
}

func (w *Writer) ioError(action, path string, err error) error {
	return siteerrors.NewIOError(siteerrors.ErrCodeWrite, action, err).
		WithComponent("OutputFileWriter").
		WithFile(path)
}
