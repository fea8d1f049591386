package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Writer streams entries into a single zip file. Entry names are unique: adding
// a name twice is a no-op that reports false. A Writer is not safe for
// concurrent use.
type Writer struct {
	path   string
	file   *os.File
	zw     *zip.Writer
	level  int
	names  map[string]struct{}
	done   bool
	closed bool
}

type Option func(*Writer)

// WithCompressionLevel sets the deflate level. flate.NoCompression stores
// entries uncompressed.
func WithCompressionLevel(level int) Option {
	return func(w *Writer) {
		w.level = level
	}
}

// Create truncates or creates the file at path.
func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		path:  path,
		file:  f,
		zw:    zip.NewWriter(f),
		level: flate.DefaultCompression,
		names: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	level := w.level
	w.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return w, nil
}

func (w *Writer) Path() string {
	return w.path
}

// Has reports whether an entry with this name was already written.
func (w *Writer) Has(name string) bool {
	_, ok := w.names[name]
	return ok
}

// PutFile adds the file at src under name. Directories are added depth first,
// each directory entry before its children.
func (w *Writer) PutFile(name, src string) (bool, error) {
	info, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return w.putDirectory(name, src)
	}

	f, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return w.PutReader(name, f)
}

func (w *Writer) PutBytes(name string, b []byte) (bool, error) {
	if w.Has(name) {
		return false, nil
	}
	entry, err := w.create(name)
	if err != nil {
		return false, err
	}
	if _, err := entry.Write(b); err != nil {
		return false, fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	w.names[name] = struct{}{}
	return true, nil
}

func (w *Writer) PutReader(name string, r io.Reader) (bool, error) {
	if w.Has(name) {
		return false, nil
	}
	entry, err := w.create(name)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(entry, r); err != nil {
		return false, fmt.Errorf("failed to write entry %s: %w", name, err)
	}
	w.names[name] = struct{}{}
	return true, nil
}

func (w *Writer) putDirectory(name, src string) (bool, error) {
	dirName := path.Clean(name) + "/"
	if w.Has(dirName) {
		return false, nil
	}
	if _, err := w.zw.CreateHeader(&zip.FileHeader{Name: dirName, Method: zip.Store, Modified: time.Now()}); err != nil {
		return false, err
	}
	w.names[dirName] = struct{}{}

	children, err := os.ReadDir(src)
	if err != nil {
		return true, err
	}
	for _, child := range children {
		if _, err := w.PutFile(path.Join(name, child.Name()), filepath.Join(src, child.Name())); err != nil {
			return true, err
		}
	}
	return true, nil
}

// CopyEntry copies an entry of another archive into this one as is, without
// decompressing it.
func (w *Writer) CopyEntry(f *zip.File) (bool, error) {
	if w.Has(f.Name) {
		return false, nil
	}
	if err := w.zw.Copy(f); err != nil {
		return false, fmt.Errorf("failed to copy entry %s: %w", f.Name, err)
	}
	w.names[f.Name] = struct{}{}
	return true, nil
}

func (w *Writer) create(name string) (io.Writer, error) {
	method := zip.Deflate
	if w.level == flate.NoCompression {
		method = zip.Store
	}
	entry, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: time.Now()})
	if err != nil {
		return nil, fmt.Errorf("failed to create entry %s: %w", name, err)
	}
	return entry, nil
}

// Finish writes the central directory and closes the file. On failure the
// partial file is closed and removed, so nothing incomplete is left at Path.
func (w *Writer) Finish() error {
	if w.done {
		return nil
	}
	w.done = true

	err := w.zw.Close()
	if err == nil {
		err = w.file.Sync()
	}
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(w.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
		return fmt.Errorf("failed to finish archive %s: %w", w.path, err)
	}
	return nil
}

// Close releases the file handle. It does not finish the archive and may be
// called any number of times.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
