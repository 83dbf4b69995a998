// Package mmap provides read-only memory-mapped access to dataset files
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// Reader is a read-only mapping of a whole file. It implements io.ReaderAt
// and is safe for concurrent reads until Close.
type Reader struct {
	path string
	data []byte

	mu     sync.RWMutex
	closed bool
}

// Open maps the file at path. Empty files are rejected because a zero-length
// mapping is invalid.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: dataset paths are resolved by the loader
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "failed to open file").WithDetail("path", path)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").WithDetail("path", path)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").WithDetail("path", path)
	}
	if stat.Size() == 0 {
		return nil, errors.New(errors.ErrorTypeData, "file is empty").WithDetail("path", path)
	}

	data, err := mapFile(file, int(stat.Size()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file").WithDetail("path", path)
	}
	return &Reader{path: path, data: data}, nil
}

// Path returns the mapped file's path.
func (r *Reader) Path() string { return r.path }

// Size returns the mapped length in bytes.
func (r *Reader) Size() int64 { return int64(len(r.data)) }

// ReadAt implements io.ReaderAt over the mapping.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, errors.Newf(errors.ErrorTypeFile, "negative offset %d", off)
	}
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// SectionReader returns a seekable view of the whole mapping.
func (r *Reader) SectionReader() *io.SectionReader {
	return io.NewSectionReader(r, 0, r.Size())
}

// Close unmaps the file. Slices previously read through ReadAt stay valid
// because they were copied.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	data := r.data
	r.data = nil
	if err := unmap(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to unmap file").WithDetail("path", r.path)
	}
	return nil
}
