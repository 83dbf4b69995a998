// Package loader materializes named datasets as tables.
//
// A Loader resolves a dataset name to stored columnar data and decodes it.
// Three implementations are provided:
//
//   - FileLoader reads <root>/<name>.<ext>[.<compression>] from local disk
//   - ObjectLoader reads the same layout from S3 or GCS through an ObjectStore
//   - MemoryLoader serves arrow tables registered in process
//
// Supported formats are parquet (.parquet), arrow IPC files (.arrow, .feather)
// and arrow IPC streams (.arrows). Any of them may be compressed with one of
// the suffixes known to the compression package.
//
// Every loader reports a missing dataset with errors.ErrorTypeNotFound so
// callers can tell it apart from a dataset that exists but fails to decode.
package loader

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/alphadata/pkg/config"
	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/logger"
	"github.com/ajitpratap0/alphadata/pkg/table"
)

// Loader materializes a dataset by name.
type Loader interface {
	Load(ctx context.Context, name string) (*table.Table, error)
}

// Lister is implemented by loaders that can enumerate their datasets.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, name string) (*table.Table, error)

// Load calls f(ctx, name).
func (f LoaderFunc) Load(ctx context.Context, name string) (*table.Table, error) {
	return f(ctx, name)
}

type options struct {
	indexColumn string
	allocator   memory.Allocator
	useMmap     bool
	maxSize     int64
	logger      *zap.Logger
}

// Option configures a loader.
type Option func(*options)

// WithIndexColumn sets how the row-index column is chosen: config.IndexAuto,
// config.IndexNone, or a field name.
func WithIndexColumn(mode string) Option {
	return func(o *options) { o.indexColumn = mode }
}

// WithAllocator sets the arrow allocator decoded tables are built with.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.allocator = mem }
}

// WithMmap maps uncompressed local parquet files instead of reading them.
func WithMmap(enabled bool) Option {
	return func(o *options) { o.useMmap = enabled }
}

// WithMaxDecompressedSize bounds the size of a decompressed dataset file.
func WithMaxDecompressedSize(n int64) Option {
	return func(o *options) { o.maxSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(component string, opts []Option) options {
	o := options{
		indexColumn: config.IndexAuto,
		allocator:   memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get()
	}
	o.logger = o.logger.With(zap.String("component", component))
	return o
}

// tableOptions translates the index mode into table options.
func (o *options) tableOptions() []table.Option {
	switch o.indexColumn {
	case "", config.IndexAuto:
		return nil
	case config.IndexNone:
		return []table.Option{table.WithoutIndexColumn()}
	default:
		return []table.Option{table.WithIndexColumn(o.indexColumn)}
	}
}

func notFound(name string) *errors.Error {
	return errors.Newf(errors.ErrorTypeNotFound, "dataset '%s' not found", name).
		WithDetail("dataset", name)
}

// wrapLoad adds dataset context to a load failure, keeping its type so a
// caller can still tell not_found from data errors.
func wrapLoad(err error, name string) *errors.Error {
	t := errors.TypeOf(err)
	if t == "" {
		t = errors.ErrorTypeFile
	}
	return errors.Wrap(err, t, "failed to load dataset").WithDetail("dataset", name)
}

// validateName rejects names that would escape the dataset root.
func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `\`) || path.IsAbs(name) {
		return notFound(name).WithDetail("reason", "invalid dataset name")
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "." || part == "" {
			return notFound(name).WithDetail("reason", "invalid dataset name")
		}
	}
	return nil
}

// candidates returns the stored file names a dataset may have, in probing order.
func candidates(name string) []string {
	var out []string
	for _, f := range formats {
		for _, ext := range f.extensions {
			out = append(out, name+ext)
		}
	}
	for _, comp := range compressionSuffixes() {
		for _, f := range formats {
			for _, ext := range f.extensions {
				out = append(out, name+ext+comp)
			}
		}
	}
	return out
}

// datasetName strips the format and compression suffixes from a stored file
// name. ok is false for files that are not datasets.
func datasetName(file string) (string, bool) {
	_, base := splitCompression(file)
	if _, stem, ok := formatOf(base); ok && stem != "" {
		return stem, true
	}
	return "", false
}

func sortedUnique(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i == 0 || n != names[i-1] {
			out = append(out, n)
		}
	}
	return out
}
