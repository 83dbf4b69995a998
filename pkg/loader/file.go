package loader

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/alphadata/pkg/compression"
	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/mmap"
	"github.com/ajitpratap0/alphadata/pkg/table"
)

// FileLoader loads datasets from files under a root directory.
type FileLoader struct {
	root string
	opts options
}

// NewFileLoader creates a loader rooted at root.
func NewFileLoader(root string, opts ...Option) *FileLoader {
	return &FileLoader{root: root, opts: newOptions("file_loader", opts)}
}

// Root returns the dataset directory.
func (l *FileLoader) Root() string { return l.root }

// Resolve returns the file backing name.
func (l *FileLoader) Resolve(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	for _, c := range candidates(name) {
		p := filepath.Join(l.root, filepath.FromSlash(c))
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", notFound(name).WithDetail("root", l.root)
}

// Load reads and decodes the dataset called name.
func (l *FileLoader) Load(ctx context.Context, name string) (*table.Table, error) {
	p, err := l.Resolve(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tbl, err := l.decodeFile(ctx, p)
	if err != nil {
		return nil, wrapLoad(err, name).WithDetail("path", p)
	}
	defer tbl.Release()

	t, err := table.New(name, tbl, l.opts.tableOptions()...)
	if err != nil {
		return nil, err
	}
	l.opts.logger.Debug("dataset loaded",
		zap.String("dataset", name),
		zap.String("path", p),
		zap.Int("rows", t.NumRows()),
		zap.Int("columns", t.NumColumns()),
		zap.Duration("duration", time.Since(start)))
	return t, nil
}

func (l *FileLoader) decodeFile(ctx context.Context, p string) (arrow.Table, error) {
	alg, base := compression.FromPath(p)
	f, _, ok := formatOf(base)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, "unrecognized dataset format")
	}
	mem := l.opts.allocator

	if alg == compression.None && f.format == FormatParquet && l.opts.useMmap {
		r, err := mmap.Open(p)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return decodeParquet(ctx, r.SectionReader(), mem)
	}

	file, err := os.Open(p) //nolint:gosec // G304: path resolved under the dataset root
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open dataset file")
	}
	defer file.Close()

	if alg != compression.None {
		return decodeStream(ctx, f, alg, file, l.opts.maxSize, mem)
	}
	switch f.format {
	case FormatParquet:
		return decodeParquet(ctx, file, mem)
	case FormatIPCFile:
		return decodeIPCFile(file, mem)
	default:
		return decodeIPCStream(file, mem)
	}
}

// List returns the datasets stored directly under the root.
func (l *FileLoader) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "dataset root does not exist").
				WithDetail("root", l.root)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read dataset root").
			WithDetail("root", l.root)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if name, ok := datasetName(e.Name()); ok {
			names = append(names, name)
		}
	}
	return sortedUnique(names), nil
}
