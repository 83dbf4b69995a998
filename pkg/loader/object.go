package loader

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/alphadata/pkg/compression"
	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/table"
)

// ObjectStore is the read side of a blob store.
type ObjectStore interface {
	// Open returns the object stored at key. A missing key is reported with
	// errors.ErrorTypeNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns every key starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectLoader loads datasets stored as objects under a key prefix.
type ObjectLoader struct {
	store  ObjectStore
	prefix string
	opts   options
}

// NewObjectLoader creates a loader reading <prefix><name>.<ext> keys from store.
func NewObjectLoader(store ObjectStore, prefix string, opts ...Option) *ObjectLoader {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ObjectLoader{store: store, prefix: prefix, opts: newOptions("object_loader", opts)}
}

// Resolve finds the object key backing name with a single listing.
func (l *ObjectLoader) Resolve(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	keys, err := l.store.List(ctx, l.prefix+name+".")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeFile, "failed to list objects").
			WithDetail("dataset", name).
			WithDetail("prefix", l.prefix)
	}
	present := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}
	for _, c := range candidates(name) {
		if _, ok := present[l.prefix+c]; ok {
			return l.prefix + c, nil
		}
	}
	return "", notFound(name).WithDetail("prefix", l.prefix)
}

// Load fetches and decodes the dataset called name.
func (l *ObjectLoader) Load(ctx context.Context, name string) (*table.Table, error) {
	key, err := l.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rc, err := l.store.Open(ctx, key)
	if err != nil {
		return nil, wrapLoad(err, name).WithDetail("key", key)
	}
	defer rc.Close()

	alg, base := compression.FromPath(key)
	f, _, ok := formatOf(base)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, "unrecognized dataset format").WithDetail("key", key)
	}
	tbl, err := decodeStream(ctx, f, alg, rc, l.opts.maxSize, l.opts.allocator)
	if err != nil {
		return nil, wrapLoad(err, name).WithDetail("key", key)
	}
	defer tbl.Release()

	t, err := table.New(name, tbl, l.opts.tableOptions()...)
	if err != nil {
		return nil, err
	}
	l.opts.logger.Debug("dataset loaded",
		zap.String("dataset", name),
		zap.String("key", key),
		zap.Int("rows", t.NumRows()),
		zap.Duration("duration", time.Since(start)))
	return t, nil
}

// List returns the datasets stored directly under the prefix.
func (l *ObjectLoader) List(ctx context.Context) ([]string, error) {
	keys, err := l.store.List(ctx, l.prefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list objects").
			WithDetail("prefix", l.prefix)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		rel := strings.TrimPrefix(k, l.prefix)
		if rel == "" || path.Dir(rel) != "." {
			continue
		}
		if name, ok := datasetName(rel); ok {
			names = append(names, name)
		}
	}
	return sortedUnique(names), nil
}
