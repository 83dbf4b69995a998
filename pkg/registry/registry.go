// Package registry caches materialized datasets by name.
//
// A Registry is an explicit object: create one per session or run and pass it
// to the components that look datasets up. It materializes a dataset through
// its loader.Loader on first request and, when asked to retain it, keeps the
// table for later lookups. Concurrent first requests for the same name share
// a single load.
//
// Every table returned by GetData carries its own reference. Callers Release
// it when done; the registry keeps a separate reference for cached tables
// until Evict or Close.
package registry

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/loader"
	"github.com/ajitpratap0/alphadata/pkg/logger"
	"github.com/ajitpratap0/alphadata/pkg/metrics"
	"github.com/ajitpratap0/alphadata/pkg/observability"
	"github.com/ajitpratap0/alphadata/pkg/table"
)

// Registry maps dataset names to materialized tables.
type Registry struct {
	loader  loader.Loader
	tables  map[string]*table.Table
	closed  bool
	mu      sync.RWMutex
	loads   singleflight.Group
	logger  *zap.Logger
	metrics *metrics.RegistryMetrics
	tracer  *observability.DatasetTracer

	preloadConcurrency int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.RegistryMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTracer sets the tracer wrapping dataset loads.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) { r.tracer = observability.NewDatasetTracer(t, "registry") }
}

// WithPreloadConcurrency bounds the parallel loads of Initialize.
func WithPreloadConcurrency(n int) Option {
	return func(r *Registry) { r.preloadConcurrency = n }
}

// New creates an empty registry backed by l.
func New(l loader.Loader, opts ...Option) *Registry {
	r := &Registry{
		loader:             l,
		tables:             make(map[string]*table.Table),
		preloadConcurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.With(zap.String("component", "dataset_registry"))
	if r.tracer == nil {
		r.tracer = observability.NewDatasetTracer(nil, "registry")
	}
	if r.preloadConcurrency <= 0 {
		r.preloadConcurrency = 1
	}
	return r
}

// Has reports whether name is cached. It never triggers a load.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[name]
	return ok
}

// Get returns the dataset called name, caching it.
func (r *Registry) Get(ctx context.Context, name string) (*table.Table, error) {
	return r.GetData(ctx, name, true)
}

// GetData returns the dataset called name. A cached table is returned as is;
// otherwise the loader materializes it and, when retain is true, the registry
// caches it. With retain false the table is handed to the caller only and
// Has(name) is unaffected.
//
// A name the loader cannot resolve fails with errors.ErrorTypeNotFound.
func (r *Registry) GetData(ctx context.Context, name string, retain bool) (*table.Table, error) {
	for attempt := 0; ; attempt++ {
		t, err := r.cached(name)
		if err != nil {
			return nil, err
		}
		if attempt == 0 {
			r.metrics.ObserveLookup(t != nil)
		}
		if t != nil {
			return t, nil
		}

		if !retain {
			return r.load(ctx, name)
		}

		// The shared load outlives any single waiter.
		ch := r.loads.DoChan(name, func() (interface{}, error) {
			return nil, r.loadAndCache(context.WithoutCancel(ctx), name)
		})
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeInternal, "dataset lookup cancelled").
				WithDetail("dataset", name)
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
		}
		// Loop to take a reference under the lock. The table may have been
		// evicted in the meantime, in which case it is loaded again.
	}
}

// cached returns a retained reference to the cached table, or nil.
func (r *Registry) cached(name string) (*table.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, errors.New(errors.ErrorTypeInternal, "registry is closed").WithDetail("dataset", name)
	}
	t, ok := r.tables[name]
	if !ok {
		return nil, nil
	}
	t.Retain()
	return t, nil
}

func (r *Registry) loadAndCache(ctx context.Context, name string) error {
	if r.Has(name) {
		return nil
	}
	t, err := r.load(ctx, name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		t.Release()
		return errors.New(errors.ErrorTypeInternal, "registry is closed").WithDetail("dataset", name)
	}
	if _, ok := r.tables[name]; ok {
		// lost a race with another load path; keep the cached instance
		r.mu.Unlock()
		t.Release()
		return nil
	}
	r.tables[name] = t
	n := len(r.tables)
	r.mu.Unlock()

	r.metrics.SetCached(n)
	r.logger.Info("dataset cached",
		zap.String("dataset", name),
		zap.Int("rows", t.NumRows()),
		zap.Int("columns", t.NumColumns()),
		zap.Int("cached", n))
	return nil
}

// load materializes name through the loader without touching the cache.
func (r *Registry) load(ctx context.Context, name string) (*table.Table, error) {
	var t *table.Table
	timer := metrics.NewTimer()
	err := r.tracer.Trace(ctx, "load", name, func(ctx context.Context) error {
		var err error
		t, err = r.loader.Load(ctx, name)
		if err == nil && t == nil {
			err = errors.Newf(errors.ErrorTypeNotFound, "dataset '%s' not found", name)
		}
		return err
	})
	elapsed := timer.Stop()

	if err != nil {
		status := metrics.StatusError
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			status = metrics.StatusNotFound
		}
		r.metrics.ObserveLoad(status, elapsed)
		r.logger.Debug("dataset load failed",
			zap.String("dataset", name),
			zap.String("status", status),
			zap.Error(err))
		return nil, wrapLoadError(err, name)
	}

	r.metrics.ObserveLoad(metrics.StatusSuccess, elapsed)
	r.logger.Debug("dataset loaded",
		zap.String("dataset", name),
		zap.Duration("duration", elapsed))
	return t, nil
}

// wrapLoadError keeps typed errors intact so not_found stays visible to
// errors.IsType, and classifies foreign errors as storage failures.
func wrapLoadError(err error, name string) error {
	if errors.TypeOf(err) != "" {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeFile, "failed to load dataset").WithDetail("dataset", name)
}

// Initialize loads and caches the named datasets in parallel. Without names
// it loads every dataset the loader can list; a loader that cannot list makes
// it a no-op.
func (r *Registry) Initialize(ctx context.Context, names ...string) error {
	start := time.Now()
	if len(names) == 0 {
		lister, ok := r.loader.(loader.Lister)
		if !ok {
			r.logger.Debug("loader cannot list datasets, nothing to preload")
			return nil
		}
		var err error
		names, err = lister.List(ctx)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.preloadConcurrency)
	for _, name := range names {
		g.Go(func() error {
			t, err := r.GetData(gctx, name, true)
			if err != nil {
				return err
			}
			t.Release()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error("dataset preload failed", zap.Error(err))
		return err
	}

	r.logger.Info("datasets preloaded",
		zap.Int("count", len(names)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Evict drops name from the cache and releases the registry's reference.
// Tables already handed out stay valid until their holders release them.
func (r *Registry) Evict(name string) bool {
	r.mu.Lock()
	t, ok := r.tables[name]
	delete(r.tables, name)
	n := len(r.tables)
	r.mu.Unlock()

	if !ok {
		return false
	}
	t.Release()
	r.metrics.ObserveEviction()
	r.metrics.SetCached(n)
	r.logger.Info("dataset evicted", zap.String("dataset", name))
	return true
}

// Names returns the cached dataset names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Close releases every cached table. Later lookups fail.
func (r *Registry) Close() {
	r.mu.Lock()
	tables := r.tables
	r.tables = make(map[string]*table.Table)
	r.closed = true
	r.mu.Unlock()

	for _, t := range tables {
		t.Release()
	}
	r.metrics.SetCached(0)
	r.logger.Info("registry closed", zap.Int("released", len(tables)))
}
