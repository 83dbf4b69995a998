package registry

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/loader"
	"github.com/ajitpratap0/alphadata/pkg/metrics"
	"github.com/ajitpratap0/alphadata/pkg/table"
	"github.com/ajitpratap0/alphadata/pkg/testutil"
)

// countingLoader counts loads and optionally blocks them until gate closes.
type countingLoader struct {
	*loader.MemoryLoader
	loads atomic.Int64
	gate  chan struct{}
}

func (c *countingLoader) Load(ctx context.Context, name string) (*table.Table, error) {
	c.loads.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.MemoryLoader.Load(ctx, name)
}

func newLoader(t *testing.T, mem memory.Allocator, names ...string) *countingLoader {
	t.Helper()
	ml := loader.NewMemoryLoader(loader.WithLogger(testutil.TestLogger(t)))
	for i, name := range names {
		at := testutil.NewTable(t,
			testutil.ChunkedColumn(t, mem, "px",
				testutil.Dense(float64(i), float64(i)+1),
				testutil.Dense(float64(i)+2)),
			testutil.IndexColumn(t, mem, 3))
		ml.Add(name, at)
		at.Release()
	}
	t.Cleanup(ml.Close)
	return &countingLoader{MemoryLoader: ml}
}

func newRegistry(t *testing.T, l loader.Loader, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithLogger(testutil.TestLogger(t))}, opts...)
	r := New(l, opts...)
	t.Cleanup(r.Close)
	return r
}

func TestGetDataRetainCaches(t *testing.T) {
	l := newLoader(t, memory.DefaultAllocator, "close")
	r := newRegistry(t, l)
	ctx := context.Background()

	assert.False(t, r.Has("close"))
	first, err := r.GetData(ctx, "close", true)
	require.NoError(t, err)
	defer first.Release()
	assert.True(t, r.Has("close"))

	second, err := r.Get(ctx, "close")
	require.NoError(t, err)
	defer second.Release()

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), l.loads.Load())

	v1, err := table.Value[float64](first, 2, 0)
	require.NoError(t, err)
	v2, err := table.Value[float64](second, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, []string{"close"}, r.Names())
}

func TestGetDataWithoutRetain(t *testing.T) {
	l := newLoader(t, memory.DefaultAllocator, "close", "open")
	r := newRegistry(t, l)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		tb, err := r.GetData(ctx, "close", false)
		require.NoError(t, err)
		assert.Equal(t, 3, tb.NumRows())
		tb.Release()
	}
	assert.False(t, r.Has("close"))
	assert.Empty(t, r.Names())
	assert.Equal(t, int64(2), l.loads.Load())

	// a cached dataset is served from the cache either way
	cached, err := r.Get(ctx, "open")
	require.NoError(t, err)
	defer cached.Release()
	uncached, err := r.GetData(ctx, "open", false)
	require.NoError(t, err)
	defer uncached.Release()
	assert.Same(t, cached, uncached)
	assert.Equal(t, int64(3), l.loads.Load())
}

func TestGetDataNotFound(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistryMetrics(reg)
	r := newRegistry(t, newLoader(t, memory.DefaultAllocator), WithMetrics(m))

	for _, retain := range []bool{true, false} {
		_, err := r.GetData(context.Background(), "missing", retain)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound), "%v", err)
		assert.Contains(t, err.Error(), "missing")
	}
	assert.False(t, r.Has("missing"))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Loads.WithLabelValues(metrics.StatusNotFound)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Lookups.WithLabelValues(metrics.ResultMiss)))
}

func TestForeignLoaderErrors(t *testing.T) {
	r := newRegistry(t, loader.LoaderFunc(func(context.Context, string) (*table.Table, error) {
		return nil, io.ErrUnexpectedEOF
	}))
	_, err := r.Get(context.Background(), "close")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	r = newRegistry(t, loader.LoaderFunc(func(context.Context, string) (*table.Table, error) {
		return nil, nil
	}))
	_, err = r.Get(context.Background(), "close")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestConcurrentFirstLookupLoadsOnce(t *testing.T) {
	l := newLoader(t, memory.DefaultAllocator, "close")
	l.gate = make(chan struct{})
	r := newRegistry(t, l)

	const callers = 16
	results := make([]*table.Table, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tb, err := r.Get(context.Background(), "close")
			if assert.NoError(t, err) {
				results[i] = tb
			}
		}(i)
	}

	require.Eventually(t, func() bool { return l.loads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(l.gate)
	wg.Wait()

	assert.Equal(t, int64(1), l.loads.Load())
	for _, tb := range results {
		require.NotNil(t, tb)
		assert.Same(t, results[0], tb)
		tb.Release()
	}
}

func TestCancelledWaiterLeavesLoadRunning(t *testing.T) {
	l := newLoader(t, memory.DefaultAllocator, "close")
	l.gate = make(chan struct{})
	r := newRegistry(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, "close")
		done <- err
	}()
	require.Eventually(t, func() bool { return l.loads.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(l.gate)
	assert.Eventually(t, func() bool { return r.Has("close") }, time.Second, time.Millisecond)
	assert.Equal(t, int64(1), l.loads.Load())
}

func TestInitialize(t *testing.T) {
	l := newLoader(t, memory.DefaultAllocator, "volume", "close", "open")
	r := newRegistry(t, l, WithPreloadConcurrency(2))
	ctx := context.Background()

	require.NoError(t, r.Initialize(ctx, "open"))
	assert.Equal(t, []string{"open"}, r.Names())

	require.NoError(t, r.Initialize(ctx))
	assert.Equal(t, []string{"close", "open", "volume"}, r.Names())
	assert.Equal(t, int64(3), l.loads.Load())

	err := r.Initialize(ctx, "close", "missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestInitializeWithoutLister(t *testing.T) {
	var calls atomic.Int64
	r := newRegistry(t, loader.LoaderFunc(func(context.Context, string) (*table.Table, error) {
		calls.Add(1)
		return nil, nil
	}))
	require.NoError(t, r.Initialize(context.Background()))
	assert.Zero(t, calls.Load())
}

func TestEvict(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRegistryMetrics(reg)
	l := newLoader(t, memory.DefaultAllocator, "close")
	r := newRegistry(t, l, WithMetrics(m))
	ctx := context.Background()

	held, err := r.Get(ctx, "close")
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.CachedDatasets))

	assert.True(t, r.Evict("close"))
	assert.False(t, r.Evict("close"))
	assert.False(t, r.Has("close"))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Evictions))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.CachedDatasets))

	// the evicted handle stays readable until released
	v, err := table.Value[float64](held, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
	held.Release()

	again, err := r.Get(ctx, "close")
	require.NoError(t, err)
	again.Release()
	assert.Equal(t, int64(2), l.loads.Load())
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Lookups.WithLabelValues(metrics.ResultMiss)))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.Lookups.WithLabelValues(metrics.ResultHit)))
}

func TestCloseReleasesEverything(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	l := newLoader(t, mem, "close", "open")
	r := New(l, WithLogger(testutil.TestLogger(t)))
	require.NoError(t, r.Initialize(context.Background()))
	assert.Len(t, r.Names(), 2)

	r.Close()
	assert.Empty(t, r.Names())
	_, err := r.Get(context.Background(), "close")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))

	l.Close()
}

func TestLoadsAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := newRegistry(t, newLoader(t, memory.DefaultAllocator, "close"), WithTracer(tp.Tracer("test")))
	tb, err := r.Get(context.Background(), "close")
	require.NoError(t, err)
	tb.Release()
	_, _ = r.Get(context.Background(), "missing")

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "registry.load", spans[0].Name())
	assert.Equal(t, "registry.load", spans[1].Name())
}
