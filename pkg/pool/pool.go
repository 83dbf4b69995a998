// Package pool provides typed object pooling on top of sync.Pool.
//
// The loader reads compressed dataset files into pooled buffers before
// decompressing them, so repeated loads of large files do not grow the heap
// by the compressed size each time.
//
// Example usage:
//
//	buf := pool.GetBuffer()
//	defer pool.PutBuffer(buf)
//
//	if _, err := buf.ReadFrom(r); err != nil {
//	    return err
//	}
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a type-safe object pool. It wraps sync.Pool with a reset hook and
// hit/miss statistics. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// PoolOption configures a Pool.
type PoolOption[T any] func(*Pool[T])

// WithRetainFilter drops objects for which keep returns false instead of
// pooling them, e.g. buffers that grew beyond a useful size.
func WithRetainFilter[T any](keep func(T) bool) PoolOption[T] {
	return func(p *Pool[T]) { p.keep = keep }
}

// New creates a pool. newFn allocates when the pool is empty; reset, if not
// nil, runs before an object goes back into the pool.
func New[T any](newFn func() T, reset func(T), opts ...PoolOption[T]) *Pool[T] {
	p := &Pool[T]{reset: reset}
	for _, opt := range opts {
		opt(p)
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		atomic.AddInt64(&p.stats.misses, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object, allocating one when the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	misses := atomic.LoadInt64(&p.stats.misses)
	obj := p.pool.Get().(T)
	if atomic.LoadInt64(&p.stats.misses) == misses {
		atomic.AddInt64(&p.stats.hits, 1)
	}
	return obj
}

// Put returns obj to the pool.
func (p *Pool[T]) Put(obj T) {
	atomic.AddInt64(&p.stats.inUse, -1)
	if p.keep != nil && !p.keep(obj) {
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats returns the number of objects created, currently checked out, served
// from the pool and allocated on demand. Hits and misses are approximate
// under concurrent use.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// MaxPooledBuffer is the largest buffer capacity kept for reuse. Bigger
// buffers are left to the garbage collector.
const MaxPooledBuffer = 64 << 20

// BufferPool holds byte buffers for reading dataset files.
var BufferPool = New(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) { b.Reset() },
	WithRetainFilter(func(b *bytes.Buffer) bool { return b.Cap() <= MaxPooledBuffer }),
)

// GetBuffer returns an empty buffer from BufferPool.
func GetBuffer() *bytes.Buffer {
	return BufferPool.Get()
}

// PutBuffer returns b to BufferPool. Bytes obtained from b must not be used
// afterwards.
func PutBuffer(b *bytes.Buffer) {
	if b != nil {
		BufferPool.Put(b)
	}
}
