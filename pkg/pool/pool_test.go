package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResetsOnPut(t *testing.T) {
	p := New(func() *bytes.Buffer { return new(bytes.Buffer) }, func(b *bytes.Buffer) { b.Reset() })

	b := p.Get()
	b.WriteString("payload")
	p.Put(b)
	assert.Zero(t, b.Len())

	// Whether or not sync.Pool hands the same buffer back, it must be empty.
	assert.Zero(t, p.Get().Len())
}

func TestPoolStats(t *testing.T) {
	p := New(func() []int { return make([]int, 0, 8) }, nil)

	a := p.Get()
	b := p.Get()
	allocated, inUse, _, misses := p.Stats()
	assert.Equal(t, int64(2), inUse)
	assert.GreaterOrEqual(t, allocated, int64(2))
	assert.Equal(t, allocated, misses)

	p.Put(a)
	p.Put(b)
	_, inUse, _, _ = p.Stats()
	assert.Zero(t, inUse)
}

func TestRetainFilter(t *testing.T) {
	p := New(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
		WithRetainFilter(func(b *bytes.Buffer) bool { return b.Cap() <= 128 }),
	)

	big := p.Get()
	big.Write(make([]byte, 1024))
	p.Put(big)
	// dropped buffers are not reset, proving they never reached the pool
	assert.Equal(t, 1024, big.Len())

	small := p.Get()
	small.WriteString("x")
	require.LessOrEqual(t, small.Cap(), 128)
	p.Put(small)
	assert.Zero(t, small.Len())
}

func TestBufferPoolConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := GetBuffer()
				assert.Zero(t, buf.Len())
				buf.WriteString("dataset bytes")
				PutBuffer(buf)
			}
		}()
	}
	wg.Wait()
	PutBuffer(nil)
}
