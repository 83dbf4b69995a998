package mmap

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestReaderReadAt(t *testing.T) {
	path := writeFile(t, []byte("0123456789"))
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(10), r.Size())
	assert.Equal(t, path, r.Path())

	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "3456", string(buf))

	n, err = r.ReadAt(buf, 8)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "89", string(buf[:n]))

	_, err = r.ReadAt(buf, 10)
	assert.Equal(t, io.EOF, err)
	_, err = r.ReadAt(buf, -1)
	assert.Error(t, err)
}

func TestSectionReaderSeeks(t *testing.T) {
	r, err := Open(writeFile(t, []byte("abcdef")))
	require.NoError(t, err)
	defer r.Close()

	sr := r.SectionReader()
	pos, err := sr.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)

	rest, err := io.ReadAll(sr)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(rest))
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	_, err = Open(writeFile(t, nil))
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestCloseIsIdempotent(t *testing.T) {
	r, err := Open(writeFile(t, []byte("x")))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestConcurrentReadAt(t *testing.T) {
	content := make([]byte, 1<<16)
	for i := range content {
		content[i] = byte(i)
	}
	r, err := Open(writeFile(t, content))
	require.NoError(t, err)
	defer r.Close()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			buf := make([]byte, 256)
			for off := int64(g * 256); off+256 <= r.Size(); off += 1024 {
				_, err := r.ReadAt(buf, off)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, byte(off), buf[0])
			}
		}(g)
	}
	wg.Wait()
}
