// Package compression decodes compressed dataset files.
//
// Dataset files may carry a compression suffix on top of their format
// extension, e.g. close.parquet.zst or trades.arrows.lz4. FromPath splits
// that suffix off and New returns the matching codec:
//
//	alg, base := compression.FromPath("close.parquet.zst") // Zstd, "close.parquet"
//	codec, err := compression.New(alg)
//	raw, err := codec.Decompress(data)
//
// Codecs are safe for concurrent use. Encoders exist so tooling and tests
// can produce fixtures.
package compression

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// Algorithm names a compression format.
type Algorithm string

const (
	// None marks an uncompressed file
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents the framed snappy stream format
	Snappy Algorithm = "snappy"
	// LZ4 represents the lz4 frame format
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents the s2 stream format
	S2 Algorithm = "s2"
)

// DefaultMaxSize caps decompressed output at 16 GiB.
const DefaultMaxSize int64 = 16 << 30

var extensions = map[string]Algorithm{
	".gz":   Gzip,
	".sz":   Snappy,
	".lz4":  LZ4,
	".zst":  Zstd,
	".zstd": Zstd,
	".s2":   S2,
}

// Extensions returns the file suffixes recognized by FromPath, for each
// algorithm the canonical one first.
func Extensions() []string {
	return []string{".zst", ".lz4", ".gz", ".sz", ".s2", ".zstd"}
}

// FromPath detects the compression suffix of path and returns the algorithm
// and the path without it. Unknown suffixes yield None and path unchanged.
func FromPath(path string) (Algorithm, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if alg, ok := extensions[ext]; ok {
		return alg, path[:len(path)-len(ext)]
	}
	return None, path
}

// Codec compresses and decompresses whole buffers or streams.
type Codec interface {
	// Compress returns data in the codec's format.
	Compress(data []byte) ([]byte, error)
	// Decompress decodes data, failing when the output exceeds the size limit.
	Decompress(data []byte) ([]byte, error)
	// NewReader returns a decoding reader over src. Reads fail once the output
	// exceeds the size limit.
	NewReader(src io.Reader) (io.ReadCloser, error)
	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm
}

// Option configures a codec.
type Option func(*baseCodec)

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int64) Option {
	return func(b *baseCodec) { b.maxSize = n }
}

// New returns the codec for alg.
func New(alg Algorithm, opts ...Option) (Codec, error) {
	base := baseCodec{algorithm: alg, maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&base)
	}

	switch alg {
	case None:
		return &noneCodec{base}, nil
	case Gzip:
		return newGzipCodec(base), nil
	case Snappy:
		return &snappyCodec{base}, nil
	case LZ4:
		return &lz4Codec{base}, nil
	case Zstd:
		return newZstdCodec(base), nil
	case S2:
		return &s2Codec{base}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported compression algorithm: %s", alg)
	}
}

type baseCodec struct {
	algorithm Algorithm
	maxSize   int64
}

func (b *baseCodec) Algorithm() Algorithm { return b.algorithm }

// readAll drains r, enforcing the size limit.
func (b *baseCodec) readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, b.maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decompress").
			WithDetail("algorithm", string(b.algorithm))
	}
	if n > b.maxSize {
		return nil, errors.Newf(errors.ErrorTypeData, "decompressed size exceeds %d bytes", b.maxSize).
			WithDetail("algorithm", string(b.algorithm))
	}
	return buf.Bytes(), nil
}

// limit caps the bytes rc yields at maxSize. Reading past the cap fails with
// an ErrorTypeData error.
func (b *baseCodec) limit(rc io.ReadCloser) io.ReadCloser {
	return &limitedReader{ReadCloser: rc, remaining: b.maxSize, codec: b}
}

type limitedReader struct {
	io.ReadCloser
	remaining int64
	codec     *baseCodec
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, l.exceeded()
	}
	if max := l.remaining + 1; max > 0 && int64(len(p)) > max {
		p = p[:max]
	}
	n, err := l.ReadCloser.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n + int(l.remaining), l.exceeded()
	}
	return n, err
}

func (l *limitedReader) exceeded() error {
	return errors.Newf(errors.ErrorTypeData, "decompressed size exceeds %d bytes", l.codec.maxSize).
		WithDetail("algorithm", string(l.codec.algorithm))
}

// writeAll runs data through an encoder created by newWriter.
func writeAll(data []byte, newWriter func(io.Writer) io.WriteCloser) ([]byte, error) {
	var buf bytes.Buffer
	w := newWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type noneCodec struct{ baseCodec }

func (c *noneCodec) Compress(data []byte) ([]byte, error) { return data, nil }

func (c *noneCodec) Decompress(data []byte) ([]byte, error) {
	return c.readAll(bytes.NewReader(data))
}

func (c *noneCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return c.limit(io.NopCloser(src)), nil
}

type gzipCodec struct {
	baseCodec
	writerPool sync.Pool
}

func newGzipCodec(base baseCodec) *gzipCodec {
	gc := &gzipCodec{baseCodec: base}
	gc.writerPool.New = func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.DefaultCompression)
		return w
	}
	return gc
}

func (c *gzipCodec) Compress(data []byte) ([]byte, error) {
	w := c.writerPool.Get().(*gzip.Writer)
	defer c.writerPool.Put(w)
	return writeAll(data, func(dst io.Writer) io.WriteCloser {
		w.Reset(dst)
		return w
	})
}

func (c *gzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return c.readAll(r)
}

func (c *gzipCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	r, err := gzip.NewReader(src)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid gzip header")
	}
	return c.limit(r), nil
}

type snappyCodec struct{ baseCodec }

func (c *snappyCodec) Compress(data []byte) ([]byte, error) {
	return writeAll(data, func(dst io.Writer) io.WriteCloser { return snappy.NewBufferedWriter(dst) })
}

func (c *snappyCodec) Decompress(data []byte) ([]byte, error) {
	return c.readAll(snappy.NewReader(bytes.NewReader(data)))
}

func (c *snappyCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return c.limit(io.NopCloser(snappy.NewReader(src))), nil
}

type lz4Codec struct{ baseCodec }

func (c *lz4Codec) Compress(data []byte) ([]byte, error) {
	return writeAll(data, func(dst io.Writer) io.WriteCloser { return lz4.NewWriter(dst) })
}

func (c *lz4Codec) Decompress(data []byte) ([]byte, error) {
	return c.readAll(lz4.NewReader(bytes.NewReader(data)))
}

func (c *lz4Codec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return c.limit(io.NopCloser(lz4.NewReader(src))), nil
}

type zstdCodec struct {
	baseCodec
	encoderPool sync.Pool
}

func newZstdCodec(base baseCodec) *zstdCodec {
	zc := &zstdCodec{baseCodec: base}
	zc.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil)
		return enc
	}
	return zc
}

func (c *zstdCodec) Compress(data []byte) ([]byte, error) {
	enc := c.encoderPool.Get().(*zstd.Encoder)
	defer c.encoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decompress(data []byte) ([]byte, error) {
	r, err := c.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return c.readAll(r)
}

func (c *zstdCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create zstd decoder")
	}
	return c.limit(dec.IOReadCloser()), nil
}

type s2Codec struct{ baseCodec }

func (c *s2Codec) Compress(data []byte) ([]byte, error) {
	return writeAll(data, func(dst io.Writer) io.WriteCloser { return s2.NewWriter(dst) })
}

func (c *s2Codec) Decompress(data []byte) ([]byte, error) {
	return c.readAll(s2.NewReader(bytes.NewReader(data)))
}

func (c *s2Codec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return c.limit(io.NopCloser(s2.NewReader(src))), nil
}
