package loader

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/alphadata/pkg/compression"
	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/pool"
)

// Format is a stored dataset encoding.
type Format string

const (
	FormatParquet   Format = "parquet"
	FormatIPCFile   Format = "arrow"
	FormatIPCStream Format = "arrows"
)

type formatSpec struct {
	format     Format
	extensions []string
	// random access formats must be fully buffered when compressed
	randomAccess bool
}

var formats = []formatSpec{
	{FormatParquet, []string{".parquet"}, true},
	{FormatIPCFile, []string{".arrow", ".feather"}, true},
	{FormatIPCStream, []string{".arrows"}, false},
}

// formatOf returns the format of a file name without compression suffix and
// the name with the format extension removed.
func formatOf(file string) (formatSpec, string, bool) {
	lower := strings.ToLower(file)
	for _, f := range formats {
		for _, ext := range f.extensions {
			if strings.HasSuffix(lower, ext) {
				return f, file[:len(file)-len(ext)], true
			}
		}
	}
	return formatSpec{}, "", false
}

func splitCompression(file string) (compression.Algorithm, string) {
	return compression.FromPath(file)
}

func compressionSuffixes() []string {
	return compression.Extensions()
}

// readAtSeeker is what the random access decoders need. ipc.NewFileReader
// also reads sequentially, so Read is required.
type readAtSeeker interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

var (
	_ ipc.ReadAtSeeker       = readAtSeeker(nil)
	_ parquet.ReaderAtSeeker = readAtSeeker(nil)
)

func decodeParquet(ctx context.Context, r readAtSeeker, mem memory.Allocator) (arrow.Table, error) {
	props := parquet.NewReaderProperties(mem)
	arrowProps := pqarrow.ArrowReadProperties{Parallel: true, BatchSize: 64 * 1024}
	tbl, err := pqarrow.ReadTable(ctx, r, props, arrowProps, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read parquet")
	}
	return tbl, nil
}

func decodeIPCFile(r readAtSeeker, mem memory.Allocator) (arrow.Table, error) {
	rdr, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create arrow file reader")
	}
	defer rdr.Close()

	recs := make([]arrow.Record, 0, rdr.NumRecords())
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for i := 0; i < rdr.NumRecords(); i++ {
		rec, err := rdr.Record(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read arrow record batch").
				WithDetail("batch", i)
		}
		rec.Retain()
		recs = append(recs, rec)
	}
	return array.NewTableFromRecords(rdr.Schema(), recs), nil
}

func decodeIPCStream(r io.Reader, mem memory.Allocator) (arrow.Table, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create arrow stream reader")
	}
	defer rdr.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read arrow stream")
	}
	return array.NewTableFromRecords(rdr.Schema(), recs), nil
}

// decodeBuffer decodes a fully buffered, already decompressed dataset.
func decodeBuffer(ctx context.Context, f formatSpec, data []byte, mem memory.Allocator) (arrow.Table, error) {
	switch f.format {
	case FormatParquet:
		return decodeParquet(ctx, bytes.NewReader(data), mem)
	case FormatIPCFile:
		return decodeIPCFile(bytes.NewReader(data), mem)
	default:
		return decodeIPCStream(bytes.NewReader(data), mem)
	}
}

// decodeStream decodes a dataset from a sequential reader, decompressing with
// alg. Random access formats are buffered first.
func decodeStream(ctx context.Context, f formatSpec, alg compression.Algorithm, src io.Reader, maxSize int64, mem memory.Allocator) (arrow.Table, error) {
	var copts []compression.Option
	if maxSize > 0 {
		copts = append(copts, compression.WithMaxSize(maxSize))
	}
	codec, err := compression.New(alg, copts...)
	if err != nil {
		return nil, err
	}

	if !f.randomAccess {
		r, err := codec.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return decodeIPCStream(r, mem)
	}

	raw := pool.GetBuffer()
	defer pool.PutBuffer(raw)
	if _, err := raw.ReadFrom(src); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read dataset")
	}
	data, err := codec.Decompress(raw.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeBuffer(ctx, f, data, mem)
}
