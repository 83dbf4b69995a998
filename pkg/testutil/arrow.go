package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/require"
)

// IndexColumnName mirrors the pandas index field name.
const IndexColumnName = "__index_level_0__"

// Scalar is the set of Go types the fixture builders understand.
type Scalar interface {
	int64 | uint64 | int32 | uint32 | int16 | uint16 | int8 | uint8 |
		float32 | float64 | bool | string
}

// DataTypeOf returns the arrow type fixtures use for T.
func DataTypeOf[T Scalar]() arrow.DataType {
	var zero T
	switch any(zero).(type) {
	case int64:
		return arrow.PrimitiveTypes.Int64
	case uint64:
		return arrow.PrimitiveTypes.Uint64
	case int32:
		return arrow.PrimitiveTypes.Int32
	case uint32:
		return arrow.PrimitiveTypes.Uint32
	case int16:
		return arrow.PrimitiveTypes.Int16
	case uint16:
		return arrow.PrimitiveTypes.Uint16
	case int8:
		return arrow.PrimitiveTypes.Int8
	case uint8:
		return arrow.PrimitiveTypes.Uint8
	case float32:
		return arrow.PrimitiveTypes.Float32
	case float64:
		return arrow.PrimitiveTypes.Float64
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case string:
		return arrow.BinaryTypes.String
	}
	panic(fmt.Sprintf("unsupported fixture type %T", zero))
}

// BuildArray builds one arrow array. valid may be nil for an all-valid array.
func BuildArray[T Scalar](t testing.TB, mem memory.Allocator, values []T, valid []bool) arrow.Array {
	t.Helper()
	b := array.NewBuilder(mem, DataTypeOf[T]())
	defer b.Release()

	switch bb := b.(type) {
	case *array.Int64Builder:
		bb.AppendValues(any(values).([]int64), valid)
	case *array.Uint64Builder:
		bb.AppendValues(any(values).([]uint64), valid)
	case *array.Int32Builder:
		bb.AppendValues(any(values).([]int32), valid)
	case *array.Uint32Builder:
		bb.AppendValues(any(values).([]uint32), valid)
	case *array.Int16Builder:
		bb.AppendValues(any(values).([]int16), valid)
	case *array.Uint16Builder:
		bb.AppendValues(any(values).([]uint16), valid)
	case *array.Int8Builder:
		bb.AppendValues(any(values).([]int8), valid)
	case *array.Uint8Builder:
		bb.AppendValues(any(values).([]uint8), valid)
	case *array.Float32Builder:
		bb.AppendValues(any(values).([]float32), valid)
	case *array.Float64Builder:
		bb.AppendValues(any(values).([]float64), valid)
	case *array.BooleanBuilder:
		bb.AppendValues(any(values).([]bool), valid)
	case *array.StringBuilder:
		bb.AppendValues(any(values).([]string), valid)
	default:
		t.Fatalf("unexpected builder %T", b)
	}
	return b.NewArray()
}

// Chunk is the content of one physical chunk.
type Chunk[T Scalar] struct {
	Values []T
	Valid  []bool
}

// Dense returns a chunk with no nulls.
func Dense[T Scalar](values ...T) Chunk[T] {
	return Chunk[T]{Values: values}
}

// ChunkedColumn builds a named column made of the given chunks.
func ChunkedColumn[T Scalar](t testing.TB, mem memory.Allocator, name string, chunks ...Chunk[T]) *arrow.Column {
	t.Helper()
	dt := DataTypeOf[T]()
	arrs := make([]arrow.Array, 0, len(chunks))
	for _, c := range chunks {
		arrs = append(arrs, BuildArray(t, mem, c.Values, c.Valid))
	}
	chunked := arrow.NewChunked(dt, arrs)
	for _, a := range arrs {
		a.Release()
	}
	defer chunked.Release()
	return arrow.NewColumn(arrow.Field{Name: name, Type: dt, Nullable: true}, chunked)
}

// IndexColumn builds a dense int64 row-index column 0..n-1.
func IndexColumn(t testing.TB, mem memory.Allocator, n int) *arrow.Column {
	t.Helper()
	idx := make([]int64, n)
	for i := range idx {
		idx[i] = int64(i)
	}
	return ChunkedColumn(t, mem, IndexColumnName, Dense(idx...))
}

// NewTable assembles columns into an arrow table and releases the columns.
func NewTable(t testing.TB, cols ...*arrow.Column) arrow.Table {
	t.Helper()
	require.NotEmpty(t, cols)
	fields := make([]arrow.Field, len(cols))
	values := make([]arrow.Column, len(cols))
	for i, c := range cols {
		fields[i] = c.Field()
		values[i] = *c
	}
	tbl := array.NewTable(arrow.NewSchema(fields, nil), values, int64(cols[0].Len()))
	for _, c := range cols {
		c.Release()
	}
	return tbl
}

// WriteParquet writes tbl to dir/name with one row group per rowGroup rows.
func WriteParquet(t testing.TB, tbl arrow.Table, dir, name string, rowGroup int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	props := parquet.NewWriterProperties()
	require.NoError(t, pqarrow.WriteTable(tbl, f, rowGroup, props, pqarrow.DefaultWriterProps()))
	return path
}

// WriteIPCFile writes tbl to dir/name in the arrow IPC file format with one
// record batch per batch rows.
func WriteIPCFile(t testing.TB, tbl arrow.Table, dir, name string, batch int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(tbl.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
	require.NoError(t, err)

	tr := array.NewTableReader(tbl, batch)
	defer tr.Release()
	for tr.Next() {
		require.NoError(t, w.Write(tr.Record()))
	}
	require.NoError(t, w.Close())
	return path
}

// EncodeIPCStream returns tbl in the arrow IPC stream format.
func EncodeIPCStream(t testing.TB, tbl arrow.Table, batch int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(tbl.Schema()), ipc.WithAllocator(memory.DefaultAllocator))

	tr := array.NewTableReader(tbl, batch)
	defer tr.Release()
	for tr.Next() {
		require.NoError(t, w.Write(tr.Record()))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}
