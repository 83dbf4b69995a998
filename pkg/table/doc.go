// Package table provides typed, null-aware read access to chunked columnar
// datasets backed by Apache Arrow.
//
// # Overview
//
// A Table wraps an arrow.Table. Every column is an ordered sequence of chunks
// whose boundaries are independent between columns; one physical column is the
// row-index column written by pandas/pyarrow and is hidden from callers, so
// logical column 0 is the first data column.
//
// Access comes in two flavours:
//
//   - RawColumn and Data return a zero-copy []T. They only work when the column
//     is one dense chunk, which is the layout a compute engine wants on its hot
//     path.
//   - Value and Visit work on any layout. They locate chunks through an
//     immutable prefix sum of chunk lengths and cross chunk boundaries
//     transparently.
//
// # Null policy
//
// Nulls are not errors. A null slot reads as NaN in float32/float64 columns and
// as the zero value for every other element type.
//
// # Usage
//
//	t, err := table.New("close", arrowTable)
//	if err != nil {
//	    return err
//	}
//	px, err := table.Value[float64](t, row, 0)
//
//	// 20-row trailing window
//	sum := 0.0
//	err = table.Visit[float64](t, row, 0, -19, func(v float64, rel int) bool {
//	    sum += v
//	    return false
//	})
//
// # Thread Safety
//
// Tables are immutable after New; any number of goroutines may read one
// concurrently without coordination.
package table
