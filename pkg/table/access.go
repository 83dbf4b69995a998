package table

import (
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// Visitor receives one value of a window traversal together with its
// position relative to the center row. Returning true stops the traversal.
type Visitor[T Element] func(v T, rel int) bool

// AssertType checks that col is a valid logical column whose declared type is T.
func AssertType[T Element](t *Table, col int) error {
	_, err := typedColumn[T](t, col)
	return err
}

func typedColumn[T Element](t *Table, col int) (*column, error) {
	c, err := t.column(col)
	if err != nil {
		return nil, err
	}
	want := kindOf[T]()
	if c.field.Type == nil {
		return nil, errors.Newf(errors.ErrorTypeTypeMismatch, "empty data type of '%s', expected '%s'", t.name, want).
			WithDetail("table", t.name).
			WithDetail("column", col).
			WithDetail("expected", want.String())
	}
	if c.kind != want {
		return nil, errors.Newf(errors.ErrorTypeTypeMismatch, "invalid data type '%s' of '%s', expected '%s'",
			c.field.Type.Name(), t.name, want).
			WithDetail("table", t.name).
			WithDetail("column", col).
			WithDetail("expected", want.String()).
			WithDetail("actual", c.field.Type.Name())
	}
	return c, nil
}

// RawColumn returns the values of col without copying. It only succeeds when
// the column is a single chunk with no nulls: null slots of an arrow buffer
// hold unspecified values, and a chunked column has no contiguous view. Bool
// and string columns are never contiguous. The slice aliases table memory and
// must not be modified.
func RawColumn[T Element](t *Table, col int) ([]T, error) {
	c, err := typedColumn[T](t, col)
	if err != nil {
		return nil, err
	}

	var reason string
	switch {
	case len(c.chunks) > 1:
		reason = "more than 1 chunks"
	case c.nulls > 0:
		reason = "null values"
	case !c.kind.Fixed():
		reason = c.kind.String() + " values that are not stored contiguously"
	}
	if reason != "" {
		return nil, errors.Newf(errors.ErrorTypeUnsupportedRawAccess,
			"can not get #%d column of '%s' as raw values, because it has %s", col, t.name, reason).
			WithDetail("table", t.name).
			WithDetail("column", col).
			WithDetail("chunks", len(c.chunks)).
			WithDetail("nulls", c.nulls)
	}

	if len(c.chunks) == 0 {
		return []T{}, nil
	}
	return c.values[0].([]T), nil
}

// Value returns the value at (row, col). A null slot reads as NaN for float
// columns and as the zero value for every other type.
func Value[T Element](t *Table, row, col int) (T, error) {
	c, err := typedColumn[T](t, col)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := t.checkRow(row); err != nil {
		var zero T
		return zero, err
	}
	k, i := c.locate(row)
	return at[T](c, k, i), nil
}

// Visit walks the window around center in increasing row order, calling
// visitor with each value and its offset from center. A negative offset
// selects [max(0, center+offset), center], a non-negative one selects
// [center, min(center+offset, NumRows()-1)]. Nulls follow the Value policy.
func Visit[T Element](t *Table, center, col, offset int, visitor Visitor[T]) error {
	c, err := typedColumn[T](t, col)
	if err != nil {
		return err
	}
	if err := t.checkRow(center); err != nil {
		return err
	}

	begin, end := center, center
	if offset < 0 {
		if offset > -center {
			begin = center + offset
		} else {
			begin = 0
		}
	} else {
		if offset < t.numRows-1-center {
			end = center + offset
		} else {
			end = t.numRows - 1
		}
	}

	k, _ := c.locate(begin)
	for row := begin; row <= end; row++ {
		for row >= c.offsets[k+1] {
			k++
		}
		if visitor(at[T](c, k, row-c.offsets[k]), row-center) {
			return nil
		}
	}
	return nil
}

// Data returns the raw values of a single-column table.
func Data[T Element](t *Table) ([]T, error) {
	if t.NumColumns() != 1 {
		return nil, errors.Newf(errors.ErrorTypeColumnCardinality,
			"Data only works for one column table, not applicable to '%s' with %d columns", t.name, t.NumColumns()).
			WithDetail("table", t.name).
			WithDetail("num_columns", t.NumColumns())
	}
	return RawColumn[T](t, 0)
}

// at reads slot i of chunk k. The caller has already matched T to c.kind.
func at[T Element](c *column, k, i int) T {
	chunk := c.chunks[k]
	if c.nulls > 0 && chunk.IsNull(i) {
		return nullValue[T]()
	}
	if c.values != nil {
		return c.values[k].([]T)[i]
	}
	switch a := chunk.(type) {
	case *array.Boolean:
		return any(a.Value(i)).(T)
	case *array.String:
		return any(a.Value(i)).(T)
	}
	var zero T
	return zero
}
