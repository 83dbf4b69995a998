package table

import (
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// PandasIndexColumn is the field name pyarrow gives a serialized DataFrame index.
const PandasIndexColumn = "__index_level_0__"

type indexMode int

const (
	indexAuto indexMode = iota
	indexNamed
	indexNone
)

type options struct {
	index     indexMode
	indexName string
}

// Option configures how New interprets an arrow table.
type Option func(*options)

// WithIndexColumn marks the named field as the row-index column.
func WithIndexColumn(name string) Option {
	return func(o *options) {
		o.index = indexNamed
		o.indexName = name
	}
}

// WithoutIndexColumn declares that every physical column is a data column.
func WithoutIndexColumn() Option {
	return func(o *options) {
		o.index = indexNone
	}
}

// column is one logical column with its immutable chunk index.
type column struct {
	field  arrow.Field
	kind   Kind
	chunks []arrow.Array
	// offsets[k] is the first logical row of chunk k; offsets[len(chunks)] == numRows.
	offsets []int
	// values[k] holds chunk k's typed value slice for fixed-width kinds.
	values []any
	nulls  int
}

// locate returns the chunk holding row and the row's position inside it.
func (c *column) locate(row int) (int, int) {
	k := sort.Search(len(c.chunks), func(i int) bool { return c.offsets[i+1] > row })
	return k, row - c.offsets[k]
}

// Table is a named, read-only handle onto a chunked columnar dataset.
//
// A Table is immutable after New and safe for concurrent use. It holds a
// reference on the wrapped arrow table; Retain and Release manage it when the
// table is shared between owners.
type Table struct {
	name    string
	tbl     arrow.Table
	index   int // physical position of the row-index column, -1 if none
	columns []column
	numRows int
}

// New wraps tbl as a Table named name. One physical column is treated as the
// row-index column and hidden from the logical column set: the field named
// __index_level_0__ when present, otherwise the leading column. Options
// override that choice.
func New(name string, tbl arrow.Table, opts ...Option) (*Table, error) {
	if tbl == nil {
		return nil, errors.Newf(errors.ErrorTypeData, "nil arrow table for '%s'", name).
			WithDetail("table", name)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	schema := tbl.Schema()
	index := -1
	switch o.index {
	case indexNamed:
		idx := schema.FieldIndices(o.indexName)
		if len(idx) == 0 {
			return nil, errors.Newf(errors.ErrorTypeData, "index column '%s' not found in '%s'", o.indexName, name).
				WithDetail("table", name).
				WithDetail("index_column", o.indexName)
		}
		index = idx[0]
	case indexAuto:
		if idx := schema.FieldIndices(PandasIndexColumn); len(idx) > 0 {
			index = idx[0]
		} else if tbl.NumCols() > 0 {
			index = 0
		} else {
			return nil, errors.Newf(errors.ErrorTypeData, "table '%s' has no columns, expected an index column", name).
				WithDetail("table", name)
		}
	}

	numRows := int(tbl.NumRows())
	t := &Table{
		name:    name,
		tbl:     tbl,
		index:   index,
		numRows: numRows,
		columns: make([]column, 0, int(tbl.NumCols())),
	}

	for i := 0; i < int(tbl.NumCols()); i++ {
		if i == index {
			continue
		}
		c, err := newColumn(tbl.Column(i))
		if err != nil {
			return nil, err.WithDetail("table", name)
		}
		if c.offsets[len(c.chunks)] != numRows {
			return nil, errors.Newf(errors.ErrorTypeData, "column '%s' of '%s' covers %d rows, expected %d",
				c.field.Name, name, c.offsets[len(c.chunks)], numRows).
				WithDetail("table", name).
				WithDetail("column", c.field.Name)
		}
		t.columns = append(t.columns, c)
	}

	tbl.Retain()
	return t, nil
}

func newColumn(col *arrow.Column) (column, *errors.Error) {
	chunked := col.Data()
	chunks := chunked.Chunks()
	c := column{
		field:   col.Field(),
		kind:    KindOf(col.DataType()),
		chunks:  chunks,
		offsets: make([]int, len(chunks)+1),
		nulls:   chunked.NullN(),
	}
	for k, chunk := range chunks {
		c.offsets[k+1] = c.offsets[k] + chunk.Len()
	}
	if c.kind.Fixed() {
		c.values = make([]any, len(chunks))
		for k, chunk := range chunks {
			v := typedValues(chunk)
			if v == nil {
				return c, errors.Newf(errors.ErrorTypeData, "column '%s' declares %s but chunk %d is %T",
					c.field.Name, col.DataType(), k, chunk)
			}
			c.values[k] = v
		}
	}
	return c, nil
}

// typedValues returns the chunk's values as the matching Go slice, aliasing
// arrow memory.
func typedValues(arr arrow.Array) any {
	switch a := arr.(type) {
	case *array.Int64:
		return a.Int64Values()
	case *array.Uint64:
		return a.Uint64Values()
	case *array.Int32:
		return a.Int32Values()
	case *array.Uint32:
		return a.Uint32Values()
	case *array.Int16:
		return a.Int16Values()
	case *array.Uint16:
		return a.Uint16Values()
	case *array.Int8:
		return a.Int8Values()
	case *array.Uint8:
		return a.Uint8Values()
	case *array.Float32:
		return a.Float32Values()
	case *array.Float64:
		return a.Float64Values()
	}
	return nil
}

// Name returns the dataset name used in diagnostics.
func (t *Table) Name() string { return t.name }

// NumColumns returns the logical column count, excluding the row-index column.
func (t *Table) NumColumns() int { return len(t.columns) }

// NumRows returns the logical row count shared by all columns.
func (t *Table) NumRows() int { return t.numRows }

// Schema returns the physical arrow schema, index column included.
func (t *Table) Schema() *arrow.Schema { return t.tbl.Schema() }

// Arrow returns the wrapped arrow table. It must not be released by the caller.
func (t *Table) Arrow() arrow.Table { return t.tbl }

// IndexColumn returns the name of the row-index column, or "" when the table
// has none.
func (t *Table) IndexColumn() string {
	if t.index < 0 {
		return ""
	}
	return t.tbl.Schema().Field(t.index).Name
}

// Retain increases the reference count of the underlying arrow data.
func (t *Table) Retain() { t.tbl.Retain() }

// Release decreases the reference count; the table must not be used once
// every holder has released it.
func (t *Table) Release() { t.tbl.Release() }

// ColumnIndex returns the logical index of the column called name.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i := range t.columns {
		if t.columns[i].field.Name == name {
			return i, nil
		}
	}
	return -1, errors.Newf(errors.ErrorTypeNotFound, "column '%s' not found in '%s'", name, t.name).
		WithDetail("table", t.name).
		WithDetail("column", name)
}

// ColumnName returns the field name of logical column col.
func (t *Table) ColumnName(col int) (string, error) {
	c, err := t.column(col)
	if err != nil {
		return "", err
	}
	return c.field.Name, nil
}

// ColumnKind returns the element kind of logical column col.
func (t *Table) ColumnKind(col int) (Kind, error) {
	c, err := t.column(col)
	if err != nil {
		return KindInvalid, err
	}
	return c.kind, nil
}

// ColumnType returns the declared arrow type of logical column col.
func (t *Table) ColumnType(col int) (arrow.DataType, error) {
	c, err := t.column(col)
	if err != nil {
		return nil, err
	}
	return c.field.Type, nil
}

// NullCount returns the number of null slots in logical column col.
func (t *Table) NullCount(col int) (int, error) {
	c, err := t.column(col)
	if err != nil {
		return 0, err
	}
	return c.nulls, nil
}

// ChunkLengths returns the physical chunk layout of logical column col.
func (t *Table) ChunkLengths(col int) ([]int, error) {
	c, err := t.column(col)
	if err != nil {
		return nil, err
	}
	lengths := make([]int, len(c.chunks))
	for k := range c.chunks {
		lengths[k] = c.offsets[k+1] - c.offsets[k]
	}
	return lengths, nil
}

// IsNull reports whether the slot at (row, col) is null.
func (t *Table) IsNull(row, col int) (bool, error) {
	c, err := t.column(col)
	if err != nil {
		return false, err
	}
	if err := t.checkRow(row); err != nil {
		return false, err
	}
	if c.nulls == 0 {
		return false, nil
	}
	k, i := c.locate(row)
	return c.chunks[k].IsNull(i), nil
}

func (t *Table) String() string {
	return fmt.Sprintf("Table(%s, %d rows, %d columns)", t.name, t.numRows, len(t.columns))
}

func (t *Table) column(col int) (*column, error) {
	if col < 0 || col >= len(t.columns) {
		return nil, errors.Newf(errors.ErrorTypeIndexOutOfRange, "column index %d out of range %d of '%s'",
			col, len(t.columns), t.name).
			WithDetail("table", t.name).
			WithDetail("column", col).
			WithDetail("num_columns", len(t.columns))
	}
	return &t.columns[col], nil
}

func (t *Table) checkRow(row int) error {
	if row < 0 || row >= t.numRows {
		return errors.Newf(errors.ErrorTypeIndexOutOfRange, "row index %d out of range %d of '%s'",
			row, t.numRows, t.name).
			WithDetail("table", t.name).
			WithDetail("row", row).
			WithDetail("num_rows", t.numRows)
	}
	return nil
}
