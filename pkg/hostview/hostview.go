// Package hostview converts table data into host-native Go values.
//
// Unlike the typed accessors of package table, which coerce nulls to NaN or
// the zero value, hostview reports a null slot as nil. Stored NaN and ±Inf
// stay floats, so a missing value is never confused with a non-finite one.
// Column types are checked exactly as the typed accessors check them.
//
// JSON has no non-finite numbers: Encode, Marshal and WriteRecords write them
// as the strings "NaN", "+Inf" and "-Inf", and null as null.
package hostview

import (
	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/table"
)

// Point is one entry of a window view.
type Point struct {
	Rel   int `json:"rel"`
	Row   int `json:"row"`
	Value any `json:"value"`
}

// Value returns the cell at (row, col) as a Go value, or nil for null.
func Value(t *table.Table, row, col int) (any, error) {
	kind, err := t.ColumnKind(col)
	if err != nil {
		return nil, err
	}
	read, err := reader(t, col, kind)
	if err != nil {
		return nil, err
	}
	return read(row)
}

// Row returns every logical column of row keyed by column name. Tables with
// duplicate column names are rejected.
func Row(t *table.Table, row int) (map[string]any, error) {
	names, err := columnNames(t)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(names))
	for col, name := range names {
		v, err := Value(t, row, col)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Column returns every value of col.
func Column(t *table.Table, col int) ([]any, error) {
	kind, err := t.ColumnKind(col)
	if err != nil {
		return nil, err
	}
	read, err := reader(t, col, kind)
	if err != nil {
		return nil, err
	}
	out := make([]any, t.NumRows())
	for row := range out {
		if out[row], err = read(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Window returns the window of col around center with the bounds of
// table.Visit.
func Window(t *table.Table, center, col, offset int) ([]Point, error) {
	kind, err := t.ColumnKind(col)
	if err != nil {
		return nil, err
	}
	switch kind {
	case table.KindInt64:
		return window[int64](t, center, col, offset)
	case table.KindUint64:
		return window[uint64](t, center, col, offset)
	case table.KindInt32:
		return window[int32](t, center, col, offset)
	case table.KindUint32:
		return window[uint32](t, center, col, offset)
	case table.KindInt16:
		return window[int16](t, center, col, offset)
	case table.KindUint16:
		return window[uint16](t, center, col, offset)
	case table.KindInt8:
		return window[int8](t, center, col, offset)
	case table.KindUint8:
		return window[uint8](t, center, col, offset)
	case table.KindFloat32:
		return window[float32](t, center, col, offset)
	case table.KindFloat64:
		return window[float64](t, center, col, offset)
	case table.KindBool:
		return window[bool](t, center, col, offset)
	case table.KindString:
		return window[string](t, center, col, offset)
	}
	return nil, unsupported(t, col)
}

// Columns returns the whole table keyed by column name. Tables with duplicate
// column names are rejected.
func Columns(t *table.Table) (map[string][]any, error) {
	names, err := columnNames(t)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]any, len(names))
	for col, name := range names {
		if out[name], err = Column(t, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// columnNames returns the logical column names, which must be unique to key
// a map.
func columnNames(t *table.Table) ([]string, error) {
	names := make([]string, t.NumColumns())
	seen := make(map[string]int, len(names))
	for col := range names {
		name, err := t.ColumnName(col)
		if err != nil {
			return nil, err
		}
		if first, ok := seen[name]; ok {
			return nil, errors.Newf(errors.ErrorTypeData,
				"duplicate column name '%s' in '%s' (columns %d and %d)", name, t.Name(), first, col).
				WithDetail("table", t.Name()).
				WithDetail("column", name)
		}
		seen[name] = col
		names[col] = name
	}
	return names, nil
}

func window[T table.Element](t *table.Table, center, col, offset int) ([]Point, error) {
	var (
		points []Point
		err    error
	)
	visitErr := table.Visit[T](t, center, col, offset, func(v T, rel int) bool {
		row := center + rel
		var null bool
		if null, err = t.IsNull(row, col); err != nil {
			return true
		}
		p := Point{Rel: rel, Row: row}
		if !null {
			p.Value = v
		}
		points = append(points, p)
		return false
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return points, err
}

// reader returns a per-row accessor for col.
func reader(t *table.Table, col int, kind table.Kind) (func(row int) (any, error), error) {
	switch kind {
	case table.KindInt64:
		return cell[int64](t, col), nil
	case table.KindUint64:
		return cell[uint64](t, col), nil
	case table.KindInt32:
		return cell[int32](t, col), nil
	case table.KindUint32:
		return cell[uint32](t, col), nil
	case table.KindInt16:
		return cell[int16](t, col), nil
	case table.KindUint16:
		return cell[uint16](t, col), nil
	case table.KindInt8:
		return cell[int8](t, col), nil
	case table.KindUint8:
		return cell[uint8](t, col), nil
	case table.KindFloat32:
		return cell[float32](t, col), nil
	case table.KindFloat64:
		return cell[float64](t, col), nil
	case table.KindBool:
		return cell[bool](t, col), nil
	case table.KindString:
		return cell[string](t, col), nil
	}
	return nil, unsupported(t, col)
}

func cell[T table.Element](t *table.Table, col int) func(row int) (any, error) {
	return func(row int) (any, error) {
		v, err := table.Value[T](t, row, col)
		if err != nil {
			return nil, err
		}
		null, err := t.IsNull(row, col)
		if err != nil || null {
			return nil, err
		}
		return v, nil
	}
}

func unsupported(t *table.Table, col int) error {
	dt, _ := t.ColumnType(col)
	name := "<nil>"
	if dt != nil {
		name = dt.Name()
	}
	return errors.Newf(errors.ErrorTypeTypeMismatch, "unsupported data type '%s' of '%s'", name, t.Name()).
		WithDetail("table", t.Name()).
		WithDetail("column", col).
		WithDetail("actual", name)
}
