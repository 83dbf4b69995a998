package hostview

import (
	"io"
	"math"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/alphadata/pkg/table"
)

// Encode writes v as JSON. Non-finite floats in hostview values are written
// as strings.
func Encode(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(jsonSafe(v))
}

// Marshal returns v as JSON.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(jsonSafe(v))
}

// WriteRecords writes the table as JSON lines, one object per row, keyed by
// column name. limit <= 0 writes every row.
func WriteRecords(w io.Writer, t *table.Table, limit int) error {
	n := t.NumRows()
	if limit > 0 && limit < n {
		n = limit
	}
	enc := json.NewEncoder(w)
	for row := 0; row < n; row++ {
		rec, err := Row(t, row)
		if err != nil {
			return err
		}
		if err := enc.Encode(jsonSafe(rec)); err != nil {
			return err
		}
	}
	return nil
}

// jsonSafe replaces non-finite floats inside the views built by this package
// with their string names. Other values pass through unchanged.
func jsonSafe(v any) any {
	switch x := v.(type) {
	case float64:
		return finite(x, v)
	case float32:
		return finite(float64(x), v)
	case Point:
		x.Value = jsonSafe(x.Value)
		return x
	case []Point:
		out := make([]Point, len(x))
		for i, p := range x {
			p.Value = jsonSafe(p.Value)
			out[i] = p
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonSafe(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonSafe(e)
		}
		return out
	case map[string][]any:
		out := make(map[string][]any, len(x))
		for k, e := range x {
			out[k] = jsonSafe(e).([]any)
		}
		return out
	}
	return v
}

func finite(f float64, v any) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return v
}
