package hostview

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/alphadata/pkg/errors"
	"github.com/ajitpratap0/alphadata/pkg/table"
	"github.com/ajitpratap0/alphadata/pkg/testutil"
)

func newTable(t *testing.T) *table.Table {
	t.Helper()
	mem := memory.DefaultAllocator
	at := testutil.NewTable(t,
		testutil.ChunkedColumn(t, mem, "close",
			testutil.Dense(10.5, math.NaN()),
			testutil.Chunk[float64]{Values: []float64{0, 12}, Valid: []bool{false, true}}),
		testutil.ChunkedColumn(t, mem, "volume",
			testutil.Chunk[int64]{Values: []int64{100, 0, 300, 400}, Valid: []bool{true, false, true, true}}),
		testutil.ChunkedColumn(t, mem, "symbol", testutil.Dense("AAA", "BBB"), testutil.Dense("CCC", "DDD")),
		testutil.ChunkedColumn(t, mem, "halted", testutil.Dense(false, true, false, false)),
		testutil.IndexColumn(t, mem, 4),
	)
	defer at.Release()
	tb, err := table.New("quotes", at)
	require.NoError(t, err)
	t.Cleanup(tb.Release)
	return tb
}

func TestValue(t *testing.T) {
	tb := newTable(t)

	v, err := Value(tb, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 10.5, v)

	// a stored NaN stays a float, a null reads as nil
	v, err = Value(tb, 1, 0)
	require.NoError(t, err)
	require.IsType(t, float64(0), v)
	assert.True(t, math.IsNaN(v.(float64)))
	v, err = Value(tb, 2, 0)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Value(tb, 1, 1)
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = Value(tb, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), v)

	v, err = Value(tb, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, "DDD", v)

	_, err = Value(tb, 4, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIndexOutOfRange))
	_, err = Value(tb, 0, 4)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIndexOutOfRange))
}

func TestRowAndColumns(t *testing.T) {
	tb := newTable(t)

	row, err := Row(tb, 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"close":  nil,
		"volume": int64(300),
		"symbol": "CCC",
		"halted": false,
	}, row)

	cols, err := Columns(tb)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(100), nil, int64(300), int64(400)}, cols["volume"])
	assert.Equal(t, []any{"AAA", "BBB", "CCC", "DDD"}, cols["symbol"])
	assert.Len(t, cols, 4)
}

func TestWindow(t *testing.T) {
	tb := newTable(t)

	points, err := Window(tb, 2, 1, -5)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Rel: -2, Row: 0, Value: int64(100)},
		{Rel: -1, Row: 1, Value: nil},
		{Rel: 0, Row: 2, Value: int64(300)},
	}, points)

	points, err = Window(tb, 1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Rel: 0, Row: 1, Value: "BBB"},
		{Rel: 1, Row: 2, Value: "CCC"},
	}, points)

	_, err = Window(tb, 9, 0, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIndexOutOfRange))
}

func TestColumnKinds(t *testing.T) {
	mem := memory.DefaultAllocator
	at := testutil.NewTable(t,
		testutil.ChunkedColumn(t, mem, "u8", testutil.Dense[uint8](1)),
		testutil.ChunkedColumn(t, mem, "f32", testutil.Dense[float32](float32(math.Inf(1)))))
	defer at.Release()
	tb, err := table.New("kinds", at, table.WithoutIndexColumn())
	require.NoError(t, err)
	defer tb.Release()

	v, err := Value(tb, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)

	v, err = Value(tb, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(math.Inf(1)), v)
}

func TestDuplicateColumnNames(t *testing.T) {
	mem := memory.DefaultAllocator
	at := testutil.NewTable(t,
		testutil.ChunkedColumn(t, mem, "px", testutil.Dense(1.0, 2.0)),
		testutil.ChunkedColumn(t, mem, "px", testutil.Dense(3.0, 4.0)))
	defer at.Release()
	tb, err := table.New("dup", at, table.WithoutIndexColumn())
	require.NoError(t, err)
	defer tb.Release()

	_, err = Row(tb, 0)
	require.True(t, errors.IsType(err, errors.ErrorTypeData), "%v", err)
	assert.Contains(t, err.Error(), "duplicate column name 'px'")

	_, err = Columns(tb)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	var buf bytes.Buffer
	assert.Error(t, WriteRecords(&buf, tb, 0))

	// positional access is unaffected
	v, err := Value(tb, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
}

func TestNonFiniteEncoding(t *testing.T) {
	mem := memory.DefaultAllocator
	at := testutil.NewTable(t,
		testutil.ChunkedColumn(t, mem, "x",
			testutil.Chunk[float64]{
				Values: []float64{math.Inf(1), math.Inf(-1), math.NaN(), 0, 1.5},
				Valid:  []bool{true, true, true, false, true},
			}))
	defer at.Release()
	tb, err := table.New("edge", at, table.WithoutIndexColumn())
	require.NoError(t, err)
	defer tb.Release()

	col, err := Column(tb, 0)
	require.NoError(t, err)
	data, err := Marshal(col)
	require.NoError(t, err)
	assert.JSONEq(t, `["+Inf","-Inf","NaN",null,1.5]`, string(data))

	points, err := Window(tb, 0, 0, 1)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, points, false))
	assert.JSONEq(t, `[{"rel":0,"row":0,"value":"+Inf"},{"rel":1,"row":1,"value":"-Inf"}]`, buf.String())

	buf.Reset()
	require.NoError(t, WriteRecords(&buf, tb, 1))
	assert.JSONEq(t, `{"x":"+Inf"}`, buf.String())
}

func TestUnsupportedColumn(t *testing.T) {
	dt := arrow.FixedWidthTypes.Date32
	chunked := arrow.NewChunked(dt, nil)
	defer chunked.Release()
	at := testutil.NewTable(t, arrow.NewColumn(arrow.Field{Name: "d", Type: dt}, chunked))
	defer at.Release()
	tb, err := table.New("dates", at, table.WithoutIndexColumn())
	require.NoError(t, err)
	defer tb.Release()

	_, err = Column(tb, 0)
	require.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
	assert.Contains(t, err.Error(), "date32")
	_, err = Window(tb, 0, 0, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTypeMismatch))
}

func TestEncoding(t *testing.T) {
	tb := newTable(t)

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, tb, 2))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"close":10.5,"volume":100,"symbol":"AAA","halted":false}`, lines[0])
	assert.JSONEq(t, `{"close":"NaN","volume":null,"symbol":"BBB","halted":true}`, lines[1])

	points, err := Window(tb, 3, 0, -1)
	require.NoError(t, err)
	data, err := Marshal(points)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"rel":-1,"row":2,"value":null},{"rel":0,"row":3,"value":12}]`, string(data))

	buf.Reset()
	require.NoError(t, Encode(&buf, map[string]int{"rows": tb.NumRows()}, true))
	assert.Equal(t, "{\n  \"rows\": 4\n}\n", buf.String())
}
