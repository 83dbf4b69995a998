package table

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// Kind is the closed set of element types a column can be read as.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt64
	KindUint64
	KindInt32
	KindUint32
	KindInt16
	KindUint16
	KindInt8
	KindUint8
	KindFloat32
	KindFloat64
	KindBool
	KindString
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindInt64:   "int64",
	KindUint64:  "uint64",
	KindInt32:   "int32",
	KindUint32:  "uint32",
	KindInt16:   "int16",
	KindUint16:  "uint16",
	KindInt8:    "int8",
	KindUint8:   "uint8",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindBool:    "bool",
	KindString:  "string",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindInvalid]
	}
	return kindNames[k]
}

// Fixed reports whether values of the kind are stored as a contiguous
// fixed-width buffer that can be exposed without copying.
func (k Kind) Fixed() bool {
	return k >= KindInt64 && k <= KindFloat64
}

// Element is the set of Go types columns can be read as.
type Element interface {
	int64 | uint64 | int32 | uint32 | int16 | uint16 | int8 | uint8 |
		float32 | float64 | bool | string
}

// KindOf maps an arrow data type onto a Kind. Types outside the supported set
// map to KindInvalid.
func KindOf(dt arrow.DataType) Kind {
	if dt == nil {
		return KindInvalid
	}
	switch dt.ID() {
	case arrow.INT64:
		return KindInt64
	case arrow.UINT64:
		return KindUint64
	case arrow.INT32:
		return KindInt32
	case arrow.UINT32:
		return KindUint32
	case arrow.INT16:
		return KindInt16
	case arrow.UINT16:
		return KindUint16
	case arrow.INT8:
		return KindInt8
	case arrow.UINT8:
		return KindUint8
	case arrow.FLOAT32:
		return KindFloat32
	case arrow.FLOAT64:
		return KindFloat64
	case arrow.BOOL:
		return KindBool
	case arrow.STRING:
		return KindString
	default:
		return KindInvalid
	}
}

func kindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int64:
		return KindInt64
	case uint64:
		return KindUint64
	case int32:
		return KindInt32
	case uint32:
		return KindUint32
	case int16:
		return KindInt16
	case uint16:
		return KindUint16
	case int8:
		return KindInt8
	case uint8:
		return KindUint8
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case bool:
		return KindBool
	case string:
		return KindString
	}
	return KindInvalid
}

// nullValue is what a null slot reads as: NaN for floating point, the zero
// value for everything else.
func nullValue[T Element]() T {
	var zero T
	switch any(zero).(type) {
	case float64:
		return any(math.NaN()).(T)
	case float32:
		return any(float32(math.NaN())).(T)
	}
	return zero
}
