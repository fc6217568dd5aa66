// Package tensor provides the tensor types shared by the eisnet backends, layers and
// ONNX runtime.
package tensor

// DType constrains the element types a Tensor can hold.
type DType interface {
	~float32 | ~float64 | ~int64 | ~bool
}

// DataType tags the element type of a RawTensor at run time. Its String form
// is what .born headers store.
type DataType int

const (
	Float32 DataType = iota
	Float64
	Int64
	Bool
)

var dataTypes = [...]struct {
	name string
	size int
}{
	Float32: {"float32", 4},
	Float64: {"float64", 8},
	Int64:   {"int64", 8},
	Bool:    {"bool", 1},
}

func (dt DataType) valid() bool { return dt >= 0 && int(dt) < len(dataTypes) }

// Size is the width of one element in bytes.
func (dt DataType) Size() int {
	if !dt.valid() {
		panic("tensor: unknown data type")
	}
	return dataTypes[dt].size
}

func (dt DataType) String() string {
	if !dt.valid() {
		return "unknown"
	}
	return dataTypes[dt].name
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	for dt, info := range dataTypes {
		if info.name == s {
			return DataType(dt), true
		}
	}
	return 0, false
}

// dataTypeOf maps a Go element type to its tag.
func dataTypeOf[T DType]() DataType {
	var zero T
	switch any(zero).(type) {
	case float64:
		return Float64
	case int64:
		return Int64
	case bool:
		return Bool
	default:
		return Float32
	}
}
