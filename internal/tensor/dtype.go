// Package tensor provides the core tensor types for the GenerativeModels library.
package tensor

// DType constrains the element types a Tensor can hold. The library
// stores float32 weights, float64 accumulators and int64 codebook
// indices; there is no wider numeric tower.
type DType interface {
	~float32 | ~float64 | ~int64
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int64
)

var dataTypeInfo = [...]struct {
	name string
	size int
}{
	Float32: {"float32", 4},
	Float64: {"float64", 8},
	Int64:   {"int64", 8},
}

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	if dt < 0 || int(dt) >= len(dataTypeInfo) {
		panic("unknown data type")
	}
	return dataTypeInfo[dt].size
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	if dt < 0 || int(dt) >= len(dataTypeInfo) {
		return "unknown"
	}
	return dataTypeInfo[dt].name
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int64:
		return Int64
	default:
		panic("unsupported type")
	}
}
