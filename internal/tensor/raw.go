package tensor

import (
	"fmt"
	"unsafe"
)

// Device identifies where tensor memory lives. eisnet only computes on the CPU.
type Device int

const CPU Device = 0

func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// RawTensor is an untyped, contiguous, row-major buffer with a shape. Layers
// wrap it in Tensor; backends, the ONNX runtime and the .born codec use it
// directly.
type RawTensor struct {
	data   []byte
	shape  Shape
	dtype  DataType
	device Device
}

// NewRaw allocates a zeroed tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		dtype:  dtype,
		device: device,
	}, nil
}

// MustRaw is NewRaw for shapes computed by the caller. It panics on an
// invalid shape.
func MustRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// FromBytes copies little-endian element data into a new tensor.
func FromBytes(data []byte, shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	if len(data) != len(r.data) {
		return nil, fmt.Errorf("%v %s tensor needs %d bytes, got %d", shape, dtype, len(r.data), len(data))
	}
	copy(r.data, data)
	return r, nil
}

// FromFloat32 copies values into a new CPU tensor.
func FromFloat32(values []float32, shape Shape) (*RawTensor, error) {
	if n := shape.NumElements(); n != len(values) {
		return nil, fmt.Errorf("%v tensor needs %d values, got %d", shape, n, len(values))
	}
	r, err := NewRaw(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	copy(r.AsFloat32(), values)
	return r, nil
}

func (r *RawTensor) Shape() Shape         { return r.shape }
func (r *RawTensor) DType() DataType      { return r.dtype }
func (r *RawTensor) Device() Device       { return r.device }
func (r *RawTensor) NumElements() int     { return r.shape.NumElements() }
func (r *RawTensor) ByteSize() int        { return len(r.data) }
func (r *RawTensor) Data() []byte         { return r.data }
func (r *RawTensor) AsFloat32() []float32 { return elements[float32](r) }
func (r *RawTensor) AsFloat64() []float64 { return elements[float64](r) }
func (r *RawTensor) AsInt64() []int64     { return elements[int64](r) }
func (r *RawTensor) AsBool() []bool       { return elements[bool](r) }

// elements reinterprets the buffer in place. Writes through the slice change
// the tensor. It panics when E does not match the tensor's dtype.
func elements[E DType](r *RawTensor) []E {
	if want := dataTypeOf[E](); r.dtype != want {
		panic(fmt.Sprintf("tensor: %s tensor read as %s", r.dtype, want))
	}
	//nolint:gosec // length is bounded by the allocation made in NewRaw.
	return unsafe.Slice((*E)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// Clone copies the buffer.
func (r *RawTensor) Clone() *RawTensor {
	c := *r
	c.data = append([]byte(nil), r.data...)
	c.shape = r.shape.Clone()
	return &c
}

// View shares the buffer under another shape with the same element count.
func (r *RawTensor) View(shape Shape) *RawTensor {
	if shape.NumElements() != r.NumElements() {
		panic(fmt.Sprintf("tensor: cannot view %v as %v", r.shape, shape))
	}
	v := *r
	v.shape = shape.Clone()
	return &v
}
