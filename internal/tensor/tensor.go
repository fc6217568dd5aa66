package tensor

import "fmt"

// Tensor is a RawTensor with a static element type, bound to the backend
// that computes on it. Layers are written against Tensor; the raw form is
// what crosses package boundaries.
//
//	b := cpu.New()
//	x := tensor.Randn(tensor.Shape{16, 100}, b)
//	y := x.LeakyReLU(0.01)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps raw. The caller guarantees raw holds elements of type T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if n := shape.NumElements(); n != len(data) {
		return nil, fmt.Errorf("%v tensor needs %d values, got %d", shape, n, len(data))
	}
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	copy(elements[T](raw), data)
	return New[T](raw, b), nil
}

func (t *Tensor[T, B]) Raw() *RawTensor  { return t.raw }
func (t *Tensor[T, B]) Backend() B       { return t.backend }
func (t *Tensor[T, B]) Shape() Shape     { return t.raw.shape }
func (t *Tensor[T, B]) DType() DataType  { return t.raw.dtype }
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }

// Data aliases the tensor memory.
func (t *Tensor[T, B]) Data() []T { return elements[T](t.raw) }

func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T](t.raw.Clone(), t.backend)
}

// At reads one element. It panics on a wrong index count or an index out
// of range.
func (t *Tensor[T, B]) At(index ...int) T {
	return t.Data()[t.flat(index)]
}

// Set writes one element, with the same index rules as At.
func (t *Tensor[T, B]) Set(v T, index ...int) {
	t.Data()[t.flat(index)] = v
}

func (t *Tensor[T, B]) flat(index []int) int {
	shape := t.Shape()
	if len(index) != len(shape) {
		panic(fmt.Sprintf("tensor: %d indices for shape %v", len(index), shape))
	}
	pos := 0
	for i, idx := range index {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", index, shape))
		}
		pos = pos*shape[i] + idx
	}
	return pos
}

func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("%s%v on %s (%s)", t.DType(), []int(t.Shape()), t.raw.device, t.backend.Name())
}
