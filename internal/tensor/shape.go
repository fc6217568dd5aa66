package tensor

import (
	"fmt"
	"slices"
)

// Shape lists the dimensions of a tensor, outermost first. The empty shape
// is a scalar.
type Shape []int

// NumElements is the product of the dimensions.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects zero and negative dimensions.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("dimension %d of %v is %d, want > 0", i, s, s[i])
	}
	return nil
}

func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

func (s Shape) Clone() Shape { return slices.Clone(s) }

// Last is the size of the innermost dimension.
func (s Shape) Last() int { return s[len(s)-1] }

// Axis maps a negative axis to its positive index. It panics when the axis
// is outside the shape.
func (s Shape) Axis(axis int) int {
	if axis < 0 {
		axis += len(s)
	}
	if axis < 0 || axis >= len(s) {
		panic(fmt.Sprintf("axis %d out of range for shape %v", axis, s))
	}
	return axis
}

// Split views s as [outer, s[axis], inner] and returns outer and inner.
func (s Shape) Split(axis int) (outer, inner int) {
	axis = s.Axis(axis)
	return s[:axis].NumElements(), s[axis+1:].NumElements()
}

// ComputeStrides returns the row-major element strides of s.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// BroadcastShapes returns the NumPy broadcast of a and b. Shapes are aligned
// on the right; a dimension of 1 stretches to match the other side.
//
//	[3 1] with [3 5]  -> [3 5]
//	[4]   with [2 4]  -> [2 4]
//	[3 4] with [3 5]  -> error
func BroadcastShapes(a, b Shape) (Shape, error) {
	if len(a) < len(b) {
		a, b = b, a
	}
	out := a.Clone()
	offset := len(a) - len(b)
	for i, db := range b {
		da := a[offset+i]
		switch {
		case da == db || db == 1:
		case da == 1:
			out[offset+i] = db
		default:
			return nil, fmt.Errorf("cannot broadcast %v with %v: dimension %d is %d vs %d", a, b, offset+i, da, db)
		}
	}
	return out, nil
}
