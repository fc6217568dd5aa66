package cpu

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/tensor"
)

// Reshape returns a copy of x with a new shape. One dimension may be -1 and is inferred.
func (cpu *CPUBackend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	resolved := shape.Clone()
	infer := -1
	known := 1
	for i, d := range resolved {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d > 0:
			known *= d
		default:
			panic(fmt.Sprintf("reshape: invalid target shape %v", shape))
		}
	}
	if infer >= 0 {
		if known == 0 || x.NumElements()%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension reshaping %v to %v", x.Shape(), shape))
		}
		resolved[infer] = x.NumElements() / known
	}
	if resolved.NumElements() != x.NumElements() {
		panic(fmt.Sprintf("reshape: cannot reshape %v to %v", x.Shape(), shape))
	}
	return x.Clone().View(resolved)
}

// Pad extends dimension dim of x by before/after elements filled with value.
func (cpu *CPUBackend) Pad(x *tensor.RawTensor, dim, before, after int, value float32) *tensor.RawTensor {
	requireFloat32("pad", x)
	if before < 0 || after < 0 {
		panic(fmt.Sprintf("pad: negative padding %d/%d", before, after))
	}

	shape := x.Shape()
	dim = shape.Axis(dim)
	outer, inner := shape.Split(dim)
	n := shape[dim]

	outShape := shape.Clone()
	outShape[dim] = n + before + after
	out := cpu.alloc("pad", outShape)
	xd, od := x.AsFloat32(), out.AsFloat32()

	if value != 0 {
		for i := range od {
			od[i] = value
		}
	}

	span := n * inner
	outSpan := outShape[dim] * inner
	for o := 0; o < outer; o++ {
		copy(od[o*outSpan+before*inner:], xd[o*span:(o+1)*span])
	}
	return out
}
