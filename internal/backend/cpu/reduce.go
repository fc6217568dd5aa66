package cpu

import (
	"github.com/born-ml/eisnet/internal/tensor"
)

// MeanDim averages x along dim. The dimension is kept with size 1 when keepDim is set.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("mean", x)
	shape := x.Shape()
	dim = shape.Axis(dim)
	outer, inner := shape.Split(dim)
	n := shape[dim]

	outShape := make(tensor.Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	out := cpu.alloc("mean", outShape)
	xd, od := x.AsFloat32(), out.AsFloat32()
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var sum float64
			for j := 0; j < n; j++ {
				sum += float64(xd[(o*n+j)*inner+in])
			}
			od[o*inner+in] = float32(sum / float64(n))
		}
	}
	return out
}
