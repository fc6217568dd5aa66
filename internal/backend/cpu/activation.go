package cpu

import (
	"math"

	"github.com/born-ml/eisnet/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.LeakyReLU(x, 0)
}

// LeakyReLU applies x for x >= 0 and slope*x otherwise.
func (cpu *CPUBackend) LeakyReLU(x *tensor.RawTensor, slope float32) *tensor.RawTensor {
	requireFloat32("leaky_relu", x)
	out := cpu.alloc("leaky_relu", x.Shape())
	od := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v < 0 {
			v *= slope
		}
		od[i] = v
	}
	return out
}

// Softmax normalizes exp(x) along dim.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	shape := x.Shape()
	dim = shape.Axis(dim)
	outer, inner := shape.Split(dim)
	n := shape[dim]

	out := cpu.alloc("softmax", shape)
	xd, od := x.AsFloat32(), out.AsFloat32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*n*inner + in
			maxVal := float32(math.Inf(-1))
			for j := 0; j < n; j++ {
				maxVal = max(maxVal, xd[base+j*inner])
			}
			var sum float64
			for j := 0; j < n; j++ {
				e := math.Exp(float64(xd[base+j*inner] - maxVal))
				od[base+j*inner] = float32(e)
				sum += e
			}
			for j := 0; j < n; j++ {
				od[base+j*inner] = float32(float64(od[base+j*inner]) / sum)
			}
		}
	}
	return out
}
