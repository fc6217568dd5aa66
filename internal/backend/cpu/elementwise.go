package cpu

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	out := cpu.alloc(op, outShape)
	ad, bd, od := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()

	// Fast path: same shape
	if a.Shape().Equal(b.Shape()) {
		for i := range od {
			od[i] = f(ad[i], bd[i])
		}
		return out
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	idx := make([]int, len(outShape))
	ai, bi := 0, 0
	for i := range od {
		od[i] = f(ad[ai], bd[bi])
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			ai += aStrides[d]
			bi += bStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			ai -= aStrides[d] * outShape[d]
			bi -= bStrides[d] * outShape[d]
			idx[d] = 0
		}
	}
	return out
}

// broadcastStrides returns strides of s aligned to out, with 0 for broadcast dimensions.
func broadcastStrides(s, out tensor.Shape) []int {
	strides := make([]int, len(out))
	src := s.ComputeStrides()
	offset := len(out) - len(s)
	for i := range s {
		if s[i] != 1 {
			strides[offset+i] = src[i]
		}
	}
	return strides
}
