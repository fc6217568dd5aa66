package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/eisnet/internal/tensor"
)

// MatMul multiplies a [..., K] by b [K, N]; leading dimensions of a are kept.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("matmul", a, b)
	requireRank("matmul", b, 2)
	if len(a.Shape()) < 1 {
		panic("matmul: scalar operand")
	}

	k := a.Shape().Last()
	if b.Shape()[0] != k {
		panic(fmt.Sprintf("matmul: inner dimensions differ: %v @ %v", a.Shape(), b.Shape()))
	}
	n := b.Shape()[1]
	m := a.NumElements() / k

	outShape := a.Shape().Clone()
	outShape[len(outShape)-1] = n
	out := cpu.alloc("matmul", outShape)

	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		general(m, k, a.AsFloat32()),
		general(k, n, b.AsFloat32()),
		0, general(m, n, out.AsFloat32()))
	return out
}

// Linear computes x @ weight.T + bias over the last dimension of x.
//
// Input shape: [..., in]
// Weight shape: [out, in]
// Output shape: [..., out]
func (cpu *CPUBackend) Linear(x, weight, bias *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("linear", x, weight, bias)
	requireRank("linear", weight, 2)

	outFeatures, inFeatures := weight.Shape()[0], weight.Shape()[1]
	if x.Shape().Last() != inFeatures {
		panic(fmt.Sprintf("linear: expected input with %d features, got shape %v", inFeatures, x.Shape()))
	}
	m := x.NumElements() / inFeatures

	outShape := x.Shape().Clone()
	outShape[len(outShape)-1] = outFeatures
	out := cpu.alloc("linear", outShape)
	od := out.AsFloat32()

	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		general(m, inFeatures, x.AsFloat32()),
		general(outFeatures, inFeatures, weight.AsFloat32()),
		0, general(m, outFeatures, od))

	if bias != nil {
		if bias.NumElements() != outFeatures {
			panic(fmt.Sprintf("linear: bias has %d elements, want %d", bias.NumElements(), outFeatures))
		}
		bd := bias.AsFloat32()
		for row := 0; row < m; row++ {
			r := od[row*outFeatures : (row+1)*outFeatures]
			for j := range r {
				r[j] += bd[j]
			}
		}
	}
	return out
}

// general wraps a dense row-major matrix for BLAS.
func general(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}
