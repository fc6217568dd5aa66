package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/eisnet/internal/parallel"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Conv1D performs grouped 1D convolution using the im2col algorithm.
//
// Input shape: [N, C_in, L]
// Weight shape: [C_out, C_in/groups, K]
// Output shape: [N, C_out, (L-K)/stride + 1]
//
// No padding is applied; callers pad explicitly. Each (sample, group) pair is an
// independent GEMM of the group's weights against its column matrix and runs on
// its own worker.
func (cpu *CPUBackend) Conv1D(input, weight, bias *tensor.RawTensor, stride, groups int) *tensor.RawTensor {
	requireFloat32("conv1d", input, weight, bias)
	requireRank("conv1d", input, 3)
	requireRank("conv1d", weight, 3)

	if stride < 1 || groups < 1 {
		panic(fmt.Sprintf("conv1d: invalid stride %d or groups %d", stride, groups))
	}

	n, cIn, length := input.Shape()[0], input.Shape()[1], input.Shape()[2]
	cOut, cInG, k := weight.Shape()[0], weight.Shape()[1], weight.Shape()[2]

	if cIn%groups != 0 || cOut%groups != 0 {
		panic(fmt.Sprintf("conv1d: channels %d->%d not divisible by groups %d", cIn, cOut, groups))
	}
	if cIn/groups != cInG {
		panic(fmt.Sprintf("conv1d: input channels %d != kernel channels %d (groups %d)", cIn, cInG*groups, groups))
	}
	if length < k {
		panic(fmt.Sprintf("conv1d: input length %d shorter than kernel %d", length, k))
	}
	if bias != nil && bias.NumElements() != cOut {
		panic(fmt.Sprintf("conv1d: bias has %d elements, want %d", bias.NumElements(), cOut))
	}

	lOut := (length-k)/stride + 1
	cOutG := cOut / groups
	out := cpu.alloc("conv1d", tensor.Shape{n, cOut, lOut})

	x, w, od := input.AsFloat32(), weight.AsFloat32(), out.AsFloat32()
	var b []float32
	if bias != nil {
		b = bias.AsFloat32()
	}

	parallel.ForBatch(n, groups, func(s, g int) {
		rows := cInG * k
		col := make([]float32, rows*lOut)
		for c := 0; c < cInG; c++ {
			src := x[(s*cIn+g*cInG+c)*length:]
			for kk := 0; kk < k; kk++ {
				dst := col[(c*k+kk)*lOut : (c*k+kk+1)*lOut]
				for t := range dst {
					dst[t] = src[t*stride+kk]
				}
			}
		}

		dst := od[(s*cOut+g*cOutG)*lOut:]
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			general(cOutG, rows, w[g*cOutG*rows:]),
			general(rows, lOut, col),
			0, general(cOutG, lOut, dst))

		if b != nil {
			for oc := 0; oc < cOutG; oc++ {
				bv := b[g*cOutG+oc]
				row := dst[oc*lOut : (oc+1)*lOut]
				for t := range row {
					row[t] += bv
				}
			}
		}
	}, cpu.parallel.WithGrain(1))

	return out
}

// MaxPool1D takes the maximum over windows of the last dimension.
//
// Input shape: [N, C, L]
// Output shape: [N, C, (L-kernelSize)/stride + 1]
func (cpu *CPUBackend) MaxPool1D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	requireFloat32("maxpool1d", input)
	requireRank("maxpool1d", input, 3)

	n, c, length := input.Shape()[0], input.Shape()[1], input.Shape()[2]
	if kernelSize < 1 || stride < 1 || length < kernelSize {
		panic(fmt.Sprintf("maxpool1d: invalid kernel %d / stride %d for length %d", kernelSize, stride, length))
	}

	lOut := (length-kernelSize)/stride + 1
	out := cpu.alloc("maxpool1d", tensor.Shape{n, c, lOut})
	x, od := input.AsFloat32(), out.AsFloat32()

	for row := 0; row < n*c; row++ {
		src := x[row*length : (row+1)*length]
		dst := od[row*lOut : (row+1)*lOut]
		for t := range dst {
			window := src[t*stride : t*stride+kernelSize]
			m := window[0]
			for _, v := range window[1:] {
				if v > m {
					m = v
				}
			}
			dst[t] = m
		}
	}
	return out
}
