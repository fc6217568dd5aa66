package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/eisnet/internal/tensor"
)

// BatchNorm normalizes x over channel axis 1:
//
//	y = (x - mean[c]) / sqrt(variance[c] + eps) * scale[c] + shift[c]
//
// x is [N, C] or [N, C, L]; statistics and affine parameters are [C].
func (cpu *CPUBackend) BatchNorm(x, scale, shift, mean, variance *tensor.RawTensor, eps float32) *tensor.RawTensor {
	requireFloat32("batchnorm", x, scale, shift, mean, variance)
	if len(x.Shape()) < 2 {
		panic(fmt.Sprintf("batchnorm: expected [N, C, ...] input, got %v", x.Shape()))
	}

	channels := x.Shape()[1]
	for _, p := range []*tensor.RawTensor{scale, shift, mean, variance} {
		if p.NumElements() != channels {
			panic(fmt.Sprintf("batchnorm: parameter shape %v does not match %d channels", p.Shape(), channels))
		}
	}

	outer, inner := x.Shape().Split(1)
	out := cpu.alloc("batchnorm", x.Shape())
	xd, od := x.AsFloat32(), out.AsFloat32()
	g, b, m, v := scale.AsFloat32(), shift.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()

	for c := 0; c < channels; c++ {
		inv := g[c] / float32(math.Sqrt(float64(v[c]+eps)))
		for o := 0; o < outer; o++ {
			base := (o*channels + c) * inner
			for i := base; i < base+inner; i++ {
				od[i] = (xd[i]-m[c])*inv + b[c]
			}
		}
	}
	return out
}

// ChannelMoments returns the per-channel mean and biased variance of x over every axis
// except axis 1.
func (cpu *CPUBackend) ChannelMoments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	requireFloat32("moments", x)
	if len(x.Shape()) < 2 {
		panic(fmt.Sprintf("moments: expected [N, C, ...] input, got %v", x.Shape()))
	}

	channels := x.Shape()[1]
	outer, inner := x.Shape().Split(1)
	count := float64(outer * inner)

	mean = cpu.alloc("moments", tensor.Shape{channels})
	variance = cpu.alloc("moments", tensor.Shape{channels})
	xd, md, vd := x.AsFloat32(), mean.AsFloat32(), variance.AsFloat32()

	for c := 0; c < channels; c++ {
		var sum, sq float64
		for o := 0; o < outer; o++ {
			base := (o*channels + c) * inner
			for _, v := range xd[base : base+inner] {
				sum += float64(v)
			}
		}
		mu := sum / count
		for o := 0; o < outer; o++ {
			base := (o*channels + c) * inner
			for _, v := range xd[base : base+inner] {
				d := float64(v) - mu
				sq += d * d
			}
		}
		md[c] = float32(mu)
		vd[c] = float32(sq / count)
	}
	return mean, variance
}
