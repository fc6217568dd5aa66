package tensor

import "gonum.org/v1/gonum/stat/distuv"

// Zeros allocates a zeroed tensor. It panics on an invalid shape.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return New[T](MustRaw(shape, dataTypeOf[T](), b.Device()), b)
}

// Ones allocates a float32 tensor of ones.
func Ones[B Backend](shape Shape, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	fill(t.Data(), func() float32 { return 1 })
	return t
}

// Sample draws every element from dist.
//
//	w := tensor.Sample(tensor.Shape{10, 100}, distuv.Uniform{Min: -0.1, Max: 0.1}, b)
func Sample[B Backend](shape Shape, dist distuv.Rander, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	fill(t.Data(), func() float32 { return float32(dist.Rand()) })
	return t
}

// Randn samples the standard normal distribution.
func Randn[B Backend](shape Shape, b B) *Tensor[float32, B] {
	return Sample(shape, distuv.UnitNormal, b)
}

func fill[T DType](dst []T, next func() T) {
	for i := range dst {
		dst[i] = next()
	}
}
