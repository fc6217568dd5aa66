// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the tensors eisnet layers compute on and the ONNX
// runtime consumes. Tensor[T, B] is typed and bound to a backend; RawTensor
// is the untyped buffer underneath.
//
//	b := cpu.New()
//	x := tensor.Randn(tensor.Shape{1, 100}, b)
//	probs := x.Softmax(-1)
package tensor

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/eisnet/internal/tensor"
)

// DType constrains Tensor element types.
type DType = tensor.DType

// DataType tags the element type of a RawTensor.
type DataType = tensor.DataType

const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int64   DataType = tensor.Int64
	Bool    DataType = tensor.Bool
)

// Device identifies where tensor memory lives.
type Device = tensor.Device

// CPU is the only device eisnet computes on.
const CPU Device = tensor.CPU

// Shape lists tensor dimensions, outermost first.
type Shape = tensor.Shape

// RawTensor is a contiguous row-major buffer with a shape.
type RawTensor = tensor.RawTensor

// Backend computes on raw tensors; see backend/cpu.
type Backend = tensor.Backend

// Tensor is a typed tensor bound to a backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// New wraps raw, which must hold elements of type T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T](raw, b)
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// FromFloat32 copies values into a raw CPU tensor.
func FromFloat32(values []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(values, shape)
}

// Zeros allocates a zeroed tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones allocates a float32 tensor of ones.
func Ones[B Backend](shape Shape, b B) *Tensor[float32, B] {
	return tensor.Ones(shape, b)
}

// Sample draws every element from dist.
func Sample[B Backend](shape Shape, dist distuv.Rander, b B) *Tensor[float32, B] {
	return tensor.Sample(shape, dist, b)
}

// Randn samples the standard normal distribution.
func Randn[B Backend](shape Shape, b B) *Tensor[float32, B] {
	return tensor.Randn(shape, b)
}
