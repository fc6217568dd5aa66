// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public neural network API of eisnet: the Module
// interface, the layers the EIS architectures are built from and .born
// persistence.
//
// Example:
//
//	backend := cpu.New()
//	block := nn.NewSequential[*cpu.Backend](
//	    nn.NewLinear(100, 77, backend),
//	    nn.NewLeakyReLU[*cpu.Backend](0.1),
//	    nn.NewBatchNorm1D(77, 1e-3, 0.1, backend),
//	)
//	y, err := nn.TryForward[*cpu.Backend](block, tensor.Randn(tensor.Shape{16, 100}, backend))
package nn

import (
	"github.com/born-ml/eisnet/internal/nn"
	"github.com/born-ml/eisnet/internal/serialization"
	"github.com/born-ml/eisnet/tensor"
)

// Module is the interface of every layer and container.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Header describes a .born file.
type Header = serialization.Header

// NewParameter creates a parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// SeedInit makes weight initialization deterministic.
func SeedInit(seed uint64) {
	nn.SeedInit(seed)
}

// CountParameters returns the number of trainable scalars in m.
func CountParameters[B tensor.Backend](m Module[B]) int {
	return nn.CountParameters(m)
}

// TryForward runs m and converts shape panics into errors.
func TryForward[B tensor.Backend](m Module[B], input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return nn.TryForward(m, input)
}

// SaveModule writes the state dict of m to a .born file.
func SaveModule[B tensor.Backend](path string, m Module[B], modelType string, metadata map[string]string) error {
	return nn.SaveModule(path, m, modelType, metadata)
}

// LoadModule loads a .born file into m. Every tensor of m must be present.
func LoadModule[B tensor.Backend](path string, m Module[B]) (Header, error) {
	return nn.LoadModule(path, m)
}
