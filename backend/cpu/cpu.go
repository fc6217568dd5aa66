// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Matrix products behind linear layers and convolutions run on gonum BLAS;
// batched kernels fan out over goroutines.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Randn(tensor.Shape{16, 100}, backend)
package cpu

import (
	internalcpu "github.com/born-ml/eisnet/internal/backend/cpu"
	"github.com/born-ml/eisnet/internal/parallel"
	"github.com/born-ml/eisnet/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend.
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithWorkers limits batched kernels to n goroutines. n <= 1 runs them serially.
func WithWorkers(n int) Option {
	cfg := parallel.DefaultConfig()
	cfg.Workers = n
	return internalcpu.WithParallel(cfg)
}
