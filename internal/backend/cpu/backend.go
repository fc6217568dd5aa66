// Package cpu implements the CPU backend, using gonum BLAS for the matrix products behind
// linear layers and convolutions.
package cpu

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/parallel"
	"github.com/born-ml/eisnet/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithParallel overrides the worker fan-out used for batched kernels.
func WithParallel(cfg parallel.Config) Option {
	return func(cpu *CPUBackend) {
		cpu.parallel = cfg
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, tensor.Float32, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return out
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t != nil && t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: expected float32 tensor, got %s", op, t.DType()))
		}
	}
}

func requireRank(op string, t *tensor.RawTensor, ranks ...int) {
	for _, r := range ranks {
		if len(t.Shape()) == r {
			return
		}
	}
	panic(fmt.Sprintf("%s: expected rank %v input, got shape %v", op, ranks, t.Shape()))
}
