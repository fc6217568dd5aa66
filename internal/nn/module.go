// Package nn implements the neural network layers eisnet architectures are built from.
//
// This package provides:
//   - Module interface: forward pass, parameters, state dict and ONNX lowering
//   - Parameter: named weight tensors
//   - Layers: Linear, Conv1D, BatchNorm1D, activations, Dropout, pooling, padding
//   - Sequential: container with index-prefixed state dict keys
//   - SaveModule / LoadModule: .born persistence
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics. State dict
// keys follow PyTorch naming ("3.1.weight", "0.batchnorm.running_mean"), so a model
// built here and its ONNX export agree on tensor names.
package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[*cpu.CPUBackend](
//	    nn.NewLinear(100, 50, backend),
//	    nn.NewLeakyReLU[*cpu.CPUBackend](0.1),
//	    nn.NewBatchNorm1D(50, 1e-3, 0.1, backend),
//	)
//
// Forward panics when the input shape does not fit the module, like indexing a
// slice out of range. Use TryForward at API boundaries.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Running statistics are buffers and are not included.
	Parameters() []*Parameter[B]

	// StateDict returns parameters and buffers keyed by their dotted path.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies tensors from stateDict into the module.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// SetTraining switches between training and evaluation behavior.
	SetTraining(training bool)

	// Lower appends the module's computation to g, consuming x.
	Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error)

	// String describes the module in PyTorch's repr style.
	String() string
}

// Named pairs a child module with the key it is stored under.
type Named[B tensor.Backend] struct {
	Name   string
	Module Module[B]
}

// stateless provides the Module methods of layers without parameters or buffers.
type stateless[B tensor.Backend] struct{}

func (stateless[B]) Parameters() []*Parameter[B]                      { return nil }
func (stateless[B]) StateDict() map[string]*tensor.RawTensor          { return map[string]*tensor.RawTensor{} }
func (stateless[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
func (stateless[B]) SetTraining(bool)                                 {}

// ChildParameters concatenates the parameters of children in order.
func ChildParameters[B tensor.Backend](children []Named[B]) []*Parameter[B] {
	var params []*Parameter[B]
	for _, c := range children {
		params = append(params, c.Module.Parameters()...)
	}
	return params
}

// ChildStateDict merges the state dicts of children, prefixing every key with the
// child's name.
func ChildStateDict[B tensor.Backend](children []Named[B]) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, c := range children {
		for name, raw := range c.Module.StateDict() {
			stateDict[c.Name+"."+name] = raw
		}
	}
	return stateDict
}

// LoadChildStateDict hands every child the entries under its prefix.
func LoadChildStateDict[B tensor.Backend](children []Named[B], stateDict map[string]*tensor.RawTensor) error {
	for _, c := range children {
		sub := SubStateDict(stateDict, c.Name)
		if err := c.Module.LoadStateDict(sub); err != nil {
			return fmt.Errorf("failed to load module %s: %w", c.Name, err)
		}
	}
	return nil
}

// SubStateDict returns the entries of stateDict below prefix, with the prefix removed.
func SubStateDict(stateDict map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	prefix += "."
	sub := make(map[string]*tensor.RawTensor)
	for key, raw := range stateDict {
		if strings.HasPrefix(key, prefix) {
			sub[key[len(prefix):]] = raw
		}
	}
	return sub
}

// SetChildrenTraining propagates the training flag.
func SetChildrenTraining[B tensor.Backend](children []Named[B], training bool) {
	for _, c := range children {
		c.Module.SetTraining(training)
	}
}

// LowerChild lowers m inside the scope name.
func LowerChild[B tensor.Backend](g *onnx.GraphBuilder, name string, m Module[B], x onnx.Value) (onnx.Value, error) {
	g.Push(name)
	defer g.Pop()
	y, err := m.Lower(g, x)
	if err != nil {
		return onnx.None, fmt.Errorf("%s: %w", name, err)
	}
	return y, nil
}

// FormatChildren renders children the way PyTorch prints a module tree.
func FormatChildren[B tensor.Backend](typeName string, children []Named[B]) string {
	if len(children) == 0 {
		return typeName + "()"
	}
	var sb strings.Builder
	sb.WriteString(typeName + "(\n")
	for _, c := range children {
		child := strings.ReplaceAll(c.Module.String(), "\n", "\n  ")
		fmt.Fprintf(&sb, "  (%s): %s\n", c.Name, child)
	}
	sb.WriteString(")")
	return sb.String()
}

// loadFloat32 copies a float32 entry of stateDict into dst after checking its shape.
func loadFloat32[B tensor.Backend](dst *tensor.Tensor[float32, B], stateDict map[string]*tensor.RawTensor, key string) error {
	raw, ok := stateDict[key]
	if !ok {
		return fmt.Errorf("missing %s in state dict", key)
	}
	if !raw.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, dst.Shape(), raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", key, raw.DType())
	}
	copy(dst.Data(), raw.AsFloat32())
	return nil
}
