package operators

import (
	"fmt"
	"maps"
	"slices"

	"github.com/born-ml/eisnet/internal/tensor"
)

// Kernel computes the outputs of one node. Inputs omitted in the graph are nil.
type Kernel func(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)

// builtin lists every operator the exported networks use.
var builtin = map[string]Kernel{
	"Add":                handleAdd,
	"MatMul":             handleMatMul,
	"Gemm":               handleGemm,
	"Relu":               handleRelu,
	"LeakyRelu":          handleLeakyRelu,
	"Softmax":            handleSoftmax,
	"Conv":               handleConv,
	"MaxPool":            handleMaxPool,
	"BatchNormalization": handleBatchNorm,
	"Dropout":            handleDropout,
	"ReduceMean":         handleReduceMean,
	"Reshape":            handleReshape,
	"Unsqueeze":          handleUnsqueeze,
	"Pad":                handlePad,
	"Identity":           handleIdentity,
}

// Registry resolves op types to kernels.
type Registry struct {
	kernels map[string]Kernel
}

// NewRegistry returns a registry holding the builtin kernels.
func NewRegistry() *Registry {
	return &Registry{kernels: maps.Clone(builtin)}
}

// Register adds or replaces the kernel of opType.
func (r *Registry) Register(opType string, k Kernel) {
	r.kernels[opType] = k
}

// Lookup returns the kernel of opType.
func (r *Registry) Lookup(opType string) (Kernel, bool) {
	k, ok := r.kernels[opType]
	return k, ok
}

// Run executes n. Backend panics come back as errors.
func (r *Registry) Run(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) (out []*tensor.RawTensor, err error) {
	k, ok := r.kernels[n.OpType]
	if !ok {
		return nil, fmt.Errorf("unsupported operator: %s", n.OpType)
	}
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%s: %v", n.OpType, p)
		}
	}()
	return k(be, n, inputs)
}

// Ops returns the registered op types in sorted order.
func (r *Registry) Ops() []string {
	return slices.Sorted(maps.Keys(r.kernels))
}

// requireInputs checks that the first n inputs are present.
func requireInputs(op string, inputs []*tensor.RawTensor, n int) error {
	if len(inputs) < n {
		return fmt.Errorf("%s requires %d inputs, got %d", op, n, len(inputs))
	}
	for i, in := range inputs[:n] {
		if in == nil {
			return fmt.Errorf("%s: input %d is missing", op, i)
		}
	}
	return nil
}

func optional(inputs []*tensor.RawTensor, i int) *tensor.RawTensor {
	if i < len(inputs) {
		return inputs[i]
	}
	return nil
}

func ints(values []int64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

func single(t *tensor.RawTensor) []*tensor.RawTensor {
	return []*tensor.RawTensor{t}
}
