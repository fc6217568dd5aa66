package operators

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/tensor"
)

func handleAdd(be tensor.Backend, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("add", inputs, 2); err != nil {
		return nil, err
	}
	return single(be.Add(inputs[0], inputs[1])), nil
}

func handleMatMul(be tensor.Backend, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("matMul", inputs, 2); err != nil {
		return nil, err
	}
	if len(inputs[1].Shape()) != 2 {
		return nil, fmt.Errorf("matMul: only a 2-D right operand is supported, got %v", inputs[1].Shape())
	}
	return single(be.MatMul(inputs[0], inputs[1])), nil
}

// handleGemm computes alpha * A @ op(B) + beta * C.
func handleGemm(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("gemm", inputs, 2); err != nil {
		return nil, err
	}
	if n.Attrs.Int("transA", 0) != 0 {
		return nil, fmt.Errorf("gemm: transA is not supported")
	}

	a, b, c := inputs[0], inputs[1], optional(inputs, 2)
	alpha := n.Attrs.Float("alpha", 1)
	beta := n.Attrs.Float("beta", 1)

	var y *tensor.RawTensor
	if n.Attrs.Int("transB", 0) != 0 {
		y = be.Linear(a, b, nil)
	} else {
		y = be.MatMul(a, b)
	}
	if alpha != 1 {
		y = be.Mul(y, scalar(alpha))
	}
	if c != nil {
		if beta != 1 {
			c = be.Mul(c, scalar(beta))
		}
		y = be.Add(y, c)
	}
	return single(y), nil
}

func scalar(v float32) *tensor.RawTensor {
	t := tensor.MustRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	t.AsFloat32()[0] = v
	return t
}
