package operators

import (
	"github.com/born-ml/eisnet/internal/tensor"
)

func handleRelu(be tensor.Backend, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("relu", inputs, 1); err != nil {
		return nil, err
	}
	return single(be.ReLU(inputs[0])), nil
}

func handleLeakyRelu(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("leakyRelu", inputs, 1); err != nil {
		return nil, err
	}
	alpha := n.Attrs.Float("alpha", 0.01)
	return single(be.LeakyReLU(inputs[0], alpha)), nil
}

func handleSoftmax(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("softmax", inputs, 1); err != nil {
		return nil, err
	}
	axis := int(n.Attrs.Int("axis", -1))
	return single(be.Softmax(inputs[0], axis)), nil
}
