package operators

import (
	"fmt"
	"sort"

	"github.com/born-ml/eisnet/internal/tensor"
)

func handleReshape(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("reshape", inputs, 2); err != nil {
		return nil, err
	}
	x := inputs[0]
	allowZero := n.Attrs.Int("allowzero", 0) != 0

	target := ints(inputs[1].AsInt64())
	newShape := make(tensor.Shape, len(target))
	for i, d := range target {
		// 0 copies the input dimension unless allowzero is set.
		if d == 0 && !allowZero {
			if i >= len(x.Shape()) {
				return nil, fmt.Errorf("reshape: dimension %d copies a missing input axis", i)
			}
			d = x.Shape()[i]
		}
		newShape[i] = d
	}
	return single(be.Reshape(x, newShape)), nil
}

// handleUnsqueeze implements Unsqueeze-13, where axes is the second input.
func handleUnsqueeze(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("unsqueeze", inputs, 1); err != nil {
		return nil, err
	}
	x := inputs[0]

	var axes []int
	if a := optional(inputs, 1); a != nil {
		axes = ints(a.AsInt64())
	} else {
		axes = ints(n.Attrs.Ints("axes"))
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("unsqueeze requires axes")
	}

	rank := len(x.Shape()) + len(axes)
	for i, a := range axes {
		if a < 0 {
			a += rank
		}
		if a < 0 || a >= rank {
			return nil, fmt.Errorf("unsqueeze: axis %d out of range for output rank %d", axes[i], rank)
		}
		axes[i] = a
	}
	sort.Ints(axes)

	newShape := make(tensor.Shape, 0, rank)
	src := 0
	for i := 0; i < rank; i++ {
		if len(axes) > 0 && axes[0] == i {
			newShape = append(newShape, 1)
			axes = axes[1:]
			continue
		}
		newShape = append(newShape, x.Shape()[src])
		src++
	}
	return single(be.Reshape(x, newShape)), nil
}

// handlePad implements constant-mode Pad-13: pads holds all begin values followed by all
// end values.
func handlePad(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("pad", inputs, 2); err != nil {
		return nil, err
	}
	if mode := n.Attrs.Str("mode", "constant"); mode != "constant" {
		return nil, fmt.Errorf("pad: mode %q is not supported", mode)
	}

	x := inputs[0]
	rank := len(x.Shape())
	pads := ints(inputs[1].AsInt64())
	if len(pads) != 2*rank {
		return nil, fmt.Errorf("pad: expected %d pads for rank %d input, got %d", 2*rank, rank, len(pads))
	}

	var value float32
	if v := optional(inputs, 2); v != nil {
		value = v.AsFloat32()[0]
	}

	for axis := 0; axis < rank; axis++ {
		before, after := pads[axis], pads[axis+rank]
		if before < 0 || after < 0 {
			return nil, fmt.Errorf("pad: negative pads %v are not supported", pads)
		}
		if before > 0 || after > 0 {
			x = be.Pad(x, axis, before, after, value)
		}
	}
	return single(x), nil
}

func handleIdentity(_ tensor.Backend, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("identity", inputs, 1); err != nil {
		return nil, err
	}
	return single(inputs[0]), nil
}
