package operators

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/eisnet/internal/tensor"
)

// spatialPads returns the begin/end padding of the single spatial axis of a 1-D op.
func spatialPads(n *Node) (before, after int, err error) {
	if mode := n.Attrs.Str("auto_pad", "NOTSET"); mode != "NOTSET" {
		return 0, 0, fmt.Errorf("auto_pad %s is not supported", mode)
	}
	pads := n.Attrs.Ints("pads")
	switch len(pads) {
	case 0:
		return 0, 0, nil
	case 2:
		return int(pads[0]), int(pads[1]), nil
	default:
		return 0, 0, fmt.Errorf("expected 2 pads for a 1-D op, got %v", pads)
	}
}

func handleConv(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("conv", inputs, 2); err != nil {
		return nil, err
	}
	x, w, b := inputs[0], inputs[1], optional(inputs, 2)
	if len(x.Shape()) != 3 {
		return nil, fmt.Errorf("conv: only 1-D convolution is supported, got input %v", x.Shape())
	}
	for _, d := range n.Attrs.Ints("dilations") {
		if d != 1 {
			return nil, fmt.Errorf("conv: dilation %d is not supported", d)
		}
	}

	stride := 1
	if s := n.Attrs.Ints("strides"); len(s) == 1 {
		stride = int(s[0])
	}
	before, after, err := spatialPads(n)
	if err != nil {
		return nil, fmt.Errorf("conv: %w", err)
	}
	if before > 0 || after > 0 {
		x = be.Pad(x, -1, before, after, 0)
	}

	group := int(n.Attrs.Int("group", 1))
	return single(be.Conv1D(x, w, b, stride, group)), nil
}

func handleMaxPool(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("maxPool", inputs, 1); err != nil {
		return nil, err
	}
	kernel := n.Attrs.Ints("kernel_shape")
	if len(kernel) != 1 {
		return nil, fmt.Errorf("maxPool: expected a 1-D kernel_shape, got %v", kernel)
	}
	stride := 1
	if s := n.Attrs.Ints("strides"); len(s) == 1 {
		stride = int(s[0])
	}
	if n.Attrs.Int("ceil_mode", 0) != 0 {
		return nil, fmt.Errorf("maxPool: ceil_mode is not supported")
	}
	before, after, err := spatialPads(n)
	if err != nil {
		return nil, fmt.Errorf("maxPool: %w", err)
	}

	x := inputs[0]
	if before > 0 || after > 0 {
		x = be.Pad(x, -1, before, after, -math.MaxFloat32)
	}
	return single(be.MaxPool1D(x, int(kernel[0]), stride)), nil
}

// handleBatchNorm implements BatchNormalization-14. With training_mode=1 the batch
// statistics normalize the input and the running statistics are returned updated as
// running = running*momentum + batch*(1-momentum).
func handleBatchNorm(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("batchNormalization", inputs, 5); err != nil {
		return nil, err
	}
	x, scale, shift, mean, variance := inputs[0], inputs[1], inputs[2], inputs[3], inputs[4]
	eps := n.Attrs.Float("epsilon", 1e-5)

	if n.Attrs.Int("training_mode", 0) == 0 {
		return single(be.BatchNorm(x, scale, shift, mean, variance, eps)), nil
	}

	momentum := n.Attrs.Float("momentum", 0.9)
	batchMean, batchVar := be.ChannelMoments(x)
	y := be.BatchNorm(x, scale, shift, batchMean, batchVar, eps)

	runningMean := be.Add(be.Mul(mean, scalar(momentum)), be.Mul(batchMean, scalar(1-momentum)))
	runningVar := be.Add(be.Mul(variance, scalar(momentum)), be.Mul(batchVar, scalar(1-momentum)))
	return []*tensor.RawTensor{y, runningMean, runningVar}, nil
}

// handleDropout is the identity unless the training_mode input is true, in which case
// elements are zeroed with probability ratio and the rest scaled by 1/(1-ratio).
func handleDropout(be tensor.Backend, _ *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("dropout", inputs, 1); err != nil {
		return nil, err
	}
	x := inputs[0]

	ratio := float32(0.5)
	if r := optional(inputs, 1); r != nil {
		ratio = r.AsFloat32()[0]
	}
	training := false
	if t := optional(inputs, 2); t != nil {
		training = t.AsBool()[0]
	}

	mask := tensor.MustRaw(x.Shape(), tensor.Bool, tensor.CPU)
	keep := mask.AsBool()
	if !training || ratio == 0 {
		for i := range keep {
			keep[i] = true
		}
		return []*tensor.RawTensor{x, mask}, nil
	}
	if ratio >= 1 {
		return nil, fmt.Errorf("dropout: ratio %v must be below 1", ratio)
	}

	scaleMask := tensor.MustRaw(x.Shape(), tensor.Float32, tensor.CPU)
	sm := scaleMask.AsFloat32()
	bernoulli := distuv.Bernoulli{P: float64(1 - ratio)}
	for i := range sm {
		if bernoulli.Rand() == 1 {
			keep[i] = true
			sm[i] = 1 / (1 - ratio)
		}
	}
	return []*tensor.RawTensor{be.Mul(x, scaleMask), mask}, nil
}

// handleReduceMean implements ReduceMean-13, where axes is an attribute.
func handleReduceMean(be tensor.Backend, n *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	if err := requireInputs("reduceMean", inputs, 1); err != nil {
		return nil, err
	}
	x := inputs[0]
	keepDims := n.Attrs.Int("keepdims", 1) != 0

	axes := ints(n.Attrs.Ints("axes"))
	if len(axes) == 0 {
		for i := range x.Shape() {
			axes = append(axes, i)
		}
	}
	for i, a := range axes {
		axes[i] = x.Shape().Axis(a)
	}

	// Reduce from the innermost axis so earlier indices stay valid when dims are dropped.
	sort.Sort(sort.Reverse(sort.IntSlice(axes)))
	for _, a := range axes {
		x = be.MeanDim(x, a, keepDims)
	}
	return single(x), nil
}
