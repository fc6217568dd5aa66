package nn

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Conv1D is a 1D convolutional layer without implicit padding.
//
// Input shape:  [batch, in_channels, length]
// Weight shape: [out_channels, in_channels/groups, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, (length - kernel) / stride + 1]
//
// Pair it with SamePad1D or ConstantPad1D for padded convolutions.
//
// Example:
//
//	conv := nn.NewConv1D(1, 50, 16, 1, 1, backend)
//	output := conv.Forward(input) // [16, 1, 100] -> [16, 50, 85]
type Conv1D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	groups      int

	weight *Parameter[B] // [out_channels, in_channels/groups, kernel]
	bias   *Parameter[B] // [out_channels]

	backend B
}

// NewConv1D creates a new 1D convolutional layer.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (number of filters)
//   - kernelSize: Kernel length
//   - stride: Stride for convolution
//   - groups: Number of channel groups; must divide both channel counts
//   - backend: Backend for computation
func NewConv1D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, groups int, backend B) *Conv1D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv1d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("conv1d: invalid kernel size %d or stride %d", kernelSize, stride))
	}
	if groups <= 0 || inChannels%groups != 0 || outChannels%groups != 0 {
		panic(fmt.Sprintf("conv1d: groups %d must divide in=%d and out=%d", groups, inChannels, outChannels))
	}

	fanIn := inChannels / groups * kernelSize
	weight := KaimingUniform(fanIn, tensor.Shape{outChannels, inChannels / groups, kernelSize}, backend)
	bias := KaimingUniform(fanIn, tensor.Shape{outChannels}, backend)

	return &Conv1D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		groups:      groups,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (c *Conv1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 3 {
		panic(fmt.Sprintf("conv1d: expected 3D input [N,C,L], got shape %v", inputShape))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv1d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}
	if inputShape[2] < c.kernelSize {
		panic(fmt.Sprintf("conv1d: input length %d is shorter than kernel %d", inputShape[2], c.kernelSize))
	}

	out := c.backend.Conv1D(input.Raw(), c.weight.Raw(), c.bias.Raw(), c.stride, c.groups)
	return tensor.New[float32](out, c.backend)
}

// Parameters returns [weight, bias].
func (c *Conv1D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// StateDict returns a map of parameter names to raw tensors.
func (c *Conv1D[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(c.weight, c.bias)
}

// LoadStateDict loads parameters from a state dictionary.
func (c *Conv1D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(stateDict, c.weight, c.bias)
}

// SetTraining is a no-op.
func (c *Conv1D[B]) SetTraining(bool) {}

// Lower emits a Conv node.
func (c *Conv1D[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) != 3 || x.Shape[1] != c.inChannels || x.Shape[2] < c.kernelSize {
		return onnx.None, fmt.Errorf("conv1d: input %v does not fit %d channels, kernel %d", x.Shape, c.inChannels, c.kernelSize)
	}
	weight := g.Initializer("weight", c.weight.Raw())
	bias := g.Initializer("bias", c.bias.Raw())
	out := tensor.Shape{x.Shape[0], c.outChannels, c.OutputLength(x.Shape[2])}
	return g.Node("Conv", []onnx.Value{x, weight, bias}, out,
		onnx.AttrInts("dilations", 1),
		onnx.AttrInt("group", int64(c.groups)),
		onnx.AttrInts("kernel_shape", int64(c.kernelSize)),
		onnx.AttrInts("pads", 0, 0),
		onnx.AttrInts("strides", int64(c.stride)),
	), nil
}

// OutputLength returns the output length for an input of the given length.
func (c *Conv1D[B]) OutputLength(length int) int {
	return (length-c.kernelSize)/c.stride + 1
}

// InChannels returns the number of input channels.
func (c *Conv1D[B]) InChannels() int {
	return c.inChannels
}

// OutChannels returns the number of output channels.
func (c *Conv1D[B]) OutChannels() int {
	return c.outChannels
}

// String returns a string representation of the layer.
func (c *Conv1D[B]) String() string {
	s := fmt.Sprintf("Conv1d(%d, %d, kernel_size=(%d,), stride=(%d,)", c.inChannels, c.outChannels, c.kernelSize, c.stride)
	if c.groups != 1 {
		s += fmt.Sprintf(", groups=%d", c.groups)
	}
	return s + ")"
}
