package nn

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// ConstantPad pads one axis with zeros.
type ConstantPad[B tensor.Backend] struct {
	stateless[B]
	dim           int
	before, after int
	name          string
}

// NewConstantPad1D pads the last axis with left and right zeros.
func NewConstantPad1D[B tensor.Backend](left, right int) *ConstantPad[B] {
	return newConstantPad[B]("ConstantPad1d", -1, left, right)
}

// NewChannelPad pads the channel axis of [N, C, L] inputs, growing C by before+after.
func NewChannelPad[B tensor.Backend](before, after int) *ConstantPad[B] {
	return newConstantPad[B]("ChannelPad", 1, before, after)
}

func newConstantPad[B tensor.Backend](name string, dim, before, after int) *ConstantPad[B] {
	if before < 0 || after < 0 {
		panic(fmt.Sprintf("%s: negative padding (%d, %d)", name, before, after))
	}
	return &ConstantPad[B]{dim: dim, before: before, after: after, name: name}
}

// Forward pads the input.
func (p *ConstantPad[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if p.before == 0 && p.after == 0 {
		return input
	}
	return input.Pad(p.dim, p.before, p.after, 0)
}

// Lower emits a constant Pad node.
func (p *ConstantPad[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) == 0 || p.dim >= len(x.Shape) {
		return onnx.None, fmt.Errorf("%s: input %v has no axis %d", p.name, x.Shape, p.dim)
	}
	return lowerPad(g, x, x.Shape.Axis(p.dim), p.before, p.after), nil
}

func (p *ConstantPad[B]) String() string {
	return fmt.Sprintf("%s(padding=(%d, %d), value=0.0)", p.name, p.before, p.after)
}

// SamePad1D pads the last axis so that a following convolution or pooling with
// the given kernel and stride produces ceil(L / stride) outputs. The padding is
// computed from the input length on every call, so any length is accepted:
//
//	p     = max(0, (ceil(L/stride) - 1) * stride + kernel - L)
//	left  = p / 2
//	right = p - left
type SamePad1D[B tensor.Backend] struct {
	stateless[B]
	kernelSize int
	stride     int
}

// NewSamePad1D creates "same" padding for the given kernel and stride.
func NewSamePad1D[B tensor.Backend](kernelSize, stride int) *SamePad1D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("samepad1d: invalid kernel size %d or stride %d", kernelSize, stride))
	}
	return &SamePad1D[B]{kernelSize: kernelSize, stride: stride}
}

// Padding returns the left and right padding for an input of the given length.
func (p *SamePad1D[B]) Padding(length int) (left, right int) {
	return SamePadding(length, p.kernelSize, p.stride)
}

// SamePadding returns the left and right zero padding that makes a window of
// kernelSize with stride cover ceil(length/stride) positions.
func SamePadding(length, kernelSize, stride int) (left, right int) {
	outLen := (length + stride - 1) / stride
	total := max(0, (outLen-1)*stride+kernelSize-length)
	left = total / 2
	return left, total - left
}

// Forward pads the last axis.
func (p *SamePad1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	left, right := p.Padding(input.Shape().Last())
	if left == 0 && right == 0 {
		return input
	}
	return input.Pad(-1, left, right, 0)
}

// Lower emits a Pad node sized for the static input length, or nothing when no
// padding is needed.
func (p *SamePad1D[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) == 0 {
		return onnx.None, fmt.Errorf("samepad1d: cannot pad a scalar")
	}
	left, right := p.Padding(x.Shape.Last())
	if left == 0 && right == 0 {
		return x, nil
	}
	return lowerPad(g, x, len(x.Shape)-1, left, right), nil
}

func (p *SamePad1D[B]) String() string {
	return fmt.Sprintf("SamePad1d(kernel_size=%d, stride=%d)", p.kernelSize, p.stride)
}

// lowerPad appends a constant-zero Pad node on one axis.
func lowerPad(g *onnx.GraphBuilder, x onnx.Value, axis, before, after int) onnx.Value {
	rank := len(x.Shape)
	pads := make([]int64, 2*rank)
	pads[axis] = int64(before)
	pads[rank+axis] = int64(after)

	out := x.Shape.Clone()
	out[axis] += before + after
	return g.Node("Pad", []onnx.Value{x, g.Int64s("pads", pads...)}, out, onnx.AttrString("mode", "constant"))
}

// Unsqueeze adds a channel axis: [N, L] -> [N, 1, L] and [L] -> [1, 1, L].
type Unsqueeze[B tensor.Backend] struct {
	stateless[B]
}

// NewUnsqueeze creates an Unsqueeze layer.
func NewUnsqueeze[B tensor.Backend]() *Unsqueeze[B] {
	return &Unsqueeze[B]{}
}

// Forward reshapes the input.
func (u *Unsqueeze[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	switch len(shape) {
	case 1:
		return input.Reshape(1, 1, shape[0])
	case 2:
		return input.Reshape(shape[0], 1, shape[1])
	default:
		panic(fmt.Sprintf("unsqueeze: expected 1D or 2D input, got shape %v", shape))
	}
}

// Lower emits Unsqueeze on axis 1 for batched input and Reshape for a single spectrum.
func (u *Unsqueeze[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	switch len(x.Shape) {
	case 1:
		out := tensor.Shape{1, 1, x.Shape[0]}
		return g.Node("Reshape", []onnx.Value{x, g.Int64s("shape", 1, 1, int64(x.Shape[0]))}, out), nil
	case 2:
		out := tensor.Shape{x.Shape[0], 1, x.Shape[1]}
		return g.Node("Unsqueeze", []onnx.Value{x, g.Int64s("axes", 1)}, out), nil
	default:
		return onnx.None, fmt.Errorf("unsqueeze: expected 1D or 2D input, got shape %v", x.Shape)
	}
}

func (u *Unsqueeze[B]) String() string {
	return "Unsqueeze()"
}
