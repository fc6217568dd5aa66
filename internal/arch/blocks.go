package arch

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/nn"
	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// composite implements the bookkeeping Module methods over a fixed child list.
// Embedders provide Forward and Lower.
type composite[B tensor.Backend] struct {
	typeName string
	children []nn.Named[B]
}

func (c *composite[B]) Parameters() []*nn.Parameter[B] {
	return nn.ChildParameters(c.children)
}

func (c *composite[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.ChildStateDict(c.children)
}

func (c *composite[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nn.LoadChildStateDict(c.children, stateDict)
}

func (c *composite[B]) SetTraining(training bool) {
	nn.SetChildrenTraining(c.children, training)
}

func (c *composite[B]) String() string {
	return nn.FormatChildren(c.typeName, c.children)
}

// lowerChain lowers modules one after another, each in its own scope.
func lowerChain[B tensor.Backend](g *onnx.GraphBuilder, x onnx.Value, children ...nn.Named[B]) (onnx.Value, error) {
	var err error
	for _, c := range children {
		if x, err = nn.LowerChild(g, c.Name, c.Module, x); err != nil {
			return onnx.None, err
		}
	}
	return x, nil
}

// LinearBlock is Linear -> LeakyReLU(0.1) -> BatchNorm1D(eps 1e-3, momentum 0.1).
type LinearBlock[B tensor.Backend] struct {
	composite[B]
	linear     *nn.Linear[B]
	activation *nn.LeakyReLU[B]
	batchnorm  *nn.BatchNorm1D[B]
}

// NewLinearBlock creates a LinearBlock mapping in features to out features.
func NewLinearBlock[B tensor.Backend](in, out int, backend B) *LinearBlock[B] {
	b := &LinearBlock[B]{
		linear:     nn.NewLinear(in, out, backend),
		activation: nn.NewLeakyReLU[B](0.1),
		batchnorm:  nn.NewBatchNorm1D(out, 1e-3, 0.1, backend),
	}
	b.composite = composite[B]{typeName: "LinearBlock", children: []nn.Named[B]{
		{Name: "linear", Module: b.linear},
		{Name: "activation", Module: b.activation},
		{Name: "batchnorm", Module: b.batchnorm},
	}}
	return b
}

func (b *LinearBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.batchnorm.Forward(b.activation.Forward(b.linear.Forward(x)))
}

func (b *LinearBlock[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	return lowerChain(g, x, b.children...)
}

// OutFeatures returns the block's output width.
func (b *LinearBlock[B]) OutFeatures() int {
	return b.linear.OutFeatures()
}

// ConvBlock is the convolutional stage of ConvNet: a stride-1 convolution, LeakyReLU,
// optional zero padding back to the input length, a Linear layer applied along the
// length axis, LeakyReLU and BatchNorm1D.
type ConvBlock[B tensor.Backend] struct {
	composite[B]
	inputSize  int
	kernelSize int
	conv       *nn.Conv1D[B]
	pad        *nn.ConstantPad[B]
	linear     *nn.Linear[B]
	activation *nn.LeakyReLU[B]
	bn         *nn.BatchNorm1D[B]
}

// NewConvBlock creates a ConvBlock for inputs of length inputSize. With pad the
// block preserves the length, otherwise it shrinks it by kernelSize-1.
func NewConvBlock[B tensor.Backend](inputSize, inChannels, outChannels, kernelSize int, pad bool, backend B) *ConvBlock[B] {
	b := &ConvBlock[B]{
		inputSize:  inputSize,
		kernelSize: kernelSize,
		conv:       nn.NewConv1D(inChannels, outChannels, kernelSize, 1, 1, backend),
		activation: nn.NewLeakyReLU[B](0.1),
		bn:         nn.NewBatchNorm1D(outChannels, 1e-5, 0.1, backend),
	}
	if pad {
		b.pad = nn.NewConstantPad1D[B](kernelSize/2, kernelSize/2-1)
	}
	b.linear = nn.NewLinear(b.OutputSize(), b.OutputSize(), backend)
	b.composite = composite[B]{typeName: "ConvBlock", children: []nn.Named[B]{
		{Name: "bn", Module: b.bn},
		{Name: "conv", Module: b.conv},
		{Name: "linear", Module: b.linear},
		{Name: "activation", Module: b.activation},
	}}
	return b
}

// OutputSize returns the length of the block's output.
func (b *ConvBlock[B]) OutputSize() int {
	if b.pad != nil {
		return b.inputSize
	}
	return b.inputSize - b.kernelSize + 1
}

func (b *ConvBlock[B]) stages() []nn.Named[B] {
	stages := []nn.Named[B]{{Name: "conv", Module: b.conv}, {Name: "activation", Module: b.activation}}
	if b.pad != nil {
		stages = append(stages, nn.Named[B]{Name: "pad", Module: b.pad})
	}
	return append(stages,
		nn.Named[B]{Name: "linear", Module: b.linear},
		nn.Named[B]{Name: "activation", Module: b.activation},
		nn.Named[B]{Name: "bn", Module: b.bn},
	)
}

func (b *ConvBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, s := range b.stages() {
		x = s.Module.Forward(x)
	}
	return x
}

func (b *ConvBlock[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	return lowerChain(g, x, b.stages()...)
}

// SameConv1D is a convolution preceded by "same" padding, so the output length is
// ceil(L / stride) for any input length L.
type SameConv1D[B tensor.Backend] struct {
	composite[B]
	pad  *nn.SamePad1D[B]
	conv *nn.Conv1D[B]
}

// NewSameConv1D creates a same-padded convolution.
func NewSameConv1D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, groups int, backend B) *SameConv1D[B] {
	c := &SameConv1D[B]{
		pad:  nn.NewSamePad1D[B](kernelSize, stride),
		conv: nn.NewConv1D(inChannels, outChannels, kernelSize, stride, groups, backend),
	}
	c.composite = composite[B]{typeName: "SameConv1d", children: []nn.Named[B]{{Name: "conv", Module: c.conv}}}
	return c
}

func (c *SameConv1D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.conv.Forward(c.pad.Forward(x))
}

func (c *SameConv1D[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	return lowerChain(g, x, nn.Named[B]{Name: "pad", Module: c.pad}, nn.Named[B]{Name: "conv", Module: c.conv})
}

// SameMaxPool1D zero pads for a stride-1 window of kernelSize, then max pools with
// stride kernelSize. It halves the length like a stride-2 SameConv1D for kernel 2.
type SameMaxPool1D[B tensor.Backend] struct {
	composite[B]
	pad  *nn.SamePad1D[B]
	pool *nn.MaxPool1D[B]
}

// NewSameMaxPool1D creates a same-padded max pool.
func NewSameMaxPool1D[B tensor.Backend](kernelSize int, backend B) *SameMaxPool1D[B] {
	p := &SameMaxPool1D[B]{
		pad:  nn.NewSamePad1D[B](kernelSize, 1),
		pool: nn.NewMaxPool1D(kernelSize, backend),
	}
	p.composite = composite[B]{typeName: "SameMaxPool1d", children: []nn.Named[B]{{Name: "max_pool", Module: p.pool}}}
	return p
}

func (p *SameMaxPool1D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return p.pool.Forward(p.pad.Forward(x))
}

func (p *SameMaxPool1D[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	return lowerChain(g, x, nn.Named[B]{Name: "pad", Module: p.pad}, nn.Named[B]{Name: "max_pool", Module: p.pool})
}

// checkLength panics with a readable message when a fixed-length network receives
// the wrong input width.
func checkLength(name string, shape tensor.Shape, want int) {
	if len(shape) == 0 || shape.Last() != want {
		panic(fmt.Sprintf("%s: expected input of length %d, got shape %v", name, want, shape))
	}
}
