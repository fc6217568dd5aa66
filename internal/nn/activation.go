package nn

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU[B tensor.Backend] struct {
	stateless[B]
}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Lower emits Relu.
func (r *ReLU[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	return g.Node("Relu", []onnx.Value{x}, x.Shape), nil
}

func (r *ReLU[B]) String() string {
	return "ReLU()"
}

// LeakyReLU applies f(x) = x for x > 0 and slope * x otherwise.
//
// Example:
//
//	act := nn.NewLeakyReLU[*cpu.CPUBackend](0.1)
type LeakyReLU[B tensor.Backend] struct {
	stateless[B]
	slope float32
}

// NewLeakyReLU creates a LeakyReLU with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float32) *LeakyReLU[B] {
	return &LeakyReLU[B]{slope: slope}
}

// Forward applies LeakyReLU activation.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.LeakyReLU(l.slope)
}

// Lower emits LeakyRelu.
func (l *LeakyReLU[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	return g.Node("LeakyRelu", []onnx.Value{x}, x.Shape, onnx.AttrFloat("alpha", l.slope)), nil
}

func (l *LeakyReLU[B]) String() string {
	return fmt.Sprintf("LeakyReLU(negative_slope=%g, inplace=True)", l.slope)
}

// Dropout zeroes elements with probability p during training and scales the rest
// by 1/(1-p). In evaluation mode it is the identity.
type Dropout[B tensor.Backend] struct {
	p        float64
	training bool
}

// NewDropout creates a dropout layer in training mode.
func NewDropout[B tensor.Backend](p float64) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: probability must be in [0, 1), got %g", p))
	}
	return &Dropout[B]{p: p, training: true}
}

// Forward applies dropout.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}
	keep := distuv.Bernoulli{P: 1 - d.p, Src: source}
	mask := tensor.Sample(input.Shape(), keep, input.Backend())
	scale := float32(1 / (1 - d.p))
	m := mask.Data()
	for i := range m {
		m[i] *= scale
	}
	return input.Mul(mask)
}

// Parameters returns nil; dropout has no parameters.
func (d *Dropout[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor { return map[string]*tensor.RawTensor{} }

// LoadStateDict accepts any state dict.
func (d *Dropout[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// SetTraining enables or disables dropout.
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Lower omits the node in evaluation graphs. Training graphs get a Dropout node
// with ratio and training_mode inputs.
func (d *Dropout[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if !g.Training() {
		return x, nil
	}
	ratio := g.Scalar("ratio", float32(d.p), tensor.Float32)
	mode := g.Scalar("training_mode", 1, tensor.Bool)
	outs := g.NodeN("Dropout", []onnx.Value{x, ratio, mode}, []tensor.Shape{x.Shape, x.Shape})
	return outs[0], nil
}

func (d *Dropout[B]) String() string {
	return fmt.Sprintf("Dropout(p=%g, inplace=False)", d.p)
}
