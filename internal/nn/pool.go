package nn

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// MaxPool1D takes the maximum of non-overlapping windows along the last axis.
//
// Input shape:  [batch, channels, length]
// Output shape: [batch, channels, (length - kernel) / kernel + 1]
//
// Example:
//
//	pool := nn.NewMaxPool1D(2, backend)
//	output := pool.Forward(input) // [16, 100, 50] -> [16, 100, 25]
type MaxPool1D[B tensor.Backend] struct {
	stateless[B]
	kernelSize int
	backend    B
}

// NewMaxPool1D creates a max pooling layer whose stride equals its kernel size.
func NewMaxPool1D[B tensor.Backend](kernelSize int, backend B) *MaxPool1D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool1d: invalid kernel size %d", kernelSize))
	}
	return &MaxPool1D[B]{kernelSize: kernelSize, backend: backend}
}

// Forward performs max pooling.
func (p *MaxPool1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("maxpool1d: expected 3D input [N,C,L], got shape %v", shape))
	}
	if shape[2] < p.kernelSize {
		panic(fmt.Sprintf("maxpool1d: input length %d is shorter than kernel %d", shape[2], p.kernelSize))
	}
	out := p.backend.MaxPool1D(input.Raw(), p.kernelSize, p.kernelSize)
	return tensor.New[float32](out, p.backend)
}

// Lower emits MaxPool.
func (p *MaxPool1D[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) != 3 || x.Shape[2] < p.kernelSize {
		return onnx.None, fmt.Errorf("maxpool1d: input %v does not fit kernel %d", x.Shape, p.kernelSize)
	}
	out := tensor.Shape{x.Shape[0], x.Shape[1], (x.Shape[2]-p.kernelSize)/p.kernelSize + 1}
	return g.Node("MaxPool", []onnx.Value{x}, out,
		onnx.AttrInt("ceil_mode", 0),
		onnx.AttrInts("kernel_shape", int64(p.kernelSize)),
		onnx.AttrInts("pads", 0, 0),
		onnx.AttrInts("strides", int64(p.kernelSize)),
	), nil
}

func (p *MaxPool1D[B]) String() string {
	return fmt.Sprintf("MaxPool1d(kernel_size=%d, stride=%d, padding=0, dilation=1, ceil_mode=False)", p.kernelSize, p.kernelSize)
}

// MeanPool averages over the last axis, dropping it: [N, C, L] -> [N, C].
type MeanPool[B tensor.Backend] struct {
	stateless[B]
}

// NewMeanPool creates a MeanPool layer.
func NewMeanPool[B tensor.Backend]() *MeanPool[B] {
	return &MeanPool[B]{}
}

// Forward averages the last axis.
func (p *MeanPool[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.MeanDim(-1, false)
}

// Lower emits ReduceMean over axis -1.
func (p *MeanPool[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) < 2 {
		return onnx.None, fmt.Errorf("meanpool: input %v has no axis to reduce", x.Shape)
	}
	out := x.Shape[:len(x.Shape)-1].Clone()
	return g.Node("ReduceMean", []onnx.Value{x}, out,
		onnx.AttrInts("axes", -1),
		onnx.AttrInt("keepdims", 0),
	), nil
}

func (p *MeanPool[B]) String() string {
	return "MeanPool()"
}
