package nn

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Linear maps the last dimension of its input from in to out features:
// y = x @ W.T + b, with W [out, in] and b [out]. Inputs are [N, in] or
// [N, C, in]; the latter is how the conv networks apply their head.
// Both tensors start from U(-1/sqrt(in), 1/sqrt(in)).
type Linear[B tensor.Backend] struct {
	in, out int
	weight  *Parameter[B]
	bias    *Parameter[B]
	backend B
}

// NewLinear panics on non-positive sizes.
func NewLinear[B tensor.Backend](in, out int, backend B) *Linear[B] {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", in, out))
	}
	return &Linear[B]{
		in:      in,
		out:     out,
		weight:  NewParameter("weight", KaimingUniform(in, tensor.Shape{out, in}, backend)),
		bias:    NewParameter("bias", KaimingUniform(in, tensor.Shape{out}, backend)),
		backend: backend,
	}
}

func (l *Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if rank := len(shape); rank != 2 && rank != 3 {
		panic(fmt.Sprintf("linear: want a rank 2 or 3 input, got %v", shape))
	}
	if shape.Last() != l.in {
		panic(fmt.Sprintf("linear: input %v does not end in %d features", shape, l.in))
	}
	return tensor.New[float32](l.backend.Linear(x.Raw(), l.weight.Raw(), l.bias.Raw()), l.backend)
}

func (l *Linear[B]) Parameters() []*Parameter[B] { return []*Parameter[B]{l.weight, l.bias} }

// OutFeatures is the size of the produced last dimension.
func (l *Linear[B]) OutFeatures() int { return l.out }

func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return paramState(l.weight, l.bias)
}

func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParams(stateDict, l.weight, l.bias)
}

func (l *Linear[B]) SetTraining(bool) {}

// Lower emits Gemm for 2D inputs. Higher ranks use MatMul against the transposed
// weight followed by Add, as Gemm is defined for matrices only.
func (l *Linear[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) < 2 || x.Shape.Last() != l.in {
		return onnx.None, fmt.Errorf("linear: input %v does not end in %d features", x.Shape, l.in)
	}
	out := x.Shape.Clone()
	out[len(out)-1] = l.out
	bias := g.Initializer("bias", l.bias.Raw())

	if len(x.Shape) == 2 {
		weight := g.Initializer("weight", l.weight.Raw())
		return g.Node("Gemm", []onnx.Value{x, weight, bias}, out,
			onnx.AttrFloat("alpha", 1),
			onnx.AttrFloat("beta", 1),
			onnx.AttrInt("transB", 1),
		), nil
	}

	weight := g.Initializer("weight", transpose2D(l.weight.Raw()))
	y := g.Node("MatMul", []onnx.Value{x, weight}, out)
	return g.Node("Add", []onnx.Value{y, bias}, out), nil
}

func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, bias=True)", l.in, l.out)
}

// transpose2D copies a float32 matrix into its transpose.
func transpose2D(m *tensor.RawTensor) *tensor.RawTensor {
	rows, cols := m.Shape()[0], m.Shape()[1]
	t := tensor.MustRaw(tensor.Shape{cols, rows}, tensor.Float32, m.Device())
	src, dst := m.AsFloat32(), t.AsFloat32()
	for i, v := range src {
		dst[(i%cols)*rows+i/cols] = v
	}
	return t
}
