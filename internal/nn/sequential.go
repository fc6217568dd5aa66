package nn

import (
	"strconv"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Sequential feeds each module's output into the next. Children are named by
// position, so the running variance of a batch norm inside the third child
// is "2.1.running_var" in the state dict and in the exported graph.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Add appends m; its index becomes its name.
func (s *Sequential[B]) Add(m Module[B]) { s.modules = append(s.modules, m) }

func (s *Sequential[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, m := range s.modules {
		x = m.Forward(x)
	}
	return x
}

func (s *Sequential[B]) Parameters() []*Parameter[B] { return ChildParameters(s.children()) }

func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	return ChildStateDict(s.children())
}

func (s *Sequential[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	return LoadChildStateDict(s.children(), sd)
}

func (s *Sequential[B]) SetTraining(training bool) { SetChildrenTraining(s.children(), training) }

// Lower lowers the children in order, each inside its index scope.
func (s *Sequential[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	for _, c := range s.children() {
		var err error
		if x, err = LowerChild(g, c.Name, c.Module, x); err != nil {
			return onnx.None, err
		}
	}
	return x, nil
}

func (s *Sequential[B]) String() string { return FormatChildren("Sequential", s.children()) }

func (s *Sequential[B]) children() []Named[B] {
	named := make([]Named[B], len(s.modules))
	for i, m := range s.modules {
		named[i] = Named[B]{Name: strconv.Itoa(i), Module: m}
	}
	return named
}
