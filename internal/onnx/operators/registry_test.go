package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/eisnet/internal/backend/cpu"
	"github.com/born-ml/eisnet/internal/tensor"
)

func floats(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat32(values, shape)
	require.NoError(t, err)
	return r
}

func int64s(values ...int64) *tensor.RawTensor {
	r := tensor.MustRaw(tensor.Shape{len(values)}, tensor.Int64, tensor.CPU)
	copy(r.AsInt64(), values)
	return r
}

func runAll(t *testing.T, n *Node, inputs ...*tensor.RawTensor) []*tensor.RawTensor {
	t.Helper()
	out, err := NewRegistry().Run(cpu.New(), n, inputs)
	require.NoError(t, err, n.OpType)
	return out
}

func run(t *testing.T, n *Node, inputs ...*tensor.RawTensor) *tensor.RawTensor {
	t.Helper()
	return runAll(t, n, inputs...)[0]
}

func assertValues(t *testing.T, got *tensor.RawTensor, shape tensor.Shape, want ...float32) {
	t.Helper()
	require.True(t, got.Shape().Equal(shape), "shape %v, want %v", got.Shape(), shape)
	assert.InDeltaSlice(t, want, got.AsFloat32(), 1e-5)
}

func TestRegistryOps(t *testing.T) {
	assert.Equal(t, []string{
		"Add", "BatchNormalization", "Conv", "Dropout", "Gemm", "Identity", "LeakyRelu",
		"MatMul", "MaxPool", "Pad", "ReduceMean", "Relu", "Reshape", "Softmax", "Unsqueeze",
	}, NewRegistry().Ops())
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("UnknownOp")
	assert.False(t, ok)
	_, err := r.Run(cpu.New(), &Node{OpType: "UnknownOp"}, nil)
	assert.ErrorContains(t, err, "unsupported operator: UnknownOp")
}

func TestRegisterReplacesKernel(t *testing.T) {
	r := NewRegistry()
	r.Register("Relu", func(_ tensor.Backend, _ *Node, in []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		return in, nil
	})
	x := floats(t, tensor.Shape{2}, -1, 1)
	out, err := r.Run(cpu.New(), &Node{OpType: "Relu"}, []*tensor.RawTensor{x})
	require.NoError(t, err)
	assertValues(t, out[0], tensor.Shape{2}, -1, 1)

	// Other registries keep the builtin kernel.
	assertValues(t, run(t, &Node{OpType: "Relu"}, x), tensor.Shape{2}, 0, 1)
}

func TestRunRecoversBackendPanic(t *testing.T) {
	x := floats(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	y := floats(t, tensor.Shape{2}, 1, 2)
	_, err := NewRegistry().Run(cpu.New(), &Node{OpType: "Add"}, []*tensor.RawTensor{x, y})
	assert.ErrorContains(t, err, "Add:")
}

func TestMissingInputs(t *testing.T) {
	_, err := NewRegistry().Run(cpu.New(), &Node{OpType: "Gemm"}, []*tensor.RawTensor{nil, nil})
	assert.ErrorContains(t, err, "input 0 is missing")
	_, err = NewRegistry().Run(cpu.New(), &Node{OpType: "Pad"}, nil)
	assert.ErrorContains(t, err, "requires 2 inputs")
}

func TestAttrs(t *testing.T) {
	a := Attrs{"axis": {I: 2}, "alpha": {F: 0.5}, "mode": {S: "reflect"}, "pads": {Ints: []int64{1, 2}}}
	assert.Equal(t, int64(2), a.Int("axis", -1))
	assert.Equal(t, int64(-1), a.Int("group", -1))
	assert.Equal(t, float32(0.5), a.Float("alpha", 1))
	assert.Equal(t, float32(1), a.Float("beta", 1))
	assert.Equal(t, "reflect", a.Str("mode", "constant"))
	assert.Equal(t, "constant", Attrs(nil).Str("mode", "constant"))
	assert.Equal(t, []int64{1, 2}, a.Ints("pads"))
	assert.Nil(t, a.Ints("strides"))
}

func TestGemm(t *testing.T) {
	x := floats(t, tensor.Shape{1, 2}, 1, 2)
	w := floats(t, tensor.Shape{3, 2}, 1, 0, 0, 1, 1, 1)
	b := floats(t, tensor.Shape{3}, 1, 1, 1)

	n := &Node{OpType: "Gemm", Attrs: Attrs{"transB": {I: 1}}}
	assertValues(t, run(t, n, x, w, b), tensor.Shape{1, 3}, 2, 3, 4)

	n.Attrs["beta"] = Attribute{F: 0}
	assertValues(t, run(t, n, x, w, b), tensor.Shape{1, 3}, 1, 2, 3)

	n.Attrs["transA"] = Attribute{I: 1}
	_, err := NewRegistry().Run(cpu.New(), n, []*tensor.RawTensor{x, w, b})
	assert.ErrorContains(t, err, "transA")
}

func TestConvWithPads(t *testing.T) {
	x := floats(t, tensor.Shape{1, 1, 3}, 1, 2, 3)
	w := floats(t, tensor.Shape{1, 1, 3}, 1, 1, 1)
	n := &Node{OpType: "Conv", Attrs: Attrs{
		"kernel_shape": {Ints: []int64{3}},
		"pads":         {Ints: []int64{1, 1}},
	}}
	assertValues(t, run(t, n, x, w), tensor.Shape{1, 1, 3}, 3, 6, 5)

	n.Attrs["auto_pad"] = Attribute{S: "SAME_UPPER"}
	_, err := NewRegistry().Run(cpu.New(), n, []*tensor.RawTensor{x, w})
	assert.ErrorContains(t, err, "auto_pad")
}

func TestMaxPool(t *testing.T) {
	x := floats(t, tensor.Shape{1, 1, 4}, 1, 3, 2, 0)
	n := &Node{OpType: "MaxPool", Attrs: Attrs{
		"kernel_shape": {Ints: []int64{2}},
		"strides":      {Ints: []int64{2}},
	}}
	assertValues(t, run(t, n, x), tensor.Shape{1, 1, 2}, 3, 2)
}

func TestBatchNormalization(t *testing.T) {
	x := floats(t, tensor.Shape{2, 1}, 1, 3)
	one := floats(t, tensor.Shape{1}, 1)
	zero := floats(t, tensor.Shape{1}, 0)

	n := &Node{OpType: "BatchNormalization", Attrs: Attrs{"epsilon": {F: 0}}}
	assertValues(t, run(t, n, x, one, zero, zero, one), tensor.Shape{2, 1}, 1, 3)

	n.Attrs["training_mode"] = Attribute{I: 1}
	n.Attrs["momentum"] = Attribute{F: 0.5}
	out := runAll(t, n, x, one, zero, zero, one)
	require.Len(t, out, 3)
	assertValues(t, out[0], tensor.Shape{2, 1}, -1, 1)
	assertValues(t, out[1], tensor.Shape{1}, 1)
	assertValues(t, out[2], tensor.Shape{1}, 1)
}

func TestDropout(t *testing.T) {
	x := floats(t, tensor.Shape{4}, 1, 2, 3, 4)
	out := runAll(t, &Node{OpType: "Dropout"}, x)
	assertValues(t, out[0], tensor.Shape{4}, 1, 2, 3, 4)
	assert.Equal(t, []bool{true, true, true, true}, out[1].AsBool())

	training := tensor.MustRaw(tensor.Shape{1}, tensor.Bool, tensor.CPU)
	training.AsBool()[0] = true
	out = runAll(t, &Node{OpType: "Dropout"}, x, floats(t, tensor.Shape{1}, 0.5), training)
	for i, v := range out[0].AsFloat32() {
		if out[1].AsBool()[i] {
			assert.InDelta(t, 2*x.AsFloat32()[i], v, 1e-6)
		} else {
			assert.Zero(t, v)
		}
	}
}

func TestReduceMean(t *testing.T) {
	x := floats(t, tensor.Shape{1, 2, 2}, 1, 3, 5, 7)
	n := &Node{OpType: "ReduceMean", Attrs: Attrs{
		"axes":     {Ints: []int64{-1}},
		"keepdims": {I: 0},
	}}
	assertValues(t, run(t, n, x), tensor.Shape{1, 2}, 2, 6)
}

func TestShapeOps(t *testing.T) {
	x := floats(t, tensor.Shape{2, 2}, 1, 2, 3, 4)

	out := run(t, &Node{OpType: "Unsqueeze"}, x, int64s(1))
	assertValues(t, out, tensor.Shape{2, 1, 2}, 1, 2, 3, 4)

	out = run(t, &Node{OpType: "Reshape"}, x, int64s(0, 1, -1))
	assertValues(t, out, tensor.Shape{2, 1, 2}, 1, 2, 3, 4)

	out = run(t, &Node{OpType: "Pad"}, x, int64s(0, 1, 0, 0))
	assertValues(t, out, tensor.Shape{2, 3}, 0, 1, 2, 0, 3, 4)

	out = run(t, &Node{OpType: "Pad"}, x, int64s(1, 0, 0, 0))
	assertValues(t, out, tensor.Shape{3, 2}, 0, 0, 1, 2, 3, 4)

	out = run(t, &Node{OpType: "Identity"}, x)
	assert.Same(t, x, out)
}

func TestActivations(t *testing.T) {
	x := floats(t, tensor.Shape{3}, -1, 0, 2)
	assertValues(t, run(t, &Node{OpType: "Relu"}, x), tensor.Shape{3}, 0, 0, 2)

	leaky := &Node{OpType: "LeakyRelu", Attrs: Attrs{"alpha": {F: 0.1}}}
	assertValues(t, run(t, leaky, x), tensor.Shape{3}, -0.1, 0, 2)

	soft := run(t, &Node{OpType: "Softmax"}, floats(t, tensor.Shape{2}, 1, 1))
	assertValues(t, soft, tensor.Shape{2}, 0.5, 0.5)
}
