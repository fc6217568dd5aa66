package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/eisnet/internal/parallel"
	"github.com/born-ml/eisnet/internal/tensor"
)

func raw(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat32(values, shape)
	require.NoError(t, err)
	return r
}

func TestBackendInfo(t *testing.T) {
	backend := New()
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestAddBroadcast(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := raw(t, tensor.Shape{3}, 10, 20, 30)

	out := backend.Add(a, b)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())

	col := raw(t, tensor.Shape{2, 1}, 1, 2)
	out = backend.Mul(a, col)
	assert.Equal(t, []float32{1, 2, 3, 8, 10, 12}, out.AsFloat32())
}

func TestAddIncompatiblePanics(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := raw(t, tensor.Shape{2}, 1, 2)
	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 2}, 1, 2, 3, 4)
	b := raw(t, tensor.Shape{2, 1}, 1, 1)

	out := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 1}, out.Shape())
	assert.Equal(t, []float32{3, 7}, out.AsFloat32())
}

func TestLinear(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{1, 2}, 1, 2)
	w := raw(t, tensor.Shape{3, 2}, 1, 0, 0, 1, 1, 1)
	b := raw(t, tensor.Shape{3}, 0.5, 0, 0)

	out := backend.Linear(x, w, b)
	assert.Equal(t, tensor.Shape{1, 3}, out.Shape())
	assert.Equal(t, []float32{1.5, 2, 3}, out.AsFloat32())

	// Rank 3 input applies the layer over the last axis.
	x3 := raw(t, tensor.Shape{1, 2, 2}, 1, 2, 3, 4)
	out = backend.Linear(x3, w, nil)
	assert.Equal(t, tensor.Shape{1, 2, 3}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 3, 4, 7}, out.AsFloat32())

	assert.Panics(t, func() { backend.Linear(raw(t, tensor.Shape{1, 3}, 1, 2, 3), w, b) })
}

func TestConv1D(t *testing.T) {
	backend := New(WithParallel(parallel.Sequential()))
	x := raw(t, tensor.Shape{1, 1, 5}, 1, 2, 3, 4, 5)
	w := raw(t, tensor.Shape{1, 1, 2}, 1, 1)

	out := backend.Conv1D(x, w, nil, 1, 1)
	assert.Equal(t, tensor.Shape{1, 1, 4}, out.Shape())
	assert.Equal(t, []float32{3, 5, 7, 9}, out.AsFloat32())

	out = backend.Conv1D(x, w, raw(t, tensor.Shape{1}, 1), 2, 1)
	assert.Equal(t, tensor.Shape{1, 1, 2}, out.Shape())
	assert.Equal(t, []float32{4, 8}, out.AsFloat32())
}

func TestConv1DGroupsAndBatch(t *testing.T) {
	backend := New(WithParallel(parallel.Config{Workers: 4, Grain: 1}))
	x := raw(t, tensor.Shape{2, 2, 3},
		1, 2, 3, 4, 5, 6,
		-1, -2, -3, -4, -5, -6)
	w := raw(t, tensor.Shape{2, 1, 1}, 2, 3)

	out := backend.Conv1D(x, w, nil, 1, 2)
	assert.Equal(t, tensor.Shape{2, 2, 3}, out.Shape())
	assert.Equal(t, []float32{
		2, 4, 6, 12, 15, 18,
		-2, -4, -6, -12, -15, -18,
	}, out.AsFloat32())
}

func TestConv1DMultiChannel(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{1, 2, 3}, 1, 2, 3, 10, 20, 30)
	// Two output channels, each summing both input channels over a window of 2.
	w := raw(t, tensor.Shape{2, 2, 2},
		1, 1, 1, 1,
		1, 0, 0, 1)

	out := backend.Conv1D(x, w, nil, 1, 1)
	assert.Equal(t, tensor.Shape{1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{33, 55, 21, 32}, out.AsFloat32())
}

func TestMaxPool1D(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{1, 1, 5}, 1, 5, 2, 4, 3)

	out := backend.MaxPool1D(x, 2, 2)
	assert.Equal(t, tensor.Shape{1, 1, 2}, out.Shape())
	assert.Equal(t, []float32{5, 4}, out.AsFloat32())
}

func TestBatchNormAndMoments(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{2, 1}, 1, 3)

	mean, variance := backend.ChannelMoments(x)
	assert.Equal(t, []float32{2}, mean.AsFloat32())
	assert.Equal(t, []float32{1}, variance.AsFloat32())

	one := raw(t, tensor.Shape{1}, 1)
	zero := raw(t, tensor.Shape{1}, 0)
	out := backend.BatchNorm(x, one, zero, mean, variance, 0)
	assert.Equal(t, []float32{-1, 1}, out.AsFloat32())
}

func TestBatchNorm3D(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{1, 2, 2}, 1, 3, 10, 30)

	mean, variance := backend.ChannelMoments(x)
	assert.Equal(t, []float32{2, 20}, mean.AsFloat32())
	assert.Equal(t, []float32{1, 100}, variance.AsFloat32())

	scale := raw(t, tensor.Shape{2}, 1, 2)
	shift := raw(t, tensor.Shape{2}, 0, 1)
	out := backend.BatchNorm(x, scale, shift, mean, variance, 0)
	assert.InDeltaSlice(t, []float32{-1, 1, -1, 3}, out.AsFloat32(), 1e-6)
}

func TestMeanDim(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	out := backend.MeanDim(x, -1, false)
	assert.Equal(t, tensor.Shape{2}, out.Shape())
	assert.Equal(t, []float32{2, 5}, out.AsFloat32())

	out = backend.MeanDim(x, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, out.Shape())
	assert.Equal(t, []float32{2.5, 3.5, 4.5}, out.AsFloat32())
}

func TestActivations(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{4}, -2, -1, 0, 3)

	assert.Equal(t, []float32{0, 0, 0, 3}, backend.ReLU(x).AsFloat32())
	assert.InDeltaSlice(t, []float32{-0.2, -0.1, 0, 3}, backend.LeakyReLU(x, 0.1).AsFloat32(), 1e-7)

	soft := backend.Softmax(raw(t, tensor.Shape{2, 2}, 0, 0, 1, 1), -1)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.5, 0.5}, soft.AsFloat32(), 1e-6)
}

func TestPadAndReshape(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{1, 2, 2}, 1, 2, 3, 4)

	out := backend.Pad(x, -1, 1, 2, 0)
	assert.Equal(t, tensor.Shape{1, 2, 5}, out.Shape())
	assert.Equal(t, []float32{0, 1, 2, 0, 0, 0, 3, 4, 0, 0}, out.AsFloat32())

	out = backend.Pad(x, 1, 0, 1, -1)
	assert.Equal(t, tensor.Shape{1, 3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, -1, -1}, out.AsFloat32())

	r := backend.Reshape(x, tensor.Shape{-1, 1, 4})
	assert.Equal(t, tensor.Shape{1, 1, 4}, r.Shape())
	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{3, -1}) })
}
