package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/eisnet/internal/backend/cpu"
	"github.com/born-ml/eisnet/internal/tensor"
)

func TestFromSliceAndIndexing(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	assert.Equal(t, float32(6), x.At(1, 2))
	x.Set(7, 0, 1)
	assert.Equal(t, float32(7), x.Data()[1])
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Contains(t, x.String(), "CPU")

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, backend)
	assert.Error(t, err)
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	z := tensor.Zeros[float32](tensor.Shape{2, 2}, backend)
	assert.Equal(t, []float32{0, 0, 0, 0}, z.Data())

	o := tensor.Ones(tensor.Shape{3}, backend)
	assert.Equal(t, []float32{1, 1, 1}, o.Data())

	u := tensor.Sample(tensor.Shape{100}, distuv.Uniform{Min: -0.5, Max: 0.5}, backend)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, float32(-0.5))
		assert.LessOrEqual(t, v, float32(0.5))
	}

	n := tensor.Randn(tensor.Shape{4, 5}, backend)
	assert.Equal(t, tensor.Shape{4, 5}, n.Shape())
}

func TestTensorOps(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-1, 2, -3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 2, 0, 4}, x.ReLU().Data())
	assert.Equal(t, []float32{-2, 4, -6, 8}, x.Add(x).Data())
	assert.Equal(t, []float32{1, 4, 9, 16}, x.Mul(x).Data())
	assert.Equal(t, []float32{0.5, 0.5}, x.MeanDim(-1, false).Data())

	r := x.Reshape(1, -1)
	assert.Equal(t, tensor.Shape{1, 4}, r.Shape())

	p := x.Pad(1, 1, 0, 0)
	assert.Equal(t, tensor.Shape{2, 3}, p.Shape())
	assert.Equal(t, []float32{0, -1, 2, 0, -3, 4}, p.Data())

	s := x.Softmax(-1)
	row := s.Data()[:2]
	assert.InDelta(t, 1.0, float64(row[0]+row[1]), 1e-6)
}
