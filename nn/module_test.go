// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/eisnet/backend/cpu"
	"github.com/born-ml/eisnet/nn"
	"github.com/born-ml/eisnet/tensor"
)

func linearBlock(backend *cpu.Backend, in, out int) *nn.Sequential[*cpu.Backend] {
	return nn.NewSequential[*cpu.Backend](
		nn.NewLinear(in, out, backend),
		nn.NewLeakyReLU[*cpu.Backend](0.1),
		nn.NewBatchNorm1D(out, 1e-3, 0.1, backend),
	)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	backend := cpu.New()
	nn.SeedInit(1)
	src := linearBlock(backend, 12, 5)
	assert.Equal(t, 12*5+5+5+5, nn.CountParameters[*cpu.Backend](src))

	// One training step moves the running statistics away from their defaults.
	x := tensor.Randn(tensor.Shape{8, 12}, backend)
	_, err := nn.TryForward[*cpu.Backend](src, x)
	require.NoError(t, err)
	src.SetTraining(false)

	path := filepath.Join(t.TempDir(), "block.born")
	require.NoError(t, nn.SaveModule[*cpu.Backend](path, src, "block", map[string]string{"note": "test"}))

	nn.SeedInit(2)
	dst := linearBlock(backend, 12, 5)
	dst.SetTraining(false)
	header, err := nn.LoadModule[*cpu.Backend](path, dst)
	require.NoError(t, err)
	assert.Equal(t, "block", header.ModelType)
	assert.Equal(t, "test", header.Metadata["note"])

	want, err := nn.TryForward[*cpu.Backend](src, x)
	require.NoError(t, err)
	got, err := nn.TryForward[*cpu.Backend](dst, x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-6)
}

func TestTryForwardShapeError(t *testing.T) {
	backend := cpu.New()
	block := linearBlock(backend, 12, 5)
	_, err := nn.TryForward[*cpu.Backend](block, tensor.Randn(tensor.Shape{4, 7}, backend))
	assert.Error(t, err)
}

func TestConvStack(t *testing.T) {
	backend := cpu.New()
	net := nn.NewSequential[*cpu.Backend](
		nn.NewUnsqueeze[*cpu.Backend](),
		nn.NewSamePad1D[*cpu.Backend](5, 1),
		nn.NewConv1D(1, 4, 5, 1, 1, backend),
		nn.NewReLU[*cpu.Backend](),
		nn.NewMaxPool1D(2, backend),
		nn.NewChannelPad[*cpu.Backend](0, 2),
		nn.NewConstantPad1D[*cpu.Backend](1, 1),
		nn.NewDropout[*cpu.Backend](0.5),
		nn.NewMeanPool[*cpu.Backend](),
	)
	net.SetTraining(false)
	y, err := nn.TryForward[*cpu.Backend](net, tensor.Randn(tensor.Shape{3, 20}, backend))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 6}, y.Shape())
}
