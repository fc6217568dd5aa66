package build_test

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/eisnet/internal/arch"
	"github.com/born-ml/eisnet/internal/backend/cpu"
	"github.com/born-ml/eisnet/internal/build"
	"github.com/born-ml/eisnet/internal/meta"
	"github.com/born-ml/eisnet/internal/serialization"
	"github.com/born-ml/eisnet/internal/tensor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunWritesNetwork(t *testing.T) {
	dir := t.TempDir()
	cfg, err := arch.DefaultConfig(arch.TypeSimple, 20, 3)
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := build.Run(cfg, cpu.New(), build.Options{OutDir: dir, Out: &out, Logger: quietLogger()})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "simplenet20-3.born"), res.Path)
	assert.Equal(t, tensor.Shape{build.ValidationBatch, 3}, res.OutputShape)
	assert.Positive(t, res.Parameters)
	assert.Contains(t, out.String(), "simplenet:\nSimpleNet(")
	assert.Contains(t, out.String(), "Parameter Count: ")
	assert.Contains(t, out.String(), `"outputLabels":["class_0","class_1","class_2"]`)
	assert.Contains(t, out.String(), "Saved model as "+res.Path)

	r, err := serialization.Open(res.Path)
	require.NoError(t, err)
	assert.Equal(t, arch.TypeSimple, r.Header().ModelType)

	m, err := meta.Parse([]byte(r.Metadata()[meta.FileName]))
	require.NoError(t, err)
	assert.Equal(t, res.Meta, m)

	stored, err := arch.ParseConfig(r.Metadata()[arch.ConfigFileName])
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)
	assert.Contains(t, r.TensorNames(), "layers.0.batchnorm.running_mean")
	assert.Contains(t, r.TensorNames(), "layers.0.batchnorm.num_batches_tracked")
}

func TestRunAnyLengthNetwork(t *testing.T) {
	cfg := arch.Config{Type: arch.TypeResNet, OutputSize: 2, ResNet: &arch.ResNetConfig{
		InChannels: 1, BaseFilters: 4, KernelSize: 3, Stride: 2, Groups: 1,
		NBlock: 2, DownsampleGap: 2, IncreaseFilterGap: 4, UseBN: true, UseDropout: true,
	}}
	res, err := build.Run(cfg, cpu.New(), build.Options{OutDir: t.TempDir(), Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, "resnetANY-2.born", filepath.Base(res.Path))
	assert.Nil(t, res.Meta.InputSize)
	assert.Equal(t, "resnet", res.Meta.Name)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, err := build.Run(arch.Config{Type: "lstm", InputSize: 10, OutputSize: 2}, cpu.New(),
		build.Options{OutDir: t.TempDir(), Logger: quietLogger()})
	assert.ErrorIs(t, err, arch.ErrUnknownArchitecture)

	_, err = build.Run(arch.Config{Type: arch.TypeConv, InputSize: 8, OutputSize: 2, DownsampleSteps: 4, ExtraSteps: 3},
		cpu.New(), build.Options{OutDir: t.TempDir(), Logger: quietLogger()})
	assert.Error(t, err)
}

func checksum(t *testing.T, path string) [32]byte {
	t.Helper()
	r, err := serialization.Open(path)
	require.NoError(t, err)
	return r.Checksum()
}

func TestRunSeed(t *testing.T) {
	cfg, err := arch.DefaultConfig(arch.TypeSimple, 20, 3)
	require.NoError(t, err)
	run := func(seed uint64) *build.Result {
		res, err := build.Run(cfg, cpu.New(), build.Options{OutDir: t.TempDir(), Logger: quietLogger(), Seed: seed})
		require.NoError(t, err)
		return res
	}

	a, b := run(0), run(0)
	assert.NotZero(t, a.Seed)
	assert.NotEqual(t, a.Seed, b.Seed)
	assert.NotEqual(t, checksum(t, a.Path), checksum(t, b.Path), "unseeded builds share their weights")

	a, b = run(42), run(42)
	assert.Equal(t, uint64(42), a.Seed)
	assert.Equal(t, checksum(t, a.Path), checksum(t, b.Path))
}
