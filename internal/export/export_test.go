package export_test

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/eisnet/internal/arch"
	"github.com/born-ml/eisnet/internal/backend/cpu"
	"github.com/born-ml/eisnet/internal/build"
	"github.com/born-ml/eisnet/internal/export"
	"github.com/born-ml/eisnet/internal/meta"
	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/serialization"
	"github.com/born-ml/eisnet/internal/tensor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildNetwork writes a small network of the given type and returns its path.
func buildNetwork(t *testing.T, cfg arch.Config) string {
	t.Helper()
	res, err := build.Run(cfg, cpu.New(), build.Options{OutDir: t.TempDir(), Logger: quietLogger()})
	require.NoError(t, err)
	return res.Path
}

func simpleConfig() arch.Config {
	return arch.Config{Type: arch.TypeSimple, InputSize: 24, OutputSize: 3, DownsampleSteps: 4, ExtraSteps: 3}
}

func TestOpenRestoresNetwork(t *testing.T) {
	path := buildNetwork(t, simpleConfig())
	n, err := export.Open(path, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, "simplenet24-3", n.Base)
	assert.Equal(t, simpleConfig(), n.Net.Config())
	assert.Equal(t, "simplenet", n.Meta.Name)

	r, err := serialization.Open(path)
	require.NoError(t, err)
	saved, err := r.Tensor("layers.2.linear.weight")
	require.NoError(t, err)
	assert.Equal(t, saved.AsFloat32(), n.Net.StateDict()["layers.2.linear.weight"].AsFloat32())
}

func TestOpenRequiresMetadata(t *testing.T) {
	dir := t.TempDir()
	b := cpu.New()
	net, err := arch.Build(simpleConfig(), b)
	require.NoError(t, err)
	archJSON, err := simpleConfig().Marshal()
	require.NoError(t, err)
	metaJSON, err := meta.New("simplenet", 24, 3).Marshal()
	require.NoError(t, err)

	noMeta := filepath.Join(dir, "nometa.born")
	require.NoError(t, serialization.WriteFile(noMeta, net.StateDict(), "simple",
		map[string]string{arch.ConfigFileName: archJSON}))
	_, err = export.Open(noMeta, b)
	assert.ErrorIs(t, err, export.ErrMissingMeta)

	noArch := filepath.Join(dir, "noarch.born")
	require.NoError(t, serialization.WriteFile(noArch, net.StateDict(), "simple",
		map[string]string{meta.FileName: string(metaJSON)}))
	_, err = export.Open(noArch, b)
	assert.ErrorIs(t, err, export.ErrMissingArch)

	_, err = export.Open(filepath.Join(dir, "missing.born"), b)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExportEvalModel(t *testing.T) {
	path := buildNetwork(t, simpleConfig())
	n, err := export.Open(path, cpu.New())
	require.NoError(t, err)

	outDir := t.TempDir()
	res, err := export.Export(n, export.Options{OutDir: outDir, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "simplenet24-3.onnx"), res.ONNXPath)
	assert.Empty(t, res.TrainArchive)
	assert.LessOrEqual(t, res.MaxDiff, export.DefaultTolerance)

	model, err := onnx.ParseFile(res.ONNXPath)
	require.NoError(t, err)
	require.NoError(t, onnx.Check(model))
	assert.Equal(t, int64(onnx.IRVersion), model.IRVersion)
	assert.Equal(t, "eisnet", model.ProducerName)
	assert.Equal(t, "EIS", model.Graph.Inputs[0].Name)
	assert.Equal(t, "Unkown", model.Graph.Outputs[0].Name)

	labels, _ := onnx.MetadataValue(model, export.KeyOutputLabels)
	assert.Equal(t, "class_0,class_1,class_2", labels)
	softmax, _ := onnx.MetadataValue(model, export.KeySoftmax)
	assert.Equal(t, "True", softmax)
	_, ok := onnx.MetadataValue(model, export.KeyVersion)
	assert.False(t, ok)

	for _, node := range model.Graph.Nodes {
		assert.NotEqual(t, "Dropout", node.OpType)
	}
}

func TestExportOverrides(t *testing.T) {
	path := buildNetwork(t, arch.Config{Type: arch.TypeConv, InputSize: 20, OutputSize: 2, DownsampleSteps: 4, ExtraSteps: 3})
	n, err := export.Open(path, cpu.New())
	require.NoError(t, err)

	res, err := export.Export(n, export.Options{
		OutDir:        t.TempDir(),
		Purpose:       "Circuit",
		InputName:     "Spectrum",
		Version:       "1.2",
		OutputPrepend: "c_",
		Logger:        quietLogger(),
	})
	require.NoError(t, err)

	model, err := onnx.ParseFile(res.ONNXPath)
	require.NoError(t, err)
	assert.Equal(t, "Spectrum", model.Graph.Inputs[0].Name)
	assert.Equal(t, "Circuit", model.Graph.Outputs[0].Name)
	labels, _ := onnx.MetadataValue(model, export.KeyOutputLabels)
	assert.Equal(t, "c_class_0,c_class_1", labels)
	version, _ := onnx.MetadataValue(model, export.KeyVersion)
	assert.Equal(t, "1.2", version)
}

func TestExportTrainingArchive(t *testing.T) {
	path := buildNetwork(t, simpleConfig())
	n, err := export.Open(path, cpu.New())
	require.NoError(t, err)

	outDir := t.TempDir()
	res, err := export.Export(n, export.Options{OutDir: outDir, Train: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "simplenet24-3_train.tar"), res.TrainArchive)
	assert.NoFileExists(t, filepath.Join(outDir, "simplenet24-3_train.onnx"))

	entries := readTar(t, res.TrainArchive)
	var names []string
	for name := range entries {
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{
		export.ArchiveTrainingModel, export.ArchiveEvalModel, export.ArchiveCheckpoint,
		export.ArchiveRequiresGrad, export.ArchiveMeta,
	}, names)

	train, err := onnx.Parse(entries[export.ArchiveTrainingModel])
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 24}, shapeOf(train.Graph.Inputs[0]))
	var bnOutputs []int
	for _, node := range train.Graph.Nodes {
		if node.OpType == "BatchNormalization" {
			bnOutputs = append(bnOutputs, len(node.Outputs))
		}
	}
	require.NotEmpty(t, bnOutputs)
	for _, outs := range bnOutputs {
		assert.Equal(t, 3, outs)
	}

	var requiresGrad []string
	require.NoError(t, json.Unmarshal(entries[export.ArchiveRequiresGrad], &requiresGrad))
	require.NotEmpty(t, requiresGrad)
	assert.Contains(t, requiresGrad, "layers.0.linear.weight")
	assert.Contains(t, requiresGrad, "layers.0.batchnorm.bias")
	assert.NotContains(t, requiresGrad, "layers.0.batchnorm.running_mean")

	stateDict, header, err := serialization.ReadFrom(bytes.NewReader(entries[export.ArchiveCheckpoint]))
	require.NoError(t, err)
	assert.Len(t, stateDict, len(requiresGrad))
	assert.Contains(t, header.Metadata, meta.FileName)

	assert.True(t, strings.HasPrefix(string(entries[export.ArchiveMeta]), "{\n\t\""))
	m, err := meta.Parse(entries[export.ArchiveMeta])
	require.NoError(t, err)
	assert.Equal(t, n.Meta, m)
}

func TestAddMetadata(t *testing.T) {
	newModel := func() *onnx.ModelProto {
		return &onnx.ModelProto{Graph: &onnx.GraphProto{Name: "g"}}
	}

	t.Run("missing labels fall back with a warning", func(t *testing.T) {
		var logs bytes.Buffer
		model := newModel()
		m := meta.Meta{Name: "n", OutputSize: 2, OutputLabels: []string{"only"}}
		export.AddMetadata(model, m, export.Options{
			OutputPrepend: "x_",
			Logger:        slog.New(slog.NewTextHandler(&logs, nil)),
		})
		labels, _ := onnx.MetadataValue(model, export.KeyOutputLabels)
		assert.Equal(t, "class_0,class_1", labels)
		assert.Contains(t, logs.String(), "model lacks output labels")
	})

	t.Run("existing entries are kept", func(t *testing.T) {
		model := newModel()
		onnx.AddMetadata(model, export.KeyOutputLabels, "a,b")
		onnx.AddMetadata(model, export.KeySoftmax, "false")
		export.AddMetadata(model, meta.New("n", 4, 2), export.Options{Logger: quietLogger()})
		labels, _ := onnx.MetadataValue(model, export.KeyOutputLabels)
		assert.Equal(t, "a,b", labels)
		softmax, _ := onnx.MetadataValue(model, export.KeySoftmax)
		assert.Equal(t, "false", softmax)

		seen := map[string]int{}
		for _, e := range model.MetadataProps {
			seen[e.Key]++
		}
		for key, count := range seen {
			assert.Equal(t, 1, count, key)
		}
	})

	t.Run("per output values need one entry per output", func(t *testing.T) {
		model := newModel()
		off := false
		m := meta.New("n", 4, 2)
		m.OutputBiases = []float64{0.5, -1}
		m.OutputScalars = []float64{2}
		m.ExtraInputs = []string{"temperature", "soc"}
		m.ExtraInputLengths = []int{1, 1}
		m.Softmax = &off
		export.AddMetadata(model, m, export.Options{Logger: quietLogger()})

		biases, _ := onnx.MetadataValue(model, export.KeyOutputBiases)
		assert.Equal(t, "0.5,-1", biases)
		_, ok := onnx.MetadataValue(model, export.KeyOutputScalars)
		assert.False(t, ok)
		extra, _ := onnx.MetadataValue(model, export.KeyExtraInputs)
		assert.Equal(t, "temperature,soc", extra)
		lengths, _ := onnx.MetadataValue(model, export.KeyExtraInputLengths)
		assert.Equal(t, "1,1", lengths)
		softmax, _ := onnx.MetadataValue(model, export.KeySoftmax)
		assert.Equal(t, "False", softmax)
	})
}

func TestDescribe(t *testing.T) {
	path := buildNetwork(t, simpleConfig())
	var out bytes.Buffer
	require.NoError(t, export.Describe(path, &out))
	assert.Contains(t, out.String(), "Model type:  simple")
	assert.Contains(t, out.String(), "meta.json: ")
	assert.Contains(t, out.String(), "layers.0.linear.weight")

	n, err := export.Open(path, cpu.New())
	require.NoError(t, err)
	res, err := export.Export(n, export.Options{OutDir: t.TempDir(), Version: "3", Logger: quietLogger()})
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, export.Describe(res.ONNXPath, &out))
	assert.Contains(t, out.String(), "Producer:    eisnet")
	assert.Contains(t, out.String(), "Inputs:      EIS")
	assert.Contains(t, out.String(), "version: 3")

	assert.Error(t, export.Describe("model.pt", &out))
}

func readTar(t *testing.T, path string) map[string][]byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = data
	}
	return entries
}

func shapeOf(v onnx.ValueInfoProto) tensor.Shape {
	var shape tensor.Shape
	for _, d := range v.Type.TensorType.Shape.Dims {
		shape = append(shape, int(d.DimValue))
	}
	return shape
}
