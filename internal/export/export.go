// Package export converts .born networks into ONNX models with the metadata
// inference consumers expect, verifies them against the native forward pass and
// optionally packs the files needed to continue training in ONNX.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/eisnet/internal/arch"
	"github.com/born-ml/eisnet/internal/meta"
	"github.com/born-ml/eisnet/internal/nn"
	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/serialization"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Errors callers branch on.
var (
	ErrMissingMeta  = errors.New("network does not contain a meta.json")
	ErrMissingArch  = errors.New("network does not contain an arch.json")
	ErrVerification = errors.New("exported model does not reproduce the native output")
)

// DefaultTolerance is the largest absolute difference accepted between the
// runtime and the native forward pass.
const DefaultTolerance = 1e-4

// Options control an export.
type Options struct {
	Purpose       string // overrides meta purpose, the output name
	InputName     string // overrides meta inputLabel, the input name
	Version       string // written as the "version" metadata entry when set
	OutputPrepend string // prefixed to every output label
	Train         bool   // also write <base>_train.tar
	OutDir        string // defaults to the working directory
	Tolerance     float64

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) tolerance() float64 {
	if o.Tolerance > 0 {
		return o.Tolerance
	}
	return DefaultTolerance
}

func (o Options) inputName(m meta.Meta) string {
	if o.InputName != "" {
		return o.InputName
	}
	return m.InputName()
}

func (o Options) outputName(m meta.Meta) string {
	if o.Purpose != "" {
		return o.Purpose
	}
	return m.OutputName()
}

// Network is a network restored from a .born file.
type Network[B tensor.Backend] struct {
	Net     arch.Net[B]
	Meta    meta.Meta
	Base    string // file name without directory and extension
	Backend B
}

// Open rebuilds the network stored at path and loads its weights.
func Open[B tensor.Backend](path string, backend B) (*Network[B], error) {
	reader, err := serialization.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network: %w", err)
	}

	metadata := reader.Metadata()
	metaJSON, ok := metadata[meta.FileName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingMeta)
	}
	m, err := meta.Parse([]byte(metaJSON))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	archJSON, ok := metadata[arch.ConfigFileName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingArch)
	}
	cfg, err := arch.ParseConfig(archJSON)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	net, err := arch.Build(cfg, backend)
	if err != nil {
		return nil, err
	}
	stateDict, err := reader.StateDict()
	if err != nil {
		return nil, err
	}
	if err := nn.LoadStrict[B](net, stateDict); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Network[B]{
		Net:     net,
		Meta:    m,
		Base:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Backend: backend,
	}, nil
}

// Result lists the files an export wrote.
type Result struct {
	ONNXPath     string
	TrainArchive string  // empty unless Options.Train
	MaxDiff      float64 // largest runtime vs native difference
}

// Export writes <base>.onnx (and <base>_train.tar with Options.Train) for n.
func Export[B tensor.Backend](n *Network[B], opts Options) (*Result, error) {
	log := opts.logger()
	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	log.Info("exporting eval model", "network", n.Base)
	evalModel, err := Lower(n.Net, n.Meta, opts, false)
	if err != nil {
		return nil, err
	}
	res := &Result{ONNXPath: filepath.Join(outDir, n.Base+".onnx")}
	if err := onnx.SaveFile(evalModel, res.ONNXPath); err != nil {
		return nil, err
	}
	if res.MaxDiff, err = Verify(n.Net, n.Backend, res.ONNXPath, opts.tolerance()); err != nil {
		return nil, err
	}
	log.Info("saved onnx model", "path", res.ONNXPath, "max_diff", res.MaxDiff)

	if !opts.Train {
		return res, nil
	}

	log.Info("exporting train model", "network", n.Base)
	trainModel, err := Lower(n.Net, n.Meta, opts, true)
	if err != nil {
		return nil, err
	}
	trainBase := filepath.Join(outDir, n.Base+"_train")
	tmpPath := trainBase + ".onnx"
	if err := onnx.SaveFile(trainModel, tmpPath); err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := onnx.Load(tmpPath, n.Backend); err != nil {
		return nil, fmt.Errorf("training model does not load: %w", err)
	}

	res.TrainArchive = trainBase + ".tar"
	if err := WriteTrainingArchive(res.TrainArchive, trainModel, evalModel, n.Meta); err != nil {
		return nil, err
	}
	log.Info("saved training archive", "path", res.TrainArchive)
	return res, nil
}

// Lower builds the ONNX model of net: batch 1 for evaluation, batch 2 with
// batch statistics and dropout for training. The model is checked and carries
// the metadata entries described by m and opts.
func Lower[B tensor.Backend](net arch.Net[B], m meta.Meta, opts Options, training bool) (*onnx.ModelProto, error) {
	batch := 1
	if training {
		batch = 2
	}
	net.SetTraining(false)

	g := onnx.NewGraphBuilder("main_graph", training)
	in, err := g.Input(opts.inputName(m), tensor.Shape{batch, net.Config().ProbeLength()})
	if err != nil {
		return nil, err
	}
	out, err := net.Lower(g, in)
	if err != nil {
		return nil, fmt.Errorf("failed to lower %s: %w", net.Config().Name(), err)
	}
	if _, err := g.Output(out, opts.outputName(m)); err != nil {
		return nil, err
	}

	model := g.Model()
	if err := onnx.Check(model); err != nil {
		return nil, err
	}
	AddMetadata(model, m, opts)
	return model, nil
}

// Verify runs the ONNX model at path on a random input and compares it with the
// native forward pass of net in evaluation mode. It returns the largest absolute
// difference.
func Verify[B tensor.Backend](net arch.Net[B], backend B, path string, tolerance float64) (float64, error) {
	model, err := onnx.Load(path, backend)
	if err != nil {
		return 0, err
	}
	net.SetTraining(false)
	x := tensor.Randn(tensor.Shape{1, net.Config().ProbeLength()}, backend)
	want, err := nn.TryForward[B](net, x)
	if err != nil {
		return 0, err
	}
	got, err := model.Forward(x.Raw())
	if err != nil {
		return 0, fmt.Errorf("failed to run exported model: %w", err)
	}
	if !got.Shape().Equal(want.Shape()) {
		return 0, fmt.Errorf("%w: shape %v, native %v", ErrVerification, got.Shape(), want.Shape())
	}

	diff := floats.Distance(toFloat64(want.Data()), toFloat64(got.AsFloat32()), math.Inf(1))
	if math.IsNaN(diff) || diff > tolerance {
		return diff, fmt.Errorf("%w: max difference %g exceeds %g", ErrVerification, diff, tolerance)
	}
	return diff, nil
}

func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
