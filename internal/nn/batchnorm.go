package nn

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// BatchNorm1D normalizes [N, C] or [N, C, L] inputs per channel.
//
// Formula: y = (x - mean) / sqrt(var + eps) * weight + bias
//
// In training mode mean and var are the batch statistics and the running
// statistics are updated as
//
//	running = (1 - momentum) * running + momentum * batch
//
// with the unbiased batch variance. In evaluation mode the running statistics
// are used. State dict keys match torch.nn.BatchNorm1d: weight, bias,
// running_mean, running_var and num_batches_tracked.
//
// Example:
//
//	bn := nn.NewBatchNorm1D(50, 1e-3, 0.1, backend)
//	y := bn.Forward(x) // [16, 50] -> [16, 50]
type BatchNorm1D[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	weight *Parameter[B] // gamma [C]
	bias   *Parameter[B] // beta [C]

	runningMean *tensor.Tensor[float32, B] // [C]
	runningVar  *tensor.Tensor[float32, B] // [C]
	numBatches  *tensor.RawTensor          // int64 scalar

	backend B
}

// NewBatchNorm1D creates a batch norm layer in training mode with weight 1,
// bias 0, running mean 0 and running variance 1.
func NewBatchNorm1D[B tensor.Backend](numFeatures int, eps, momentum float32, backend B) *BatchNorm1D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm1d: invalid feature count %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &BatchNorm1D[B]{
		numFeatures: numFeatures,
		eps:         eps,
		momentum:    momentum,
		training:    true,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros(shape, backend),
		runningVar:  Ones(shape, backend),
		numBatches:  tensor.MustRaw(tensor.Shape{}, tensor.Int64, backend.Device()),
		backend:     backend,
	}
}

// Forward normalizes the input.
func (bn *BatchNorm1D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 && len(shape) != 3 {
		panic(fmt.Sprintf("batchnorm1d: expected 2D or 3D input, got shape %v", shape))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm1d: expected %d channels, got %d", bn.numFeatures, shape[1]))
	}

	x := input.Raw()
	w, b := bn.weight.Raw(), bn.bias.Raw()
	if !bn.training {
		out := bn.backend.BatchNorm(x, w, b, bn.runningMean.Raw(), bn.runningVar.Raw(), bn.eps)
		return tensor.New[float32](out, bn.backend)
	}

	n := input.NumElements() / bn.numFeatures
	if n <= 1 {
		panic(fmt.Sprintf("batchnorm1d: expected more than 1 value per channel when training, got input size %v", shape))
	}

	mean, variance := bn.backend.ChannelMoments(x)
	out := bn.backend.BatchNorm(x, w, b, mean, variance, bn.eps)

	m := bn.momentum
	correction := float32(n) / float32(n-1)
	rm, rv := bn.runningMean.Data(), bn.runningVar.Data()
	bm, bv := mean.AsFloat32(), variance.AsFloat32()
	for c := range rm {
		rm[c] = (1-m)*rm[c] + m*bm[c]
		rv[c] = (1-m)*rv[c] + m*bv[c]*correction
	}
	bn.numBatches.AsInt64()[0]++

	return tensor.New[float32](out, bn.backend)
}

// Parameters returns [weight, bias].
func (bn *BatchNorm1D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm1D[B]) RunningMean() *tensor.Tensor[float32, B] {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm1D[B]) RunningVar() *tensor.Tensor[float32, B] {
	return bn.runningVar
}

// NumBatchesTracked returns how many training batches updated the running statistics.
func (bn *BatchNorm1D[B]) NumBatchesTracked() int64 {
	return bn.numBatches.AsInt64()[0]
}

// StateDict returns parameters and running statistics.
func (bn *BatchNorm1D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":              bn.weight.Raw(),
		"bias":                bn.bias.Raw(),
		"running_mean":        bn.runningMean.Raw(),
		"running_var":         bn.runningVar.Raw(),
		"num_batches_tracked": bn.numBatches,
	}
}

// LoadStateDict loads parameters and running statistics. num_batches_tracked is
// optional, as older exporters omit it.
func (bn *BatchNorm1D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for key, dst := range map[string]*tensor.Tensor[float32, B]{
		"weight":       bn.weight.Tensor(),
		"bias":         bn.bias.Tensor(),
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	} {
		if err := loadFloat32(dst, stateDict, key); err != nil {
			return err
		}
	}
	if raw, ok := stateDict["num_batches_tracked"]; ok {
		if raw.DType() != tensor.Int64 || raw.NumElements() != 1 {
			return fmt.Errorf("num_batches_tracked: expected int64 scalar, got %s %v", raw.DType(), raw.Shape())
		}
		bn.numBatches.AsInt64()[0] = raw.AsInt64()[0]
	}
	return nil
}

// SetTraining selects batch statistics (true) or running statistics (false).
func (bn *BatchNorm1D[B]) SetTraining(training bool) {
	bn.training = training
}

// Lower emits BatchNormalization. ONNX weighs the running statistics with momentum
// where PyTorch weighs the batch, hence 1 - momentum. In training graphs the node
// also outputs the updated running statistics.
func (bn *BatchNorm1D[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) < 2 || x.Shape[1] != bn.numFeatures {
		return onnx.None, fmt.Errorf("batchnorm1d: input %v does not have %d channels", x.Shape, bn.numFeatures)
	}
	inputs := []onnx.Value{
		x,
		g.Initializer("weight", bn.weight.Raw()),
		g.Initializer("bias", bn.bias.Raw()),
		g.Initializer("running_mean", bn.runningMean.Raw()),
		g.Initializer("running_var", bn.runningVar.Raw()),
	}
	attrs := []onnx.AttributeProto{
		onnx.AttrFloat("epsilon", bn.eps),
		onnx.AttrFloat("momentum", 1-bn.momentum),
	}
	if !g.Training() {
		return g.Node("BatchNormalization", inputs, x.Shape, attrs...), nil
	}

	attrs = append(attrs, onnx.AttrInt("training_mode", 1))
	stats := tensor.Shape{bn.numFeatures}
	outs := g.NodeN("BatchNormalization", inputs, []tensor.Shape{x.Shape, stats, stats}, attrs...)
	return outs[0], nil
}

// String returns a string representation of the layer.
func (bn *BatchNorm1D[B]) String() string {
	return fmt.Sprintf("BatchNorm1d(%d, eps=%g, momentum=%g, affine=True, track_running_stats=True)",
		bn.numFeatures, bn.eps, bn.momentum)
}
