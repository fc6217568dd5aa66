package tensor

// Backend defines the operations a compute backend provides to layers and to the ONNX
// runtime. All operations allocate their result; inputs are never modified.
//
// Shape violations are programming errors and panic, like indexing a slice out of range.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies [M, K] by [K, N]. Leading dimensions of a are flattened into M.
	MatMul(a, b *RawTensor) *RawTensor

	// Linear computes x @ weight.T + bias over the last dimension of x.
	// weight is [out, in]; bias is [out] or nil.
	Linear(x, weight, bias *RawTensor) *RawTensor

	// Conv1D convolves [N, C_in, L] with weight [C_out, C_in/groups, K] without padding.
	// bias is [C_out] or nil.
	Conv1D(input, weight, bias *RawTensor, stride, groups int) *RawTensor

	// MaxPool1D pools windows of the last dimension of [N, C, L].
	MaxPool1D(input *RawTensor, kernelSize, stride int) *RawTensor

	// BatchNorm normalizes over channel axis 1 using the given per-channel statistics.
	BatchNorm(x, scale, shift, mean, variance *RawTensor, eps float32) *RawTensor

	// ChannelMoments returns the per-channel mean and biased variance over every axis but 1.
	ChannelMoments(x *RawTensor) (mean, variance *RawTensor)

	// Reductions and normalizations along one dimension.
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Activations.
	ReLU(x *RawTensor) *RawTensor
	LeakyReLU(x *RawTensor, slope float32) *RawTensor

	// Shape operations.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Pad(x *RawTensor, dim, before, after int, value float32) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
