// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/eisnet/internal/nn"
	"github.com/born-ml/eisnet/tensor"
)

// Layer types.
type (
	Linear[B tensor.Backend]      = nn.Linear[B]
	Conv1D[B tensor.Backend]      = nn.Conv1D[B]
	BatchNorm1D[B tensor.Backend] = nn.BatchNorm1D[B]
	ReLU[B tensor.Backend]        = nn.ReLU[B]
	LeakyReLU[B tensor.Backend]   = nn.LeakyReLU[B]
	Dropout[B tensor.Backend]     = nn.Dropout[B]
	MaxPool1D[B tensor.Backend]   = nn.MaxPool1D[B]
	MeanPool[B tensor.Backend]    = nn.MeanPool[B]
	ConstantPad[B tensor.Backend] = nn.ConstantPad[B]
	SamePad1D[B tensor.Backend]   = nn.SamePad1D[B]
	Unsqueeze[B tensor.Backend]   = nn.Unsqueeze[B]
	Sequential[B tensor.Backend]  = nn.Sequential[B]
)

// NewLinear creates a fully connected layer with Kaiming-uniform weights.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewConv1D creates a 1-D convolution without padding.
func NewConv1D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, groups int, backend B) *Conv1D[B] {
	return nn.NewConv1D(inChannels, outChannels, kernelSize, stride, groups, backend)
}

// NewBatchNorm1D creates a batch norm over the channel axis.
func NewBatchNorm1D[B tensor.Backend](numFeatures int, eps, momentum float32, backend B) *BatchNorm1D[B] {
	return nn.NewBatchNorm1D(numFeatures, eps, momentum, backend)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// NewLeakyReLU creates a leaky ReLU with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float32) *LeakyReLU[B] {
	return nn.NewLeakyReLU[B](slope)
}

// NewDropout creates a dropout layer, active only in training mode.
func NewDropout[B tensor.Backend](p float64) *Dropout[B] {
	return nn.NewDropout[B](p)
}

// NewMaxPool1D creates a max pool with stride equal to kernelSize.
func NewMaxPool1D[B tensor.Backend](kernelSize int, backend B) *MaxPool1D[B] {
	return nn.NewMaxPool1D(kernelSize, backend)
}

// NewMeanPool averages over the last axis.
func NewMeanPool[B tensor.Backend]() *MeanPool[B] {
	return nn.NewMeanPool[B]()
}

// NewConstantPad1D zero-pads the last axis.
func NewConstantPad1D[B tensor.Backend](left, right int) *ConstantPad[B] {
	return nn.NewConstantPad1D[B](left, right)
}

// NewChannelPad zero-pads the channel axis.
func NewChannelPad[B tensor.Backend](before, after int) *ConstantPad[B] {
	return nn.NewChannelPad[B](before, after)
}

// NewSamePad1D pads so a following convolution keeps ceil(length/stride) outputs.
func NewSamePad1D[B tensor.Backend](kernelSize, stride int) *SamePad1D[B] {
	return nn.NewSamePad1D[B](kernelSize, stride)
}

// NewUnsqueeze turns [N, L] into [N, 1, L].
func NewUnsqueeze[B tensor.Backend]() *Unsqueeze[B] {
	return nn.NewUnsqueeze[B]()
}

// NewSequential chains modules; state dict keys are prefixed by position.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}
