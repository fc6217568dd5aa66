// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package onnx provides ONNX export and inference for eisnet networks.
//
// Exported models use IR version 7 and opset 14. The runtime executes the
// operators the eisnet layers lower to: Gemm, MatMul, Add, Relu, LeakyRelu,
// BatchNormalization, Conv, MaxPool, Pad, ReduceMean, Reshape, Unsqueeze,
// Dropout, Identity and Softmax.
//
// Example:
//
//	model, err := onnx.Load("simplenet100-10.onnx", cpu.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	labels := model.Metadata()["outputLabels"]
//	output, err := model.Forward(input.Raw())
package onnx

import (
	internalonnx "github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/tensor"
)

// ModelProto is a parsed or built ONNX model.
type ModelProto = internalonnx.ModelProto

// Model is a loaded model ready for inference.
type Model = internalonnx.Model

// ModelInfo summarizes an ONNX file.
type ModelInfo = internalonnx.ModelInfo

// LoadOptions configures loading.
type LoadOptions = internalonnx.LoadOptions

// Load parses an ONNX file and prepares it for inference on backend.
func Load(path string, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	return internalonnx.Load(path, backend, opts...)
}

// LoadFromBytes parses serialized ONNX data.
func LoadFromBytes(data []byte, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	return internalonnx.LoadFromBytes(data, backend, opts...)
}

// ParseFile reads a model without preparing it for inference.
func ParseFile(path string) (*ModelProto, error) {
	return internalonnx.ParseFile(path)
}

// SaveFile serializes m to path.
func SaveFile(m *ModelProto, path string) error {
	return internalonnx.SaveFile(m, path)
}

// Check validates the structure of m.
func Check(m *ModelProto) error {
	return internalonnx.Check(m)
}

// MetadataValue returns the metadata_props entry for key.
func MetadataValue(m *ModelProto, key string) (string, bool) {
	return internalonnx.MetadataValue(m, key)
}

// GetModelInfo reads the header information of an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}

// ListSupportedOps returns the operators the runtime executes.
func ListSupportedOps() []string {
	return internalonnx.ListSupportedOps()
}
