package export

import (
	"strings"

	"github.com/born-ml/eisnet/internal/meta"
	"github.com/born-ml/eisnet/internal/onnx"
)

// Metadata keys written into exported models.
const (
	KeyOutputLabels      = "outputLabels"
	KeyOutputBiases      = "outputBiases"
	KeyOutputScalars     = "outputScalars"
	KeyExtraInputs       = "extraInputs"
	KeyExtraInputLengths = "extraInputLengths"
	KeySoftmax           = "softmax"
	KeyVersion           = "version"
)

// AddMetadata stores the record m as metadata_props of model. Entries already
// present are left untouched. Labels, biases and scalars are only written when
// there is one per output; a network without usable labels gets class_i labels
// and a warning.
func AddMetadata(model *onnx.ModelProto, m meta.Meta, opts Options) {
	if _, ok := onnx.MetadataValue(model, KeyOutputLabels); !ok {
		labels := m.OutputLabels
		if len(labels) != m.OutputSize {
			opts.logger().Warn("model lacks output labels", "labels", len(labels), "outputs", m.OutputSize)
			labels = meta.DefaultLabels(m.OutputSize)
		} else if opts.OutputPrepend != "" {
			prefixed := make([]string, len(labels))
			for i, l := range labels {
				prefixed[i] = opts.OutputPrepend + l
			}
			labels = prefixed
		}
		onnx.AddMetadata(model, KeyOutputLabels, strings.Join(labels, ","))
	}

	if len(m.OutputBiases) == m.OutputSize {
		onnx.AddMetadata(model, KeyOutputBiases, meta.JoinFloats(m.OutputBiases))
	}
	if len(m.OutputScalars) == m.OutputSize {
		onnx.AddMetadata(model, KeyOutputScalars, meta.JoinFloats(m.OutputScalars))
	}
	if len(m.ExtraInputs) > 0 {
		onnx.AddMetadata(model, KeyExtraInputs, strings.Join(m.ExtraInputs, ","))
	}
	if len(m.ExtraInputLengths) > 0 {
		onnx.AddMetadata(model, KeyExtraInputLengths, meta.JoinInts(m.ExtraInputLengths))
	}
	onnx.AddMetadata(model, KeySoftmax, boolString(m.SoftmaxValue()))
	if opts.Version != "" {
		onnx.AddMetadata(model, KeyVersion, opts.Version)
	}
}

// boolString spells booleans the way the trainer's tooling writes them.
func boolString(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
