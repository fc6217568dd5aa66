package export

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/serialization"
)

// Describe writes a human readable summary of a .born or .onnx file to w.
func Describe(path string, w io.Writer) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return describeONNX(path, w)
	case ".born":
		return describeBorn(path, w)
	default:
		return fmt.Errorf("%s: unknown file type, expected .born or .onnx", path)
	}
}

func describeBorn(path string, w io.Writer) error {
	reader, err := serialization.Open(path)
	if err != nil {
		return err
	}

	h := reader.Header()
	fmt.Fprintf(w, "File:        %s\n", path)
	fmt.Fprintf(w, "Format:      born v%d (%s)\n", h.FormatVersion, h.Producer)
	fmt.Fprintf(w, "Model type:  %s\n", h.ModelType)
	fmt.Fprintf(w, "Created:     %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Checksum:    %x\n", reader.Checksum())
	fmt.Fprintf(w, "Tensors:     %d\n", len(h.Tensors))
	var elements int64
	for _, t := range h.Tensors {
		elements += t.NumElements()
		fmt.Fprintf(w, "  %-48s %-8s %v\n", t.Name, t.DType, t.Shape)
	}
	fmt.Fprintf(w, "Elements:    %d\n", elements)
	writeMetadata(w, h.Metadata)
	return nil
}

func describeONNX(path string, w io.Writer) error {
	info, err := onnx.GetModelInfo(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "File:        %s\n", path)
	fmt.Fprintf(w, "IR version:  %d\n", info.IRVersion)
	fmt.Fprintf(w, "Opset:       %d\n", info.OpsetVersion)
	fmt.Fprintf(w, "Producer:    %s %s\n", info.ProducerName, info.ProducerVersion)
	fmt.Fprintf(w, "Inputs:      %s\n", strings.Join(info.InputNames, ", "))
	fmt.Fprintf(w, "Outputs:     %s\n", strings.Join(info.OutputNames, ", "))
	fmt.Fprintf(w, "Nodes:       %d\n", info.NodeCount)
	fmt.Fprintf(w, "Weights:     %d\n", info.WeightCount)
	metadata := make(map[string]string, len(info.Metadata))
	for _, e := range info.Metadata {
		metadata[e.Key] = e.Value
	}
	writeMetadata(w, metadata)
	return nil
}

func writeMetadata(w io.Writer, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Metadata:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, metadata[k])
	}
}
