package export

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/born-ml/eisnet/internal/meta"
	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/serialization"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Entries of a training archive.
const (
	ArchiveTrainingModel = "training_model.onnx"
	ArchiveEvalModel     = "eval_model.onnx"
	ArchiveCheckpoint    = "checkpoint.born"
	ArchiveRequiresGrad  = "requires_grad.json"
	ArchiveMeta          = meta.FileName
)

// checkpointModelType is the header model type of checkpoint.born.
const checkpointModelType = "checkpoint"

// RequiresGrad returns the initializers a trainer should update: those whose
// name contains "weight" or "bias", in graph order.
func RequiresGrad(model *onnx.ModelProto) []string {
	var names []string
	for _, t := range model.Graph.Initializers {
		if strings.Contains(t.Name, "weight") || strings.Contains(t.Name, "bias") {
			names = append(names, t.Name)
		}
	}
	return names
}

// Checkpoint returns the trainable initializers of model as a state dict.
func Checkpoint(model *onnx.ModelProto) (map[string]*tensor.RawTensor, error) {
	trainable := make(map[string]bool)
	for _, name := range RequiresGrad(model) {
		trainable[name] = true
	}
	stateDict := make(map[string]*tensor.RawTensor, len(trainable))
	for i := range model.Graph.Initializers {
		t := &model.Graph.Initializers[i]
		if !trainable[t.Name] {
			continue
		}
		raw, err := onnx.TensorFromProto(t)
		if err != nil {
			return nil, fmt.Errorf("initializer %q: %w", t.Name, err)
		}
		stateDict[t.Name] = raw
	}
	return stateDict, nil
}

// WriteTrainingArchive writes the tar archive holding the training and
// evaluation graphs, the trainable parameters, their names and the metadata
// record. An existing file at path is replaced.
func WriteTrainingArchive(path string, trainModel, evalModel *onnx.ModelProto, m meta.Meta) (err error) {
	stateDict, err := Checkpoint(trainModel)
	if err != nil {
		return err
	}
	metaJSON, err := m.Marshal()
	if err != nil {
		return err
	}
	var checkpoint bytes.Buffer
	if err := serialization.WriteTo(&checkpoint, stateDict, checkpointModelType,
		map[string]string{meta.FileName: string(metaJSON)}); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	requiresGrad, err := json.Marshal(RequiresGrad(trainModel))
	if err != nil {
		return err
	}
	indented, err := m.MarshalIndent()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tw := tar.NewWriter(f)
	now := time.Now()
	for _, entry := range []struct {
		name string
		data []byte
	}{
		{ArchiveTrainingModel, onnx.Marshal(trainModel)},
		{ArchiveEvalModel, onnx.Marshal(evalModel)},
		{ArchiveCheckpoint, checkpoint.Bytes()},
		{ArchiveRequiresGrad, requiresGrad},
		{ArchiveMeta, indented},
	} {
		hdr := &tar.Header{Name: entry.name, Mode: 0o644, Size: int64(len(entry.data)), ModTime: now}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write %s: %w", entry.name, err)
		}
		if _, err := tw.Write(entry.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", entry.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}
