package serialization

import (
	"regexp"

	"github.com/born-ml/eisnet/internal/tensor"
)

// Tensor names are dotted state dict keys: "layers.3.weight", "0.batchnorm.running_mean".
var tensorName = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

func validateName(name string) error {
	if len(name) > MaxNameLength {
		return invalid(name[:32]+"...", "name longer than %d bytes", MaxNameLength)
	}
	if !tensorName.MatchString(name) {
		return invalid(name, "name is not a dotted state dict key")
	}
	return nil
}

// validateHeader checks that the tensors tile the data section in the order
// the writer lays them out: sorted by name, contiguous, nothing left over.
func validateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensors {
		return invalid("", "%d tensors, at most %d allowed", len(h.Tensors), MaxTensors)
	}
	metadataSize := 0
	for k, v := range h.Metadata {
		metadataSize += len(k) + len(v)
	}
	if metadataSize > MaxMetadataSize {
		return invalid("", "%d bytes of metadata, at most %d allowed", metadataSize, MaxMetadataSize)
	}

	var offset int64
	for i, t := range h.Tensors {
		if err := validateName(t.Name); err != nil {
			return err
		}
		if i > 0 && h.Tensors[i-1].Name >= t.Name {
			return invalid(t.Name, "listed after %q", h.Tensors[i-1].Name)
		}
		dtype, ok := tensor.ParseDataType(t.DType)
		if !ok {
			return invalid(t.Name, "unsupported dtype %q", t.DType)
		}
		if err := tensor.Shape(t.Shape).Validate(); err != nil {
			return invalid(t.Name, "%v", err)
		}
		if want := t.NumElements() * int64(dtype.Size()); t.Size != want {
			return invalid(t.Name, "size %d, %v %s needs %d", t.Size, t.Shape, dtype, want)
		}
		if t.Offset != offset {
			return invalid(t.Name, "offset %d, expected %d", t.Offset, offset)
		}
		offset += t.Size
	}
	if offset != dataSize {
		return invalid("", "tensors cover %d of %d data bytes", offset, dataSize)
	}
	return nil
}
