package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/born-ml/eisnet/internal/tensor"
)

// WriteFile writes stateDict to path, replacing any existing file.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) (err error) {
	//nolint:gosec // G304: the path is chosen by the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return WriteTo(f, stateDict, modelType, metadata)
}

// WriteTo writes stateDict in .born format to w. Tensors are stored sorted by
// name, so equal state dicts produce equal data sections.
func WriteTo(w io.Writer, stateDict map[string]*tensor.RawTensor, modelType string, metadata map[string]string) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := validateName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		Producer:      Producer,
		ModelType:     modelType,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, len(names)),
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = map[string]string{}
	}
	sum := sha256.New()
	var offset int64
	for i, name := range names {
		raw := stateDict[name]
		header.Tensors[i] = TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  raw.Shape().Clone(),
			Offset: offset,
			Size:   int64(raw.ByteSize()),
		}
		offset += int64(raw.ByteSize())
		sum.Write(raw.Data())
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	fixed := fixedHeader{
		Version:    FormatVersion,
		HeaderSize: uint64(len(headerJSON)),
		DataSize:   uint64(offset), //nolint:gosec // G115: offset is a sum of tensor sizes
	}
	copy(fixed.Magic[:], Magic)
	if len(header.Metadata) > 0 {
		fixed.Flags |= FlagHasMetadata
	}
	sum.Sum(fixed.Checksum[:0])

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	bw.Write(headerJSON)
	bw.Write(make([]byte, dataOffset(int64(len(headerJSON)))-FixedHeaderSize-int64(len(headerJSON))))
	for _, name := range names {
		bw.Write(stateDict[name].Data())
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write .born data: %w", err)
	}
	return nil
}
