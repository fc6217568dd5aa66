package serialization

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/eisnet/internal/tensor"
)

// Reader holds a parsed .born file. Model files are small, so the data
// section is read and verified in full when the file is opened.
type Reader struct {
	fixed  fixedHeader
	header Header
	data   []byte
}

// Open reads and verifies the .born file at path.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: the path is chosen by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// NewReader parses and verifies a .born stream.
func NewReader(src io.Reader) (*Reader, error) {
	r := &Reader{}
	if err := binary.Read(src, binary.LittleEndian, &r.fixed); err != nil {
		return nil, truncated("fixed header", err)
	}
	if string(r.fixed.Magic[:]) != Magic {
		return nil, ErrInvalidMagic
	}
	if r.fixed.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.fixed.Version)
	}
	if r.fixed.HeaderSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	headerSize := int64(r.fixed.HeaderSize) //nolint:gosec // G115: bounded by MaxHeaderSize
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(src, headerJSON); err != nil {
		return nil, truncated("header", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	if _, err := io.CopyN(io.Discard, src, dataOffset(headerSize)-FixedHeaderSize-headerSize); err != nil {
		return nil, truncated("padding", err)
	}

	dataSize := int64(r.fixed.DataSize) //nolint:gosec // G115: checked against the stream below
	if dataSize < 0 {
		return nil, invalid("", "data size overflows")
	}
	var data bytes.Buffer
	if n, err := io.CopyN(&data, src, dataSize); err != nil {
		return nil, truncated(fmt.Sprintf("data, read %d of %d bytes", n, dataSize), err)
	}
	r.data = data.Bytes()
	if sha256.Sum256(r.data) != r.fixed.Checksum {
		return nil, ErrChecksumMismatch
	}
	if err := validateHeader(&r.header, dataSize); err != nil {
		return nil, err
	}
	return r, nil
}

func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return fmt.Errorf("failed to read %s: %w", what, err)
}

// Header returns the JSON header.
func (r *Reader) Header() Header { return r.header }

// Flags returns the flag bits of the fixed header.
func (r *Reader) Flags() uint32 { return r.fixed.Flags }

// Checksum returns the SHA-256 of the data section.
func (r *Reader) Checksum() [sha256.Size]byte { return r.fixed.Checksum }

// Metadata returns the metadata entries of the header.
func (r *Reader) Metadata() map[string]string { return r.header.Metadata }

// TensorNames returns the tensor names in storage order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// Tensor returns a copy of the named tensor.
func (r *Reader) Tensor(name string) (*tensor.RawTensor, error) {
	for _, t := range r.header.Tensors {
		if t.Name != name {
			continue
		}
		dtype, _ := tensor.ParseDataType(t.DType)
		raw, err := tensor.FromBytes(r.data[t.Offset:t.Offset+t.Size], tensor.Shape(t.Shape), dtype, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// StateDict returns every tensor keyed by name.
func (r *Reader) StateDict() (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, t := range r.header.Tensors {
		raw, err := r.Tensor(t.Name)
		if err != nil {
			return nil, err
		}
		stateDict[t.Name] = raw
	}
	return stateDict, nil
}

// ReadFrom parses a .born stream into its state dict and header.
func ReadFrom(src io.Reader) (map[string]*tensor.RawTensor, Header, error) {
	r, err := NewReader(src)
	if err != nil {
		return nil, Header{}, err
	}
	stateDict, err := r.StateDict()
	if err != nil {
		return nil, Header{}, err
	}
	return stateDict, r.Header(), nil
}
