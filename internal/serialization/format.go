package serialization

import (
	"crypto/sha256"
	"time"
)

// Format constants.
const (
	Magic           = "BORN"
	FormatVersion   = 2
	Producer        = "eisnet"
	FixedHeaderSize = 64 // bytes before the JSON header
	DataAlignment   = 64 // the data section starts on a multiple of this
)

// FlagHasMetadata is set when the JSON header carries metadata entries.
const FlagHasMetadata uint32 = 1 << 2

// Size limits enforced on read and write.
const (
	MaxHeaderSize   = 16 << 20
	MaxMetadataSize = 8 << 20
	MaxTensors      = 10_000
	MaxNameLength   = 256
)

// fixedHeader is the binary prefix of a .born file, little endian.
type fixedHeader struct {
	Magic      [4]byte
	Version    uint32
	Flags      uint32
	_          uint32
	HeaderSize uint64
	DataSize   uint64
	Checksum   [sha256.Size]byte // of the data section
}

// Header is the JSON header following the fixed header.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Producer      string            `json:"producer"`
	ModelType     string            `json:"model_type"` // architecture type, e.g. "simple"
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
}

// TensorMeta locates one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"` // state dict key, e.g. "3.0.weight"
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // from the start of the data section
	Size   int64  `json:"size"`
}

// NumElements returns the element count of the tensor.
func (m TensorMeta) NumElements() int64 {
	n := int64(1)
	for _, d := range m.Shape {
		n *= int64(d)
	}
	return n
}

// dataOffset returns the file offset of the data section for a JSON header
// of headerSize bytes.
func dataOffset(headerSize int64) int64 {
	end := FixedHeaderSize + headerSize
	if rem := end % DataAlignment; rem != 0 {
		end += DataAlignment - rem
	}
	return end
}
