package serialization

import (
	"errors"
	"fmt"
)

// Errors returned when a file cannot be read.
var (
	ErrInvalidMagic       = errors.New("not a .born file")
	ErrUnsupportedVersion = errors.New("unsupported .born format version")
	ErrHeaderTooLarge     = errors.New(".born header too large")
	ErrTruncated          = errors.New(".born file is truncated")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrTensorNotFound     = errors.New("tensor not found")
)

// ValidationError reports a header entry that does not describe a valid tensor
// layout.
type ValidationError struct {
	Tensor string // empty for file level problems
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Tensor == "" {
		return "invalid .born header: " + e.Reason
	}
	return fmt.Sprintf("invalid .born header: tensor %q: %s", e.Tensor, e.Reason)
}

func invalid(tensor, format string, args ...any) error {
	return &ValidationError{Tensor: tensor, Reason: fmt.Sprintf(format, args...)}
}
