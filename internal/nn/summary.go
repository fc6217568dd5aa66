package nn

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/tensor"
)

// CountParameters returns the number of trainable scalars in m.
func CountParameters[B tensor.Backend](m Module[B]) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.NumElements()
	}
	return n
}

// TryForward runs m.Forward and converts a shape panic into an error.
func TryForward[B tensor.Backend](m Module[B], input *tensor.Tensor[float32, B]) (out *tensor.Tensor[float32, B], err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("forward pass failed for input %v: %v", input.Shape(), r)
		}
	}()
	return m.Forward(input), nil
}
