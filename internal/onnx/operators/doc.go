// Package operators holds the kernels behind the ONNX runtime. Kernels
// delegate arithmetic to a tensor.Backend; Registry.Run turns backend panics
// into errors.
package operators
