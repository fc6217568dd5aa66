package nn

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/eisnet/internal/tensor"
)

// source drives weight initialization. Each process starts from a fresh seed.
var source = rand.NewSource(RandomSeed())

// SeedInit makes subsequent weight initialization deterministic.
func SeedInit(seed uint64) {
	source = rand.NewSource(seed)
}

// RandomSeed returns a non-zero seed read from the system's entropy source,
// falling back to the clock when it is unavailable.
func RandomSeed() uint64 {
	var b [8]byte
	seed := uint64(time.Now().UnixNano())
	if _, err := crand.Read(b[:]); err == nil {
		seed = binary.LittleEndian.Uint64(b[:])
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

// KaimingUniform initializes weights the way PyTorch initializes Linear and Conv1d.
//
// Values are drawn from U(-1/sqrt(fan_in), 1/sqrt(fan_in)), which is PyTorch's
// kaiming_uniform_ with a = sqrt(5). Biases use the same bound.
//
// Parameters:
//   - fanIn: Number of input units (in_features, or in_channels/groups * kernel for convolutions)
//   - shape: Shape of the weight tensor
//   - backend: Backend to use for tensor creation
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := 1.0 / math.Sqrt(float64(fanIn))
	return tensor.Sample(shape, distuv.Uniform{Min: -bound, Max: bound, Src: source}, backend)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones(shape, backend)
}
