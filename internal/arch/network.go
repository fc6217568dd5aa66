package arch

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/nn"
	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// Net is a built architecture: a module plus the configuration it was built from.
type Net[B tensor.Backend] interface {
	nn.Module[B]

	// Config returns the configuration that rebuilds this network.
	Config() Config
}

// Sequential networks keep their layers under "layers", so state dict keys read
// "layers.3.linear.weight". ConvNet reshapes [N, L] to [N, 1, L] before its layers.
type sequentialNet[B tensor.Backend] struct {
	composite[B]
	config    Config
	unsqueeze *nn.Unsqueeze[B]
	layers    *nn.Sequential[B]
}

func newSequentialNet[B tensor.Backend](typeName string, cfg Config, reshape bool, layers *nn.Sequential[B]) *sequentialNet[B] {
	n := &sequentialNet[B]{config: cfg, layers: layers}
	if reshape {
		n.unsqueeze = nn.NewUnsqueeze[B]()
	}
	n.composite = composite[B]{typeName: typeName, children: []nn.Named[B]{{Name: "layers", Module: layers}}}
	return n
}

func (n *sequentialNet[B]) Config() Config {
	return n.config
}

func (n *sequentialNet[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	checkLength(n.typeName, x.Shape(), n.config.InputSize)
	if n.unsqueeze != nil {
		x = n.unsqueeze.Forward(x)
	}
	return n.layers.Forward(x)
}

func (n *sequentialNet[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	if len(x.Shape) == 0 || x.Shape.Last() != n.config.InputSize {
		return onnx.None, fmt.Errorf("%s: expected input of length %d, got shape %v", n.typeName, n.config.InputSize, x.Shape)
	}
	var err error
	if n.unsqueeze != nil {
		if x, err = n.unsqueeze.Lower(g, x); err != nil {
			return onnx.None, err
		}
	}
	return nn.LowerChild(g, "layers", nn.Module[B](n.layers), x)
}

// appendLadder appends the LinearBlock ladder shared by the networks: steps blocks
// narrowing from in to out, with extra constant-width blocks after the first.
func appendLadder[B tensor.Backend](layers *nn.Sequential[B], in, out, steps, extra int, backend B) error {
	for i := 0; i < steps; i++ {
		layerIn, layerOut, err := LayerWidth(i, steps, in, out)
		if err != nil {
			return err
		}
		layers.Add(NewLinearBlock(layerIn, layerOut, backend))
		if i == 0 {
			for j := 0; j < extra; j++ {
				layers.Add(NewLinearBlock(layerOut, layerOut, backend))
			}
		}
	}
	return nil
}

// NewSimpleNet builds the fully connected network: a LinearBlock(in, in) followed
// by the ladder from in to out.
func NewSimpleNet[B tensor.Backend](cfg Config, backend B) (Net[B], error) {
	layers := nn.NewSequential[B]()
	layerIn, layerOut, err := LayerWidth(0, cfg.DownsampleSteps, cfg.InputSize, cfg.InputSize)
	if err != nil {
		return nil, err
	}
	layers.Add(NewLinearBlock(layerIn, layerOut, backend))
	if err := appendLadder(layers, cfg.InputSize, cfg.OutputSize, cfg.DownsampleSteps, cfg.ExtraSteps, backend); err != nil {
		return nil, err
	}
	return newSequentialNet("SimpleNet", cfg, false, layers), nil
}

// convFilters is the channel count of every ConvNet convolution.
const convFilters = 50

// convMinInput is the shortest input ConvNet accepts: the first kernel is 16 wide.
const convMinInput = 16

// NewConvNet builds the convolutional network: five ConvBlocks of 50 filters with
// kernels 16, 8, 8, 8, 8 (the first three length preserving), a mean pool over the
// length axis and the LinearBlock ladder from 50 to out.
func NewConvNet[B tensor.Backend](cfg Config, backend B) (Net[B], error) {
	if cfg.InputSize < convMinInput {
		return nil, fmt.Errorf("conv: input size must be at least %d, got %d", convMinInput, cfg.InputSize)
	}
	layers := nn.NewSequential[B]()
	length := cfg.InputSize
	for i, conv := range []struct {
		kernel int
		pad    bool
	}{{16, true}, {8, true}, {8, true}, {8, false}, {8, false}} {
		inChannels := convFilters
		if i == 0 {
			inChannels = 1
		}
		block := NewConvBlock(length, inChannels, convFilters, conv.kernel, conv.pad, backend)
		layers.Add(block)
		length = block.OutputSize()
	}
	layers.Add(nn.NewMeanPool[B]())
	if err := appendLadder(layers, convFilters, cfg.OutputSize, cfg.DownsampleSteps, cfg.ExtraSteps, backend); err != nil {
		return nil, err
	}
	return newSequentialNet("ConvNet", cfg, true, layers), nil
}

// upsampleKernel is the kernel of every UpsampleNet convolution.
const upsampleKernel = 16

// NewUpsampleNet builds the upsampling network: the LinearBlock ladder from in to
// out, a reshape to one channel, per step two same-padded convolutions growing the
// channel count from 1 to out (each followed by BatchNorm1D and ReLU), a mean pool
// and two LinearBlock(out, out).
func NewUpsampleNet[B tensor.Backend](cfg Config, backend B) (Net[B], error) {
	layers := nn.NewSequential[B]()
	if err := appendLadder(layers, cfg.InputSize, cfg.OutputSize, cfg.DownsampleSteps, cfg.ExtraSteps, backend); err != nil {
		return nil, err
	}
	layers.Add(nn.NewUnsqueeze[B]())
	for i := 0; i < cfg.DownsampleSteps; i++ {
		chIn, chOut, err := LayerWidth(i, cfg.DownsampleSteps, 1, cfg.OutputSize)
		if err != nil {
			return nil, err
		}
		layers.Add(NewSameConv1D(chIn, chOut, upsampleKernel, 1, 1, backend))
		layers.Add(nn.NewBatchNorm1D(chOut, 1e-5, 0.1, backend))
		layers.Add(nn.NewReLU[B]())
		layers.Add(NewSameConv1D(chOut, chOut, upsampleKernel, 1, 1, backend))
		layers.Add(nn.NewBatchNorm1D(chOut, 1e-5, 0.1, backend))
		layers.Add(nn.NewReLU[B]())
	}
	layers.Add(nn.NewMeanPool[B]())
	layers.Add(NewLinearBlock(cfg.OutputSize, cfg.OutputSize, backend))
	layers.Add(NewLinearBlock(cfg.OutputSize, cfg.OutputSize, backend))
	return newSequentialNet("UpsampleNet", cfg, false, layers), nil
}
