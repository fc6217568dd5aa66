package arch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/eisnet/internal/nn"
	"github.com/born-ml/eisnet/internal/onnx"
	"github.com/born-ml/eisnet/internal/tensor"
)

// ResNetConfig holds the ResNet1D hyperparameters.
type ResNetConfig struct {
	InChannels        int  `json:"inChannels"`
	BaseFilters       int  `json:"baseFilters"`
	KernelSize        int  `json:"kernelSize"`
	Stride            int  `json:"stride"`
	Groups            int  `json:"groups"`
	NBlock            int  `json:"nBlock"`
	DownsampleGap     int  `json:"downsampleGap"`
	IncreaseFilterGap int  `json:"increaseFilterGap"`
	UseBN             bool `json:"useBN"`
	UseDropout        bool `json:"useDropout"`
}

// DefaultResNetConfig returns the hyperparameters used for EIS classification with
// nClasses outputs.
func DefaultResNetConfig(nClasses int) ResNetConfig {
	return ResNetConfig{
		InChannels:        1,
		BaseFilters:       100,
		KernelSize:        16,
		Stride:            2,
		Groups:            1,
		NBlock:            8,
		DownsampleGap:     nClasses,
		IncreaseFilterGap: 12,
		UseBN:             true,
		UseDropout:        true,
	}
}

func (c ResNetConfig) validate() error {
	switch {
	case c.InChannels <= 0 || c.BaseFilters <= 0 || c.KernelSize <= 0 || c.Stride <= 0:
		return fmt.Errorf("resnet: channels, filters, kernel and stride must be positive: %+v", c)
	case c.Groups <= 0 || c.BaseFilters%c.Groups != 0:
		return fmt.Errorf("resnet: groups %d must divide base filters %d", c.Groups, c.BaseFilters)
	case c.NBlock <= 0 || c.DownsampleGap <= 0 || c.IncreaseFilterGap <= 0:
		return fmt.Errorf("resnet: block count and gaps must be positive: %+v", c)
	}
	return nil
}

// BasicBlock is a pre-activation residual block:
//
//	out = conv2(act(bn2(conv1(act(bn1(x)))))) + shortcut(x)
//
// where act is ReLU followed by Dropout(0.5) and the first block skips bn1 and its
// activation. Downsampling blocks stride conv1 and max-pool the shortcut; blocks
// that grow the channel count zero-pad the shortcut's channels evenly.
type BasicBlock[B tensor.Backend] struct {
	composite[B]
	inChannels, outChannels int
	downsample              bool
	isFirst                 bool
	useBN, useDropout       bool

	bn1     *nn.BatchNorm1D[B]
	relu1   *nn.ReLU[B]
	do1     *nn.Dropout[B]
	conv1   *SameConv1D[B]
	bn2     *nn.BatchNorm1D[B]
	relu2   *nn.ReLU[B]
	do2     *nn.Dropout[B]
	conv2   *SameConv1D[B]
	pool    *SameMaxPool1D[B]
	padding *nn.ConstantPad[B]
}

// NewBasicBlock creates a residual block.
func NewBasicBlock[B tensor.Backend](inChannels, outChannels, kernelSize, stride, groups int,
	downsample, useBN, useDropout, isFirst bool, backend B) *BasicBlock[B] {
	if !downsample {
		stride = 1
	}
	b := &BasicBlock[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		downsample:  downsample,
		isFirst:     isFirst,
		useBN:       useBN,
		useDropout:  useDropout,
		bn1:         nn.NewBatchNorm1D(inChannels, 1e-5, 0.1, backend),
		relu1:       nn.NewReLU[B](),
		do1:         nn.NewDropout[B](0.5),
		conv1:       NewSameConv1D(inChannels, outChannels, kernelSize, stride, groups, backend),
		bn2:         nn.NewBatchNorm1D(outChannels, 1e-5, 0.1, backend),
		relu2:       nn.NewReLU[B](),
		do2:         nn.NewDropout[B](0.5),
		conv2:       NewSameConv1D(outChannels, outChannels, kernelSize, 1, groups, backend),
		pool:        NewSameMaxPool1D(stride, backend),
	}
	if outChannels != inChannels {
		ch1 := (outChannels - inChannels) / 2
		b.padding = nn.NewChannelPad[B](ch1, outChannels-inChannels-ch1)
	}
	b.composite = composite[B]{typeName: "BasicBlock", children: []nn.Named[B]{
		{Name: "bn1", Module: b.bn1},
		{Name: "relu1", Module: b.relu1},
		{Name: "do1", Module: b.do1},
		{Name: "conv1", Module: b.conv1},
		{Name: "bn2", Module: b.bn2},
		{Name: "relu2", Module: b.relu2},
		{Name: "do2", Module: b.do2},
		{Name: "conv2", Module: b.conv2},
		{Name: "max_pool", Module: b.pool},
	}}
	return b
}

// mainPath lists the modules applied to the residual branch.
func (b *BasicBlock[B]) mainPath() []nn.Named[B] {
	var path []nn.Named[B]
	add := func(name string, m nn.Module[B]) { path = append(path, nn.Named[B]{Name: name, Module: m}) }
	if !b.isFirst {
		if b.useBN {
			add("bn1", b.bn1)
		}
		add("relu1", b.relu1)
		if b.useDropout {
			add("do1", b.do1)
		}
	}
	add("conv1", b.conv1)
	if b.useBN {
		add("bn2", b.bn2)
	}
	add("relu2", b.relu2)
	if b.useDropout {
		add("do2", b.do2)
	}
	add("conv2", b.conv2)
	return path
}

// shortcut lists the modules applied to the identity branch.
func (b *BasicBlock[B]) shortcut() []nn.Named[B] {
	var path []nn.Named[B]
	if b.downsample {
		path = append(path, nn.Named[B]{Name: "max_pool", Module: b.pool})
	}
	if b.padding != nil {
		path = append(path, nn.Named[B]{Name: "padding", Module: b.padding})
	}
	return path
}

func (b *BasicBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := x
	for _, s := range b.mainPath() {
		out = s.Module.Forward(out)
	}
	identity := x
	for _, s := range b.shortcut() {
		identity = s.Module.Forward(identity)
	}
	if !out.Shape().Equal(identity.Shape()) {
		panic(fmt.Sprintf("basic block: residual %v does not match shortcut %v", out.Shape(), identity.Shape()))
	}
	return out.Add(identity)
}

func (b *BasicBlock[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	out, err := lowerChain(g, x, b.mainPath()...)
	if err != nil {
		return onnx.None, err
	}
	identity, err := lowerChain(g, x, b.shortcut()...)
	if err != nil {
		return onnx.None, err
	}
	if !out.Shape.Equal(identity.Shape) {
		return onnx.None, fmt.Errorf("basic block: residual %v does not match shortcut %v", out.Shape, identity.Shape)
	}
	return g.Node("Add", []onnx.Value{out, identity}, out.Shape), nil
}

// ResNet1D is a 1-D residual network over [N, L] spectra of any length L.
//
// A same-padded stem convolution (BN, ReLU) feeds NBlock BasicBlocks. Block i
// downsamples when i % DownsampleGap == 1 and doubles its channels when i is a
// nonzero multiple of IncreaseFilterGap. A final BN and ReLU, a mean over the
// length axis and a Linear layer produce the class scores.
type ResNet1D[B tensor.Backend] struct {
	composite[B]
	config    Config
	unsqueeze *nn.Unsqueeze[B]

	firstConv *SameConv1D[B]
	firstBN   *nn.BatchNorm1D[B]
	firstReLU *nn.ReLU[B]
	blocks    []*BasicBlock[B]
	finalBN   *nn.BatchNorm1D[B]
	finalReLU *nn.ReLU[B]
	pool      *nn.MeanPool[B]
	dense     *nn.Linear[B]
}

// NewResNet1D builds the residual network described by cfg.ResNet.
func NewResNet1D[B tensor.Backend](cfg Config, backend B) (Net[B], error) {
	if cfg.ResNet == nil {
		rc := DefaultResNetConfig(cfg.OutputSize)
		cfg.ResNet = &rc
	}
	rc := *cfg.ResNet
	if err := rc.validate(); err != nil {
		return nil, err
	}

	r := &ResNet1D[B]{
		config:    cfg,
		unsqueeze: nn.NewUnsqueeze[B](),
		firstConv: NewSameConv1D(rc.InChannels, rc.BaseFilters, rc.KernelSize, 1, 1, backend),
		firstBN:   nn.NewBatchNorm1D(rc.BaseFilters, 1e-5, 0.1, backend),
		firstReLU: nn.NewReLU[B](),
		finalReLU: nn.NewReLU[B](),
		pool:      nn.NewMeanPool[B](),
	}

	blockList := nn.NewSequential[B]()
	outChannels := rc.BaseFilters
	for i := 0; i < rc.NBlock; i++ {
		isFirst := i == 0
		downsample := i%rc.DownsampleGap == 1
		var inChannels int
		if isFirst {
			inChannels = rc.BaseFilters
			outChannels = inChannels
		} else {
			inChannels = rc.BaseFilters << ((i - 1) / rc.IncreaseFilterGap)
			outChannels = inChannels
			if i%rc.IncreaseFilterGap == 0 {
				outChannels = inChannels * 2
			}
		}
		block := NewBasicBlock(inChannels, outChannels, rc.KernelSize, rc.Stride, rc.Groups,
			downsample, rc.UseBN, rc.UseDropout, isFirst, backend)
		r.blocks = append(r.blocks, block)
		blockList.Add(block)
	}
	r.finalBN = nn.NewBatchNorm1D(outChannels, 1e-5, 0.1, backend)
	r.dense = nn.NewLinear(outChannels, cfg.OutputSize, backend)

	r.composite = composite[B]{typeName: "ResNet1D", children: []nn.Named[B]{
		{Name: "first_block_conv", Module: r.firstConv},
		{Name: "first_block_bn", Module: r.firstBN},
		{Name: "first_block_relu", Module: r.firstReLU},
		{Name: "basicblock_list", Module: blockList},
		{Name: "final_bn", Module: r.finalBN},
		{Name: "final_relu", Module: r.finalReLU},
		{Name: "dense", Module: r.dense},
	}}
	return r, nil
}

func (r *ResNet1D[B]) Config() Config {
	return r.config
}

// stages lists the modules in execution order with their scope names.
func (r *ResNet1D[B]) stages() []nn.Named[B] {
	stages := []nn.Named[B]{{Name: "first_block_conv", Module: r.firstConv}}
	if r.config.ResNet.UseBN {
		stages = append(stages, nn.Named[B]{Name: "first_block_bn", Module: r.firstBN})
	}
	stages = append(stages, nn.Named[B]{Name: "first_block_relu", Module: r.firstReLU})
	for i, b := range r.blocks {
		stages = append(stages, nn.Named[B]{Name: "basicblock_list." + strconv.Itoa(i), Module: b})
	}
	if r.config.ResNet.UseBN {
		stages = append(stages, nn.Named[B]{Name: "final_bn", Module: r.finalBN})
	}
	return append(stages,
		nn.Named[B]{Name: "final_relu", Module: r.finalReLU},
		nn.Named[B]{Name: "pool", Module: r.pool},
		nn.Named[B]{Name: "dense", Module: r.dense},
	)
}

func (r *ResNet1D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if rank := len(x.Shape()); rank < 3 {
		x = r.unsqueeze.Forward(x)
	}
	for _, s := range r.stages() {
		x = s.Module.Forward(x)
	}
	return x
}

func (r *ResNet1D[B]) Lower(g *onnx.GraphBuilder, x onnx.Value) (onnx.Value, error) {
	var err error
	if len(x.Shape) < 3 {
		if x, err = r.unsqueeze.Lower(g, x); err != nil {
			return onnx.None, err
		}
	}
	for _, s := range r.stages() {
		if x, err = lowerScoped(g, s, x); err != nil {
			return onnx.None, err
		}
	}
	return x, nil
}

// lowerScoped lowers a child whose name may be a dotted path.
func lowerScoped[B tensor.Backend](g *onnx.GraphBuilder, child nn.Named[B], x onnx.Value) (onnx.Value, error) {
	parts := strings.Split(child.Name, ".")
	for _, p := range parts[:len(parts)-1] {
		g.Push(p)
		defer g.Pop()
	}
	return nn.LowerChild(g, parts[len(parts)-1], child.Module, x)
}
