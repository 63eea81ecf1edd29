package enas

import (
	"github.com/Jopyth/LightNAS/nnet"
	"github.com/pkg/errors"
)

type resnetVariant struct {
	kind     BlockKind
	layers   []int
	channels []int
}

// resnetSpec maps the network depth to the block kind, the per stage layer
// counts and the channel schedule. channels[0] is the stem output depth.
var resnetSpec = map[int]resnetVariant{
	18:  {BasicBlock, []int{2, 2, 2, 2}, []int{64, 64, 128, 256, 512}},
	34:  {BasicBlock, []int{3, 4, 6, 3}, []int{64, 64, 128, 256, 512}},
	50:  {Bottleneck, []int{3, 4, 6, 3}, []int{64, 256, 512, 1024, 2048}},
	101: {Bottleneck, []int{3, 4, 23, 3}, []int{64, 256, 512, 1024, 2048}},
	152: {Bottleneck, []int{3, 8, 36, 3}, []int{64, 256, 512, 1024, 2048}},
}

// GetVariant resolves version and depth to the block kind and the layer and
// channel schedules. Unsupported combinations fail with InvalidConfiguration.
func GetVariant(version, depth int) (kind BlockKind, layers, channels []int, err error) {
	if version < 1 || version > 2 {
		err = errors.Wrapf(ErrInvalidConfiguration, "resnet version %d, options are 1 and 2", version)
		return
	}
	v, ok := resnetSpec[depth]
	if !ok {
		err = errors.Wrapf(ErrInvalidConfiguration, "resnet depth %d, options are 18, 34, 50, 101 and 152", depth)
		return
	}
	return v.kind, v.layers, v.channels, nil
}

// Options configure network assembly. The zero value selects an imagenet
// stem, 1000 classes and binary blocks.
type Options struct {
	Classes    int
	Stem       string  // "imagenet", "thumbnail" or "mnist"
	Bits       int     // initial bit width for every block
	GradCancel float64 // straight through estimator threshold
	Pretrained bool
}

func (o Options) withDefaults() Options {
	if o.Classes == 0 {
		o.Classes = 1000
	}
	if o.Stem == "" {
		o.Stem = "imagenet"
	}
	if o.Bits == 0 {
		o.Bits = 1
	}
	if o.GradCancel == 0 {
		o.GradCancel = 1
	}
	return o
}

// GetResNet builds the ENAS supernet for the given topology version and
// depth. Requesting pretrained weights fails with UnsupportedOperation since
// no pretrained models exist.
func GetResNet(version, depth int, opt Options) (*Supernet, error) {
	kind, layers, channels, err := GetVariant(version, depth)
	if err != nil {
		return nil, err
	}
	if opt.Pretrained {
		return nil, errors.Wrapf(ErrUnsupported, "no pretrained model exists for resnet%d_v%d", depth, version)
	}
	net, err := Assemble(version, kind, layers, channels, opt)
	if err != nil {
		return nil, err
	}
	net.Depth = depth
	return net, nil
}

// Assemble stacks the stem, the residual stages and the classification head
// into a flat layer sequence. Stage i uses stride 1 when i is 0 and stride 2
// otherwise; the first block of a stage downsamples when the channel count
// changes. V1 adds a batch norm directly after the stem, V2 defers the
// batch norm to just before the final activation.
func Assemble(version int, kind BlockKind, layers, channels []int, opt Options) (*Supernet, error) {
	if len(layers) != len(channels)-1 {
		return nil, errors.Wrapf(ErrConfiguration, "%d stages for %d channel counts", len(layers), len(channels))
	}
	opt = opt.withDefaults()
	stem, err := stemLayers(opt.Stem, channels[0])
	if err != nil {
		return nil, err
	}
	features := []nnet.Layer{nnet.BatchNorm{NoScale: true, Epsilon: 2e-5}.Build()}
	features = append(features, stem...)
	if version == 1 {
		features = append(features, bn())
	}
	net := &Supernet{Version: version, Classes: opt.Classes}
	inChannels := channels[0]
	for i, numLayers := range layers {
		stride := 1
		if i > 0 {
			stride = 2
		}
		stage, err := makeStage(version, kind, numLayers, channels[i+1], stride, inChannels, opt)
		if err != nil {
			return nil, err
		}
		for _, blk := range stage {
			features = append(features, blk)
		}
		net.Blocks = append(net.Blocks, stage...)
		inChannels = channels[i+1]
	}
	if version == 2 {
		features = append(features, bn())
	}
	features = append(features, relu(),
		nnet.GlobalAvgPool{}.Build(), nnet.Flatten{}.Build(),
		nnet.Linear{Nout: opt.Classes}.Build(), nnet.LogRegression{}.Build())
	net.Layers = features
	return net, nil
}

func makeStage(version int, kind BlockKind, numLayers, channels, stride, inChannels int, opt Options) ([]Block, error) {
	first := BlockSpec{Kind: kind, Version: version, Channels: channels, InChannels: inChannels,
		Stride: stride, Downsample: channels != inChannels || stride > 1,
		Bits: opt.Bits, GradCancel: opt.GradCancel}
	blk, err := NewBlock(first, nil)
	if err != nil {
		return nil, err
	}
	blocks := []Block{blk}
	for i := 1; i < numLayers; i++ {
		rest := BlockSpec{Kind: kind, Version: version, Channels: channels, InChannels: channels,
			Stride: 1, Bits: opt.Bits, GradCancel: opt.GradCancel}
		blk, err := NewBlock(rest, nil)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}

// stemLayers builds the initial feature extraction. The first convolution
// stays full precision even in binary networks. The mnist stem is the
// thumbnail stem applied to grayscale input.
func stemLayers(name string, channels int) ([]nnet.Layer, error) {
	switch name {
	case "imagenet":
		return []nnet.Layer{
			nnet.QConv{Nfeats: channels, Size: 7, Stride: 2, Pad: 3, Bits: 32}.Build(),
			bn(), relu(),
			nnet.Pool{Size: 3, Stride: 2}.Build(),
		}, nil
	case "thumbnail", "mnist":
		return []nnet.Layer{nnet.QConv{Nfeats: channels, Size: 3, Stride: 1, Pad: 1, Bits: 32}.Build()}, nil
	}
	return nil, errors.Wrapf(ErrInvalidConfiguration, "initial layers %q", name)
}

func ResNet18V1(opt Options) (*Supernet, error) { return GetResNet(1, 18, opt) }

func ResNet34V1(opt Options) (*Supernet, error) { return GetResNet(1, 34, opt) }

func ResNet50V1(opt Options) (*Supernet, error) { return GetResNet(1, 50, opt) }

func ResNet101V1(opt Options) (*Supernet, error) { return GetResNet(1, 101, opt) }

func ResNet152V1(opt Options) (*Supernet, error) { return GetResNet(1, 152, opt) }

func ResNet18V2(opt Options) (*Supernet, error) { return GetResNet(2, 18, opt) }

func ResNet34V2(opt Options) (*Supernet, error) { return GetResNet(2, 34, opt) }

func ResNet50V2(opt Options) (*Supernet, error) { return GetResNet(2, 50, opt) }

func ResNet101V2(opt Options) (*Supernet, error) { return GetResNet(2, 101, opt) }

func ResNet152V2(opt Options) (*Supernet, error) { return GetResNet(2, 152, opt) }
