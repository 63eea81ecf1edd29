package enas

import (
	"fmt"

	"github.com/Jopyth/LightNAS/nnet"
	"github.com/Jopyth/LightNAS/num"
	"github.com/pkg/errors"
)

// Block is one residual unit of the supernet. It is a network layer whose
// bit width can be resampled in place and whose convolution weights can be
// aliased to a partner block of identical shape.
type Block interface {
	nnet.Layer
	nnet.ParamGroup
	Spec() BlockSpec
	Bits() int
	SetBits(bits int)
	LatencyFunction(measured float64) float64
	sharedConvs() []*nnet.QConvLayer
	inputShape() []int
}

type variantKey struct {
	version int
	kind    BlockKind
}

var blockVariants = map[variantKey]func(BlockSpec) Block{
	{1, BasicBlock}: newBasicV1,
	{1, Bottleneck}: newBottleneckV1,
	{2, BasicBlock}: newBasicV2,
	{2, Bottleneck}: newBottleneckV2,
}

// NewBlock builds the residual block variant selected by the spec's version
// and kind. If partner is non nil the new block aliases the partner's
// convolution weight storage instead of allocating its own: the partner must
// have an identical spec shape or the constructor fails with ShapeMismatch.
func NewBlock(spec BlockSpec, partner Block) (Block, error) {
	if spec.GradCancel == 0 {
		spec.GradCancel = 1
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if spec.Kind == Bottleneck && spec.Channels%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "bottleneck channels %d not divisible by 4", spec.Channels)
	}
	blk := blockVariants[variantKey{spec.Version, spec.Kind}](spec)
	if partner != nil {
		if err := shareWeights(blk, partner); err != nil {
			return nil, err
		}
	}
	return blk, nil
}

// shareWeights aliases the convolution weights pairwise in positional order:
// first conv to first conv and so on. Batch norm parameters are never shared.
func shareWeights(blk, partner Block) error {
	if blk.Spec().shareKey() != partner.Spec().shareKey() {
		return errors.Wrapf(ErrShapeMismatch, "block %+v does not match partner %+v", blk.Spec(), partner.Spec())
	}
	a, b := blk.sharedConvs(), partner.sharedConvs()
	if len(a) != len(b) {
		return errors.Wrapf(ErrShapeMismatch, "partner has %d shareable convolutions, expected %d", len(b), len(a))
	}
	for i := range a {
		if err := a[i].ShareWeights(b[i]); err != nil {
			return errors.Wrap(ErrShapeMismatch, err.Error())
		}
	}
	return nil
}

// blockBase has the bookkeeping common to all four variants. parts lists
// every sub layer group in forward order so that bit width changes and
// parameter collection reach each one.
type blockBase struct {
	spec   BlockSpec
	shared []*nnet.QConvLayer
	parts  [][]nnet.Layer
	dst    *num.Array
	dsrc   *num.Array
}

func (b *blockBase) Spec() BlockSpec { return b.spec }

func (b *blockBase) Bits() int { return b.spec.Bits }

// SetBits resamples the bit width of every quantized sub layer in place.
// Weight storage is untouched: only the forward quantization changes.
func (b *blockBase) SetBits(bits int) {
	b.spec.Bits = bits
	for _, part := range b.parts {
		for _, l := range part {
			if q, ok := l.(nnet.Quantized); ok {
				q.SetBits(bits)
			}
		}
	}
}

// LatencyFunction returns the cost of this block for the current bit width.
// The measured forward latency argument is ignored.
func (b *blockBase) LatencyFunction(measured float64) float64 {
	return Latency(b.spec.Bits)
}

func (b *blockBase) ParamLayers() []nnet.ParamLayer {
	var res []nnet.ParamLayer
	for _, part := range b.parts {
		for _, l := range part {
			if p, ok := l.(nnet.ParamLayer); ok {
				res = append(res, p)
			}
		}
	}
	return res
}

func (b *blockBase) sharedConvs() []*nnet.QConvLayer { return b.shared }

// inputShape returns the shape the block was initialised with, or nil before
// the first Init.
func (b *blockBase) inputShape() []int {
	if b.dsrc == nil {
		return nil
	}
	return b.dsrc.Dims()
}

func (b *blockBase) ToString() string {
	s := b.spec
	return fmt.Sprintf("%s block v%d {channels:%d in:%d stride:%d downsample:%v bits:%d}",
		s.Kind, s.Version, s.Channels, s.InChannels, s.Stride, s.Downsample, s.Bits)
}

func initSeq(layers []nnet.Layer, shape []int) []int {
	for _, l := range layers {
		shape = l.Init(shape)
	}
	return shape
}

func fpropSeq(layers []nnet.Layer, x *num.Array) *num.Array {
	for _, l := range layers {
		x = l.Fprop(x)
	}
	return x
}

func bpropSeq(layers []nnet.Layer, grad *num.Array) *num.Array {
	for i := len(layers) - 1; i >= 0; i-- {
		grad = layers[i].Bprop(grad)
	}
	return grad
}

func bn() nnet.Layer { return nnet.BatchNorm{}.Build() }

func relu() nnet.Layer { return nnet.Activation{Atype: "relu"}.Build() }

func qact(spec BlockSpec) nnet.Layer {
	return nnet.QActivation{Bits: spec.Bits, GradCancel: spec.GradCancel}.Build()
}

func qconv(spec BlockSpec, channels, size, stride, pad, in int) *nnet.QConvLayer {
	return nnet.QConv{Nfeats: channels, Size: size, Stride: stride, Pad: pad,
		Bits: spec.Bits, InChannels: in}.Build()
}

// basicV1 is the post activation basic block: the input activation sits at
// the start of each unit so the residual sum has no trailing relu.
type basicV1 struct {
	blockBase
	body []nnet.Layer
	down []nnet.Layer
}

func newBasicV1(spec BlockSpec) Block {
	b := &basicV1{}
	b.spec = spec
	conv1 := qconv(spec, spec.Channels, 3, spec.Stride, 1, spec.InChannels)
	conv2 := qconv(spec, spec.Channels, 3, 1, 1, spec.Channels)
	b.body = []nnet.Layer{qact(spec), conv1, bn(), qact(spec), conv2, bn()}
	b.shared = []*nnet.QConvLayer{conv1, conv2}
	if spec.Downsample {
		dconv := qconv(spec, spec.Channels, 1, spec.Stride, 0, spec.InChannels)
		b.down = []nnet.Layer{qact(spec), dconv, bn()}
		b.shared = append(b.shared, dconv)
	}
	b.parts = [][]nnet.Layer{b.body, b.down}
	return b
}

func (b *basicV1) Init(inShape []int) []int {
	shape := initSeq(b.body, inShape)
	if b.down != nil {
		initSeq(b.down, inShape)
	}
	b.dst = num.NewArray(shape...)
	b.dsrc = num.NewArray(inShape...)
	return shape
}

func (b *basicV1) Fprop(x *num.Array) *num.Array {
	num.Copy(b.dst, fpropSeq(b.body, x))
	if b.down != nil {
		num.Axpy(1, fpropSeq(b.down, x), b.dst)
	} else {
		num.Axpy(1, x, b.dst)
	}
	return b.dst
}

func (b *basicV1) Bprop(grad *num.Array) *num.Array {
	num.Copy(b.dsrc, bpropSeq(b.body, grad))
	if b.down != nil {
		num.Axpy(1, bpropSeq(b.down, grad), b.dsrc)
	} else {
		num.Axpy(1, grad, b.dsrc)
	}
	return b.dsrc
}

// bottleneckV1 narrows to a quarter of the output channels, applies the
// quantized 3x3 and widens again, with a relu after the residual sum.
type bottleneckV1 struct {
	blockBase
	body []nnet.Layer
	down []nnet.Layer
	sum  *num.Array
	gsum *num.Array
}

func newBottleneckV1(spec BlockSpec) Block {
	b := &bottleneckV1{}
	b.spec = spec
	c4 := spec.Channels / 4
	conv1 := qconv(spec, c4, 1, spec.Stride, 0, spec.InChannels)
	conv2 := qconv(spec, c4, 3, 1, 1, c4)
	conv3 := qconv(spec, spec.Channels, 1, 1, 0, c4)
	b.body = []nnet.Layer{conv1, bn(), relu(), qact(spec), conv2, bn(), relu(), conv3, bn()}
	b.shared = []*nnet.QConvLayer{conv1, conv2, conv3}
	if spec.Downsample {
		dconv := qconv(spec, spec.Channels, 1, spec.Stride, 0, spec.InChannels)
		b.down = []nnet.Layer{dconv, bn()}
		b.shared = append(b.shared, dconv)
	}
	b.parts = [][]nnet.Layer{b.body, b.down}
	return b
}

func (b *bottleneckV1) Init(inShape []int) []int {
	shape := initSeq(b.body, inShape)
	if b.down != nil {
		initSeq(b.down, inShape)
	}
	b.sum = num.NewArray(shape...)
	b.gsum = num.NewArray(shape...)
	b.dst = num.NewArray(shape...)
	b.dsrc = num.NewArray(inShape...)
	return shape
}

func (b *bottleneckV1) Fprop(x *num.Array) *num.Array {
	num.Copy(b.sum, fpropSeq(b.body, x))
	if b.down != nil {
		num.Axpy(1, fpropSeq(b.down, x), b.sum)
	} else {
		num.Axpy(1, x, b.sum)
	}
	num.Relu(b.sum, b.dst)
	return b.dst
}

func (b *bottleneckV1) Bprop(grad *num.Array) *num.Array {
	num.ReluD(b.sum, grad, b.gsum)
	num.Copy(b.dsrc, bpropSeq(b.body, b.gsum))
	if b.down != nil {
		num.Axpy(1, bpropSeq(b.down, b.gsum), b.dsrc)
	} else {
		num.Axpy(1, b.gsum, b.dsrc)
	}
	return b.dsrc
}

// basicV2 is the pre activation basic block: a leading batch norm feeds both
// the body and, when downsampling, the shortcut convolution.
type basicV2 struct {
	blockBase
	bn0  nnet.Layer
	body []nnet.Layer
	down []nnet.Layer
	gy   *num.Array
}

func newBasicV2(spec BlockSpec) Block {
	b := &basicV2{}
	b.spec = spec
	b.bn0 = bn()
	conv1 := qconv(spec, spec.Channels, 3, spec.Stride, 1, spec.InChannels)
	conv2 := qconv(spec, spec.Channels, 3, 1, 1, spec.Channels)
	b.body = []nnet.Layer{qact(spec), conv1, bn(), qact(spec), conv2}
	b.shared = []*nnet.QConvLayer{conv1, conv2}
	if spec.Downsample {
		dconv := qconv(spec, spec.Channels, 1, spec.Stride, 0, spec.InChannels)
		b.down = []nnet.Layer{qact(spec), dconv}
		b.shared = append(b.shared, dconv)
	}
	b.parts = [][]nnet.Layer{{b.bn0}, b.body, b.down}
	return b
}

func (b *basicV2) Init(inShape []int) []int {
	b.bn0.Init(inShape)
	shape := initSeq(b.body, inShape)
	if b.down != nil {
		initSeq(b.down, inShape)
		b.gy = num.NewArray(inShape...)
	}
	b.dst = num.NewArray(shape...)
	b.dsrc = num.NewArray(inShape...)
	return shape
}

func (b *basicV2) Fprop(x *num.Array) *num.Array {
	y := b.bn0.Fprop(x)
	num.Copy(b.dst, fpropSeq(b.body, y))
	if b.down != nil {
		num.Axpy(1, fpropSeq(b.down, y), b.dst)
	} else {
		num.Axpy(1, x, b.dst)
	}
	return b.dst
}

func (b *basicV2) Bprop(grad *num.Array) *num.Array {
	gb := bpropSeq(b.body, grad)
	if b.down != nil {
		num.Copy(b.gy, gb)
		num.Axpy(1, bpropSeq(b.down, grad), b.gy)
		num.Copy(b.dsrc, b.bn0.Bprop(b.gy))
	} else {
		num.Copy(b.dsrc, b.bn0.Bprop(gb))
		num.Axpy(1, grad, b.dsrc)
	}
	return b.dsrc
}

// bottleneckV2 applies batch norm and relu before each convolution. The
// shortcut branches off the activated input rather than the raw input when
// downsampling.
type bottleneckV2 struct {
	blockBase
	pre  []nnet.Layer
	main []nnet.Layer
	down []nnet.Layer
	ga   *num.Array
}

func newBottleneckV2(spec BlockSpec) Block {
	b := &bottleneckV2{}
	b.spec = spec
	c4 := spec.Channels / 4
	conv1 := qconv(spec, c4, 1, 1, 0, spec.InChannels)
	conv2 := qconv(spec, c4, 3, spec.Stride, 1, c4)
	conv3 := qconv(spec, spec.Channels, 1, 1, 0, c4)
	b.pre = []nnet.Layer{bn(), relu()}
	b.main = []nnet.Layer{conv1, bn(), relu(), qact(spec), conv2, bn(), relu(), conv3}
	b.shared = []*nnet.QConvLayer{conv1, conv2, conv3}
	if spec.Downsample {
		dconv := qconv(spec, spec.Channels, 1, spec.Stride, 0, spec.InChannels)
		b.down = []nnet.Layer{dconv}
		b.shared = append(b.shared, dconv)
	}
	b.parts = [][]nnet.Layer{b.pre, b.main, b.down}
	return b
}

func (b *bottleneckV2) Init(inShape []int) []int {
	initSeq(b.pre, inShape)
	shape := initSeq(b.main, inShape)
	if b.down != nil {
		initSeq(b.down, inShape)
		b.ga = num.NewArray(inShape...)
	}
	b.dst = num.NewArray(shape...)
	b.dsrc = num.NewArray(inShape...)
	return shape
}

func (b *bottleneckV2) Fprop(x *num.Array) *num.Array {
	a := fpropSeq(b.pre, x)
	num.Copy(b.dst, fpropSeq(b.main, a))
	if b.down != nil {
		num.Axpy(1, fpropSeq(b.down, a), b.dst)
	} else {
		num.Axpy(1, x, b.dst)
	}
	return b.dst
}

func (b *bottleneckV2) Bprop(grad *num.Array) *num.Array {
	gm := bpropSeq(b.main, grad)
	if b.down != nil {
		num.Copy(b.ga, gm)
		num.Axpy(1, bpropSeq(b.down, grad), b.ga)
		num.Copy(b.dsrc, bpropSeq(b.pre, b.ga))
	} else {
		num.Copy(b.dsrc, bpropSeq(b.pre, gm))
		num.Axpy(1, grad, b.dsrc)
	}
	return b.dsrc
}
