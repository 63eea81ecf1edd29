package nnet

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/Jopyth/LightNAS/num"
)

// Layer interface type represents one layer of the neural net.
type Layer interface {
	Init(inShape []int) []int
	Fprop(x *num.Array) *num.Array
	Bprop(grad *num.Array) *num.Array
	ToString() string
}

// ParamLayer is a layer with trainable parameters.
type ParamLayer interface {
	Layer
	InitParams(scale float32, normal bool, rng *rand.Rand)
	Params() (W, B *num.Array)
	ParamGrads() (dW, dB *num.Array)
	SetParams(W, B *num.Array)
	UpdateParams(eta, weightDecay, momentum float32)
}

// ParamGroup is a composite layer owning nested parameterised sub-layers.
type ParamGroup interface {
	Layer
	ParamLayers() []ParamLayer
}

// OutputLayer is the final layer in the stack.
type OutputLayer interface {
	Layer
	Loss(yOneHot, yPred *num.Array) float32
}

// Quantized is a layer whose weight or activation bit-width can be switched
// without reallocating storage.
type Quantized interface {
	Bits() int
	SetBits(bits int)
}

type trainable interface {
	SetTraining(mode bool)
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage
}

type ConfigLayer interface {
	Marshal() LayerConfig
}

// Unmarshal JSON data and construct new layer
func (l LayerConfig) Unmarshal() Layer {
	switch l.Type {
	case "qconv":
		cfg := new(QConv)
		unmarshal(l.Data, cfg)
		return cfg.Build()
	case "batchNorm":
		cfg := new(BatchNorm)
		unmarshal(l.Data, cfg)
		return cfg.Build()
	case "activation":
		cfg := new(Activation)
		unmarshal(l.Data, cfg)
		return cfg.Build()
	case "qactivation":
		cfg := new(QActivation)
		unmarshal(l.Data, cfg)
		return cfg.Build()
	case "pool":
		cfg := new(Pool)
		unmarshal(l.Data, cfg)
		return cfg.Build()
	case "globalAvgPool":
		return GlobalAvgPool{}.Build()
	case "flatten":
		return Flatten{}.Build()
	case "linear":
		cfg := new(Linear)
		unmarshal(l.Data, cfg)
		return cfg.Build()
	case "logRegression":
		return LogRegression{}.Build()
	default:
		panic("invalid layer type: " + l.Type)
	}
}

func (l LayerConfig) String() string {
	return l.Unmarshal().ToString()
}

// QConv is a 2D convolution with optionally binarized weights. Bits is 32
// for full precision or 1 for sign-valued weights. The layer has no bias
// term: a batch norm is expected to follow. If InChannels is 0 the input
// depth is inferred when the layer is initialised.
type QConv struct {
	Nfeats     int
	Size       int
	Stride     int
	Pad        int
	Bits       int
	InChannels int
}

func (c QConv) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Bits == 0 {
		c.Bits = 32
	}
	return LayerConfig{Type: "qconv", Data: marshal(c)}
}

func (c QConv) ToString() string {
	return fmt.Sprintf("qconv %+v", c)
}

// Build constructs the layer. Weights are allocated here when the input
// depth is known so that blocks can alias them before the first forward pass.
func (c QConv) Build() *QConvLayer {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Bits == 0 {
		c.Bits = 32
	}
	l := &QConvLayer{QConv: c, bits: c.Bits}
	if c.InChannels > 0 {
		l.paramBase = newParams([]int{c.Nfeats, c.InChannels, c.Size, c.Size}, nil)
		l.wq = num.NewArray(l.w.Dims()...)
	}
	return l
}

// QConvLayer implements the ParamLayer and Quantized interfaces.
type QConvLayer struct {
	QConv
	paramBase
	layerBase
	wq   *num.Array
	col  *num.Array
	bits int
}

func (l *QConvLayer) Init(inShape []int) []int {
	if len(inShape) != 4 {
		panic("QConv: expect 4 dimensional input")
	}
	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	if l.InChannels > 0 && l.InChannels != c {
		panic(fmt.Sprintf("QConv: input depth %d does not match configured %d", c, l.InChannels))
	}
	if l.w == nil {
		l.paramBase = newParams([]int{l.Nfeats, c, l.Size, l.Size}, nil)
		l.wq = num.NewArray(l.w.Dims()...)
	}
	ho := num.ConvOutSize(h, l.Size, l.Stride, l.Pad)
	wo := num.ConvOutSize(w, l.Size, l.Stride, l.Pad)
	l.col = num.ConvBuffer(c, h, w, l.Size, l.Stride, l.Pad)
	l.layerBase = newLayerBase(inShape, []int{n, l.Nfeats, ho, wo})
	return l.dst.Dims()
}

// WeightShape returns the filter dimensions [nfeats, in, size, size].
func (l *QConvLayer) WeightShape() []int {
	if l.w == nil {
		return nil
	}
	return l.w.Dims()
}

// ShareWeights aliases the weight, gradient and momentum storage of p so
// that both layers update the identical underlying arrays.
func (l *QConvLayer) ShareWeights(p *QConvLayer) error {
	if l.w == nil || p.w == nil {
		return fmt.Errorf("qconv: cannot share unallocated weights")
	}
	if !l.w.SameShape(p.w) {
		return fmt.Errorf("qconv: weight shape %v does not match partner %v", l.w.Dims(), p.w.Dims())
	}
	l.w, l.dw, l.vw = p.w, p.dw, p.vw
	return nil
}

// SharesWeights reports whether the two layers alias the same storage.
func (l *QConvLayer) SharesWeights(p *QConvLayer) bool {
	return l.w == p.w
}

func (l *QConvLayer) Bits() int { return l.bits }

// SetBits switches the weight quantization without touching storage.
func (l *QConvLayer) SetBits(bits int) { l.bits = bits }

func (l *QConvLayer) weights() *num.Array {
	if l.bits == 1 {
		num.Sign(l.w, l.wq)
		return l.wq
	}
	return l.w
}

func (l *QConvLayer) Fprop(x *num.Array) *num.Array {
	l.src = x
	num.ConvFprop(x, l.weights(), l.dst, l.col, l.Stride, l.Pad)
	return l.dst
}

func (l *QConvLayer) Bprop(grad *num.Array) *num.Array {
	// straight through: the filter gradient passes the sign quantizer
	num.ConvBpropFilter(l.src, grad, l.dw, l.col, l.Stride, l.Pad)
	num.ConvBpropData(grad, l.weights(), l.dsrc, l.col, l.Stride, l.Pad)
	return l.dsrc
}

// BatchNorm normalizes each channel over the batch (and spatial dims for 4D
// input). NoScale fixes gamma at 1 which is used for the input norm layer.
type BatchNorm struct {
	NoScale bool
	Epsilon float64
}

func (c BatchNorm) Marshal() LayerConfig {
	if c.Epsilon == 0 {
		c.Epsilon = 1e-5
	}
	return LayerConfig{Type: "batchNorm", Data: marshal(c)}
}

func (c BatchNorm) ToString() string {
	return fmt.Sprintf("batchNorm %+v", c)
}

func (c BatchNorm) Build() *BatchNormLayer {
	if c.Epsilon == 0 {
		c.Epsilon = 1e-5
	}
	return &BatchNormLayer{BatchNorm: c, momentum: 0.9, training: true}
}

type BatchNormLayer struct {
	BatchNorm
	paramBase
	layerBase
	runMean  *num.Array
	runVar   *num.Array
	mean     []float32
	variance []float32
	xhat     *num.Array
	momentum float32
	training bool
	channels int
	spatial  int
}

func (l *BatchNormLayer) Init(inShape []int) []int {
	switch len(inShape) {
	case 2:
		l.channels, l.spatial = inShape[1], 1
	case 4:
		l.channels, l.spatial = inShape[1], inShape[2]*inShape[3]
	default:
		panic("BatchNorm: expect 2 or 4 dimensional input")
	}
	if l.w == nil {
		l.paramBase = newParams([]int{l.channels}, []int{l.channels})
		num.Fill(l.w, 1)
		l.runMean = num.NewArray(l.channels)
		l.runVar = num.NewArray(l.channels)
		num.Fill(l.runVar, 1)
		l.mean = make([]float32, l.channels)
		l.variance = make([]float32, l.channels)
	}
	l.layerBase = newLayerBase(inShape, inShape)
	l.xhat = num.NewArray(inShape...)
	return inShape
}

func (l *BatchNormLayer) SetTraining(mode bool) { l.training = mode }

// RunningStats returns the running mean and variance estimates.
func (l *BatchNormLayer) RunningStats() (mean, variance *num.Array) {
	return l.runMean, l.runVar
}

// SetStats overwrites the running statistics, as used when copying a trained
// network for evaluation.
func (l *BatchNormLayer) SetStats(mean, variance *num.Array) {
	num.Copy(l.runMean, mean)
	num.Copy(l.runVar, variance)
}

// InitParams resets gamma to 1 and beta to 0: batch norm parameters are not
// randomly initialised.
func (l *BatchNormLayer) InitParams(scale float32, normal bool, rng *rand.Rand) {
	num.Fill(l.w, 1)
	num.Fill(l.b, 0)
	num.Fill(l.runMean, 0)
	num.Fill(l.runVar, 1)
}

// UpdateParams freezes gamma when NoScale is set.
func (l *BatchNormLayer) UpdateParams(eta, weightDecay, momentum float32) {
	if l.NoScale {
		num.Fill(l.dw, 0)
	}
	l.paramBase.UpdateParams(eta, 0, momentum)
}

func (l *BatchNormLayer) forEach(a *num.Array, ch int, f func(i int, v float32)) {
	batch := a.Dims()[0]
	data := a.Data()
	for n := 0; n < batch; n++ {
		base := (n*l.channels + ch) * l.spatial
		for s := 0; s < l.spatial; s++ {
			f(base+s, data[base+s])
		}
	}
}

func (l *BatchNormLayer) Fprop(x *num.Array) *num.Array {
	l.src = x
	batch := x.Dims()[0]
	norm := float32(batch * l.spatial)
	eps := float32(l.Epsilon)
	gamma, beta := l.w.Data(), l.b.Data()
	for ch := 0; ch < l.channels; ch++ {
		var mean, vari float32
		if l.training {
			l.forEach(x, ch, func(i int, v float32) { mean += v })
			mean /= norm
			l.forEach(x, ch, func(i int, v float32) { vari += (v - mean) * (v - mean) })
			vari /= norm
			l.mean[ch], l.variance[ch] = mean, vari
			l.runMean.Data()[ch] = l.momentum*l.runMean.Data()[ch] + (1-l.momentum)*mean
			l.runVar.Data()[ch] = l.momentum*l.runVar.Data()[ch] + (1-l.momentum)*vari
		} else {
			mean, vari = l.runMean.Data()[ch], l.runVar.Data()[ch]
			l.variance[ch] = vari
		}
		istd := 1 / sqrt32(vari+eps)
		xhat, out := l.xhat.Data(), l.dst.Data()
		l.forEach(x, ch, func(i int, v float32) {
			xhat[i] = (v - mean) * istd
			out[i] = gamma[ch]*xhat[i] + beta[ch]
		})
	}
	return l.dst
}

func (l *BatchNormLayer) Bprop(grad *num.Array) *num.Array {
	batch := grad.Dims()[0]
	norm := float32(batch * l.spatial)
	eps := float32(l.Epsilon)
	gamma := l.w.Data()
	dw, db := l.dw.Data(), l.db.Data()
	xhat, g, dst := l.xhat.Data(), grad.Data(), l.dsrc.Data()
	for ch := 0; ch < l.channels; ch++ {
		var sumG, sumGX float32
		l.forEach(grad, ch, func(i int, v float32) {
			sumG += g[i]
			sumGX += g[i] * xhat[i]
		})
		dw[ch] += sumGX
		db[ch] += sumG
		istd := 1 / sqrt32(l.variance[ch]+eps)
		k := gamma[ch] * istd / norm
		l.forEach(grad, ch, func(i int, v float32) {
			dst[i] = k * (norm*g[i] - sumG - xhat[i]*sumGX)
		})
	}
	return l.dsrc
}

// Activation is an elementwise relu, tanh or sigmoid layer.
type Activation struct {
	Atype string
}

func (c Activation) Marshal() LayerConfig {
	return LayerConfig{Type: "activation", Data: marshal(c)}
}

func (c Activation) ToString() string {
	return fmt.Sprintf("activation %+v", c)
}

func (c Activation) Build() Layer {
	l := &activation{Activation: c}
	switch c.Atype {
	case "relu":
		l.activ, l.deriv = num.Relu, num.ReluD
	case "tanh":
		l.activ, l.deriv = num.Tanh, num.TanhD
	case "sigmoid":
		l.activ, l.deriv = num.Sigmoid, num.SigmoidD
	default:
		panic(fmt.Sprintf("activation type %s invalid", c.Atype))
	}
	return l
}

type activation struct {
	Activation
	layerBase
	activ func(x, y *num.Array)
	deriv func(x, grad, dst *num.Array)
}

func (l *activation) Init(inShape []int) []int {
	l.layerBase = newLayerBase(inShape, inShape)
	return inShape
}

func (l *activation) Fprop(x *num.Array) *num.Array {
	l.src = x
	l.activ(x, l.dst)
	return l.dst
}

func (l *activation) Bprop(grad *num.Array) *num.Array {
	l.deriv(l.src, grad, l.dsrc)
	return l.dsrc
}

// QActivation quantizes activations using the deterministic sign function
// with a straight through gradient estimator: gradients are cancelled where
// the input magnitude exceeds GradCancel. At 32 bits the layer passes values
// through unchanged.
type QActivation struct {
	Bits       int
	GradCancel float64
}

func (c QActivation) Marshal() LayerConfig {
	if c.Bits == 0 {
		c.Bits = 1
	}
	if c.GradCancel == 0 {
		c.GradCancel = 1
	}
	return LayerConfig{Type: "qactivation", Data: marshal(c)}
}

func (c QActivation) ToString() string {
	return fmt.Sprintf("qactivation %+v", c)
}

func (c QActivation) Build() *QActivationLayer {
	if c.Bits == 0 {
		c.Bits = 1
	}
	if c.GradCancel == 0 {
		c.GradCancel = 1
	}
	return &QActivationLayer{QActivation: c, bits: c.Bits}
}

type QActivationLayer struct {
	QActivation
	layerBase
	bits int
}

func (l *QActivationLayer) Init(inShape []int) []int {
	l.layerBase = newLayerBase(inShape, inShape)
	return inShape
}

func (l *QActivationLayer) Bits() int { return l.bits }

func (l *QActivationLayer) SetBits(bits int) { l.bits = bits }

func (l *QActivationLayer) Fprop(x *num.Array) *num.Array {
	l.src = x
	if l.bits == 1 {
		num.Sign(x, l.dst)
	} else {
		num.Copy(l.dst, x)
	}
	return l.dst
}

func (l *QActivationLayer) Bprop(grad *num.Array) *num.Array {
	if l.bits == 1 {
		num.SignD(l.src, grad, l.dsrc, float32(l.GradCancel))
	} else {
		num.Copy(l.dsrc, grad)
	}
	return l.dsrc
}

// Pool is a max or average pooling layer. Stride defaults to the window size.
type Pool struct {
	Size    int
	Stride  int
	Average bool
}

func (c Pool) Marshal() LayerConfig {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return LayerConfig{Type: "pool", Data: marshal(c)}
}

func (c Pool) ToString() string {
	return fmt.Sprintf("pool %+v", c)
}

func (c Pool) Build() Layer {
	if c.Stride == 0 {
		c.Stride = c.Size
	}
	return &pool{Pool: c}
}

type pool struct {
	Pool
	layerBase
	idx []int32
}

func (l *pool) Init(inShape []int) []int {
	if len(inShape) != 4 {
		panic("Pool: expect 4 dimensional input")
	}
	n, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	ho := num.ConvOutSize(h, l.Size, l.Stride, 0)
	wo := num.ConvOutSize(w, l.Size, l.Stride, 0)
	l.layerBase = newLayerBase(inShape, []int{n, c, ho, wo})
	if !l.Average {
		l.idx = make([]int32, n*c*ho*wo)
	}
	return l.dst.Dims()
}

func (l *pool) Fprop(x *num.Array) *num.Array {
	l.src = x
	if l.Average {
		num.AvgPool(x, l.dst, l.Size, l.Stride)
	} else {
		num.MaxPool(x, l.dst, l.idx, l.Size, l.Stride)
	}
	return l.dst
}

func (l *pool) Bprop(grad *num.Array) *num.Array {
	if l.Average {
		num.AvgPoolD(grad, l.dsrc, l.Size, l.Stride)
	} else {
		num.MaxPoolD(grad, l.dsrc, l.idx)
	}
	return l.dsrc
}

// GlobalAvgPool reduces each channel to its spatial mean.
type GlobalAvgPool struct{}

func (c GlobalAvgPool) Marshal() LayerConfig {
	return LayerConfig{Type: "globalAvgPool"}
}

func (c GlobalAvgPool) ToString() string { return "globalAvgPool" }

func (c GlobalAvgPool) Build() Layer { return &globalAvgPool{} }

type globalAvgPool struct {
	layerBase
}

func (l *globalAvgPool) ToString() string { return "globalAvgPool" }

func (l *globalAvgPool) Init(inShape []int) []int {
	if len(inShape) != 4 {
		panic("GlobalAvgPool: expect 4 dimensional input")
	}
	l.layerBase = newLayerBase(inShape, []int{inShape[0], inShape[1], 1, 1})
	return l.dst.Dims()
}

func (l *globalAvgPool) Fprop(x *num.Array) *num.Array {
	l.src = x
	num.GlobalAvgPool(x, l.dst)
	return l.dst
}

func (l *globalAvgPool) Bprop(grad *num.Array) *num.Array {
	num.GlobalAvgPoolD(grad, l.dsrc)
	return l.dsrc
}

// Flatten reshapes the input to 2 dimensions keeping the batch axis.
type Flatten struct{}

func (c Flatten) Marshal() LayerConfig {
	return LayerConfig{Type: "flatten"}
}

func (c Flatten) ToString() string { return "flatten" }

func (c Flatten) Build() Layer { return &flatten{} }

type flatten struct {
	layerBase
}

func (l *flatten) ToString() string { return "flatten" }

func (l *flatten) Init(inShape []int) []int {
	l.layerBase = newLayerBase(inShape, inShape)
	return []int{inShape[0], num.Prod(inShape[1:])}
}

func (l *flatten) Fprop(x *num.Array) *num.Array {
	l.src = x
	l.dst = x.Reshape(x.Dims()[0], -1)
	return l.dst
}

func (l *flatten) Bprop(grad *num.Array) *num.Array {
	l.dsrc = grad.Reshape(l.src.Dims()...)
	return l.dsrc
}

// Linear is a fully connected layer with bias. Bits is 32 for full precision
// weights or 1 for sign-valued weights as used by the binary dense layer.
type Linear struct {
	Nout int
	Bits int
}

func (c Linear) Marshal() LayerConfig {
	if c.Bits == 0 {
		c.Bits = 32
	}
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) ToString() string {
	return fmt.Sprintf("linear %+v", c)
}

func (c Linear) Build() *LinearLayer {
	if c.Bits == 0 {
		c.Bits = 32
	}
	return &LinearLayer{Linear: c, bits: c.Bits}
}

type LinearLayer struct {
	Linear
	paramBase
	layerBase
	wq   *num.Array
	ones *num.Array
	bits int
}

func (l *LinearLayer) Init(inShape []int) []int {
	if len(inShape) != 2 {
		panic("Linear: expect 2 dimensional input")
	}
	n, nin := inShape[0], inShape[1]
	if l.w == nil {
		l.paramBase = newParams([]int{nin, l.Nout}, []int{l.Nout})
		l.wq = num.NewArray(nin, l.Nout)
	}
	l.ones = num.NewArray(n, 1)
	num.Fill(l.ones, 1)
	l.layerBase = newLayerBase(inShape, []int{n, l.Nout})
	return l.dst.Dims()
}

func (l *LinearLayer) Bits() int { return l.bits }

func (l *LinearLayer) SetBits(bits int) { l.bits = bits }

func (l *LinearLayer) weights() *num.Array {
	if l.bits == 1 {
		num.Sign(l.w, l.wq)
		return l.wq
	}
	return l.w
}

func (l *LinearLayer) Fprop(x *num.Array) *num.Array {
	l.src = x
	num.Gemm(1, 0, l.ones, l.b.Reshape(1, l.Nout), l.dst, false, false)
	num.Gemm(1, 1, x, l.weights(), l.dst, false, false)
	return l.dst
}

func (l *LinearLayer) Bprop(grad *num.Array) *num.Array {
	num.Gemm(1, 1, l.src, grad, l.dw, true, false)
	num.Gemm(1, 1, l.ones.Reshape(1, l.ones.Size()), grad, l.db.Reshape(1, l.Nout), false, false)
	num.Gemm(1, 0, grad, l.weights(), l.dsrc, false, true)
	return l.dsrc
}

// LogRegression output layer with softmax activation and cross entropy loss.
type LogRegression struct{}

func (c LogRegression) Marshal() LayerConfig {
	return LayerConfig{Type: "logRegression"}
}

func (c LogRegression) ToString() string { return "logRegression" }

func (c LogRegression) Build() Layer { return &logRegression{} }

type logRegression struct {
	layerBase
}

func (l *logRegression) ToString() string { return "logRegression" }

func (l *logRegression) Init(inShape []int) []int {
	if len(inShape) != 2 {
		panic("LogRegression: expect 2 dimensional input")
	}
	l.layerBase = newLayerBase(inShape, inShape)
	return inShape
}

func (l *logRegression) Fprop(x *num.Array) *num.Array {
	l.src = x
	num.Softmax(x, l.dst)
	return l.dst
}

func (l *logRegression) Bprop(grad *num.Array) *num.Array {
	num.Copy(l.dsrc, grad)
	return l.dsrc
}

func (l *logRegression) Loss(yOneHot, yPred *num.Array) float32 {
	return num.SoftmaxLoss(yOneHot, yPred)
}

// base layer type with source and destination buffers
type layerBase struct {
	src  *num.Array
	dst  *num.Array
	dsrc *num.Array
}

func newLayerBase(inShape, outShape []int) layerBase {
	return layerBase{
		dst:  num.NewArray(outShape...),
		dsrc: num.NewArray(inShape...),
	}
}

// weight and bias parameters with gradient and momentum storage
type paramBase struct {
	w, b   *num.Array
	dw, db *num.Array
	vw, vb *num.Array
}

func newParams(wShape, bShape []int) paramBase {
	if bShape == nil {
		bShape = []int{0}
	}
	return paramBase{
		w:  num.NewArray(wShape...),
		b:  num.NewArray(bShape...),
		dw: num.NewArray(wShape...),
		db: num.NewArray(bShape...),
		vw: num.NewArray(wShape...),
		vb: num.NewArray(bShape...),
	}
}

func (p paramBase) Params() (W, B *num.Array) { return p.w, p.b }

func (p paramBase) ParamGrads() (dW, dB *num.Array) { return p.dw, p.db }

func (p paramBase) InitParams(scale float32, normal bool, rng *rand.Rand) {
	weights := p.w.Data()
	for i := range weights {
		if normal {
			weights[i] = float32(rng.NormFloat64()) * scale
		} else {
			weights[i] = (2*rng.Float32() - 1) * scale
		}
	}
	num.Fill(p.b, 0)
	num.Fill(p.vw, 0)
	num.Fill(p.vb, 0)
}

func (p paramBase) SetParams(W, B *num.Array) {
	num.Copy(p.w, W)
	num.Copy(p.b, B)
}

// UpdateParams applies a momentum SGD step and zeroes the accumulated
// gradients. Gradients accumulate across Bprop calls so that layers sharing
// weight storage sum their contributions before the update.
func (p paramBase) UpdateParams(eta, weightDecay, momentum float32) {
	if weightDecay != 0 {
		num.Axpy(weightDecay, p.w, p.dw)
	}
	num.Scale(momentum, p.vw)
	num.Axpy(-eta, p.dw, p.vw)
	num.Axpy(1, p.vw, p.w)
	num.Scale(momentum, p.vb)
	num.Axpy(-eta, p.db, p.vb)
	num.Axpy(1, p.vb, p.b)
	num.Fill(p.dw, 0)
	num.Fill(p.db, 0)
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func unmarshal(data json.RawMessage, v interface{}) {
	err := json.Unmarshal(data, v)
	if err != nil {
		panic(err)
	}
}
