// Package nnet contains routines for constructing, training and testing
// neural networks on the pure Go num array backend.
package nnet

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Jopyth/LightNAS/num"
	"github.com/pkg/errors"
)

// Network type represents a multilayer neural network model.
type Network struct {
	Config
	Layers  []Layer
	inShape []int
	classes []int32
}

// New creates a new network from the layer configuration.
func New(conf Config, batchSize int, inShape []int) *Network {
	layers := make([]Layer, len(conf.Layers))
	for i, l := range conf.Layers {
		layers[i] = l.Unmarshal()
	}
	return NewWith(conf, layers, batchSize, inShape)
}

// NewWith creates a new network from already constructed layers, as used by
// the architecture search supernet.
func NewWith(conf Config, layers []Layer, batchSize int, inShape []int) *Network {
	n := &Network{Config: conf, Layers: layers}
	n.inShape = append([]int{batchSize}, inShape...)
	shape := n.inShape
	for _, layer := range n.Layers {
		shape = layer.Init(shape)
	}
	return n
}

// InShape returns the input shape including the batch dimension.
func (n *Network) InShape() []int { return n.inShape }

// ParamLayers returns the parameterised layers in order, expanding composite
// groups and skipping repeats which alias already seen weight storage.
func (n *Network) ParamLayers() []ParamLayer {
	var res []ParamLayer
	seen := map[*num.Array]bool{}
	add := func(l ParamLayer) {
		w, _ := l.Params()
		if w != nil && seen[w] {
			return
		}
		seen[w] = true
		res = append(res, l)
	}
	for _, layer := range n.Layers {
		switch l := layer.(type) {
		case ParamGroup:
			for _, p := range l.ParamLayers() {
				add(p)
			}
		case ParamLayer:
			add(l)
		}
	}
	return res
}

// Initialise network weights scaled by 1/sqrt(nin) per layer.
func (n *Network) InitWeights(rng *rand.Rand) {
	for _, l := range n.ParamLayers() {
		w, _ := l.Params()
		dims := w.Dims()
		nin := 1
		if len(dims) > 1 {
			nin = num.Prod(dims[1:])
			if len(dims) == 2 {
				nin = dims[0]
			}
		}
		scale := float32(1 / math.Sqrt(float64(nin)))
		l.InitParams(scale, true, rng)
	}
}

// Copy weights and bias arrays to the destination net which must have the
// same layer structure.
func (n *Network) CopyTo(net *Network) {
	src := n.ParamLayers()
	dst := net.ParamLayers()
	if len(src) != len(dst) {
		panic(fmt.Sprintf("CopyTo: %d vs %d param layers", len(src), len(dst)))
	}
	for i, l := range src {
		W, B := l.Params()
		dst[i].SetParams(W, B)
		if s, ok := l.(*BatchNormLayer); ok {
			if d, ok := dst[i].(*BatchNormLayer); ok {
				d.SetStats(s.RunningStats())
			}
		}
	}
}

// SetTraining switches batch norm layers between batch statistics and
// running averages.
func (n *Network) SetTraining(mode bool) {
	for _, layer := range n.Layers {
		if l, ok := layer.(trainable); ok {
			l.SetTraining(mode)
		}
		if g, ok := layer.(ParamGroup); ok {
			for _, p := range g.ParamLayers() {
				if l, ok := p.(trainable); ok {
					l.SetTraining(mode)
				}
			}
		}
	}
}

// Accessor for output layer
func (n *Network) OutLayer() OutputLayer {
	return n.Layers[len(n.Layers)-1].(OutputLayer)
}

// Feed forward the input to get the predicted output
func (n *Network) Fprop(input *num.Array) *num.Array {
	pred := input
	for i, layer := range n.Layers {
		if n.DebugLevel >= 3 {
			fmt.Printf("layer %d input\n%s", i, pred)
		}
		pred = layer.Fprop(pred)
	}
	return pred
}

// Predict output classes given input data
func (n *Network) Predict(input *num.Array, classes []int32) *num.Array {
	n.SetTraining(false)
	yPred := n.Fprop(input)
	num.Unhot(yPred, classes)
	return yPred
}

// Error returns the classification error over the dataset. If pred is not
// nil the predicted classes are written to it.
func (n *Network) Error(dset *Dataset, pred []int32) float64 {
	n.SetTraining(false)
	nerr := 0
	samples := 0
	for batch := 0; batch < dset.Batches; batch++ {
		x, y, _ := dset.GetBatch(batch)
		if n.classes == nil || len(n.classes) != len(y) {
			n.classes = make([]int32, len(y))
		}
		n.Predict(x, n.classes)
		nerr += num.Neq(n.classes, y)
		if pred != nil {
			copy(pred[samples:], n.classes)
		}
		samples += len(y)
	}
	return float64(nerr) / float64(samples)
}

// Print network description
func (n *Network) String() string {
	s := make([]string, len(n.Layers))
	for i, layer := range n.Layers {
		s[i] = fmt.Sprintf("%2d: %s", i, layer.ToString())
	}
	return fmt.Sprintf("%s\n== Network ==\n%s", n.Config.configString(), strings.Join(s, "\n"))
}

// LayerData holds the serialized weights for one parameterised layer. Mean
// and Var carry the running statistics of batch norm layers.
type LayerData struct {
	Layer   int
	Weights []float32
	Biases  []float32
	Mean    []float32
	Var     []float32
}

// ExportParams serializes all layer parameters.
func (n *Network) ExportParams() []LayerData {
	var params []LayerData
	for i, l := range n.ParamLayers() {
		W, B := l.Params()
		d := LayerData{
			Layer:   i,
			Weights: append([]float32{}, W.Data()...),
			Biases:  append([]float32{}, B.Data()...),
		}
		if bn, ok := l.(*BatchNormLayer); ok {
			mean, vari := bn.RunningStats()
			d.Mean = append([]float32{}, mean.Data()...)
			d.Var = append([]float32{}, vari.Data()...)
		}
		params = append(params, d)
	}
	return params
}

// ImportParams restores layer parameters exported with ExportParams.
func (n *Network) ImportParams(params []LayerData) error {
	layers := n.ParamLayers()
	if len(params) != len(layers) {
		return errors.Errorf("import weights: have %d layers, network has %d", len(params), len(layers))
	}
	for i, l := range layers {
		W, B := l.Params()
		if len(params[i].Weights) != W.Size() || len(params[i].Biases) != B.Size() {
			return errors.Errorf("import weights: layer %d size mismatch", i)
		}
		copy(W.Data(), params[i].Weights)
		copy(B.Data(), params[i].Biases)
		if bn, ok := l.(*BatchNormLayer); ok && params[i].Mean != nil {
			mean, vari := bn.RunningStats()
			copy(mean.Data(), params[i].Mean)
			copy(vari.Data(), params[i].Var)
		}
	}
	return nil
}

// SaveWeights writes all layer parameters as gob data under DataDir.
func (n *Network) SaveWeights(name string) error {
	if err := os.MkdirAll(DataDir, 0755); err != nil {
		return err
	}
	f, err := os.Create(path.Join(DataDir, name))
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(n.ExportParams())
}

// LoadWeights restores layer parameters saved with SaveWeights.
func (n *Network) LoadWeights(name string) error {
	f, err := os.Open(path.Join(DataDir, name))
	if err != nil {
		return errors.Wrapf(err, "loading weights %s", name)
	}
	defer f.Close()
	var params []LayerData
	if err := gob.NewDecoder(f).Decode(&params); err != nil {
		return errors.Wrapf(err, "decoding weights %s", name)
	}
	return errors.Wrapf(n.ImportParams(params), "weights file %s", name)
}

// Set random number seed, or random seed if seed <= 0
func SetSeed(seed int64) *rand.Rand {
	if seed <= 0 {
		seed = time.Now().UTC().UnixNano()
	}
	fmt.Println("random seed =", seed)
	return rand.New(rand.NewSource(seed))
}

// Exit in case of error
func CheckErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
