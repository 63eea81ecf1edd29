package enas

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/Jopyth/LightNAS/nnet"
	"github.com/pkg/errors"
)

// Supernet is the assembled search space: a flat ordered layer sequence with
// the residual blocks singled out so that a scheduler can traverse them and
// resample bit widths in place.
type Supernet struct {
	Version int
	Depth   int
	Classes int
	Blocks  []Block
	Layers  []nnet.Layer
}

// Network wraps the supernet layers for training or evaluation at the given
// batch size. The returned network shares the supernet's weight storage.
func (s *Supernet) Network(conf nnet.Config, batchSize int, inShape []int) *nnet.Network {
	return nnet.NewWith(conf, s.Layers, batchSize, inShape)
}

// Architecture returns the per block bit widths of the current sample.
func (s *Supernet) Architecture() []int {
	bits := make([]int, len(s.Blocks))
	for i, b := range s.Blocks {
		bits[i] = b.Bits()
	}
	return bits
}

// SetArchitecture resamples every block to the given bit widths.
func (s *Supernet) SetArchitecture(bits []int) error {
	if len(bits) != len(s.Blocks) {
		return errors.Wrapf(ErrConfiguration, "architecture has %d entries for %d blocks", len(bits), len(s.Blocks))
	}
	for i, b := range s.Blocks {
		b.SetBits(bits[i])
	}
	return nil
}

// Sample draws a bit width uniformly from space for each block and applies it.
func (s *Supernet) Sample(rng *rand.Rand, space []int) []int {
	bits := make([]int, len(s.Blocks))
	for i := range bits {
		bits[i] = space[rng.Intn(len(space))]
	}
	s.SetArchitecture(bits)
	return bits
}

// Latency sums the per block cost of the current architecture.
func (s *Supernet) Latency() float64 {
	var total float64
	for _, b := range s.Blocks {
		total += b.LatencyFunction(0)
	}
	return total
}

// AvgLatency is the expected total cost when every block draws its bit width
// uniformly from space.
func (s *Supernet) AvgLatency(space []int) float64 {
	if len(space) == 0 {
		return 0
	}
	var mean float64
	for _, bits := range space {
		mean += Latency(bits)
	}
	return mean / float64(len(space)) * float64(len(s.Blocks))
}

// Prune builds a standalone copy of the currently sampled architecture. The
// new blocks alias this supernet's convolution weights and take a copy of its
// batch norm parameters and running statistics, non block layers are reused
// directly, so the copy evaluates with the trained parameters.
func (s *Supernet) Prune() (*Supernet, error) {
	net := &Supernet{Version: s.Version, Depth: s.Depth, Classes: s.Classes}
	net.Layers = make([]nnet.Layer, len(s.Layers))
	for i, l := range s.Layers {
		blk, ok := l.(Block)
		if !ok {
			net.Layers[i] = l
			continue
		}
		nb, err := NewBlock(blk.Spec(), blk)
		if err != nil {
			return nil, err
		}
		if shape := blk.inputShape(); shape != nil {
			nb.Init(shape)
			copyBlockNorms(nb, blk)
		}
		net.Layers[i] = nb
		net.Blocks = append(net.Blocks, nb)
	}
	return net, nil
}

// copyBlockNorms copies the batch norm gamma, beta and running statistics
// from src into dst. The convolution weights already alias src's storage.
func copyBlockNorms(dst, src Block) {
	dl, sl := dst.ParamLayers(), src.ParamLayers()
	for i, l := range dl {
		d, ok := l.(*nnet.BatchNormLayer)
		if !ok {
			continue
		}
		s := sl[i].(*nnet.BatchNormLayer)
		d.SetParams(s.Params())
		d.SetStats(s.RunningStats())
	}
}

func (s *Supernet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resnet%d v%d: %d blocks, latency %.2f\n", s.Depth, s.Version, len(s.Blocks), s.Latency())
	for i, l := range s.Layers {
		fmt.Fprintf(&b, "%2d: %s\n", i, l.ToString())
	}
	return b.String()
}

// Graph renders the layer sequence in graphviz dot format with blocks
// colored by bit width.
func (s *Supernet) Graph() string {
	var b strings.Builder
	b.WriteString("digraph supernet {\n  rankdir=TB;\n  node [style=filled, shape=box];\n")
	prev := ""
	for i, l := range s.Layers {
		name := fmt.Sprintf("l%d", i)
		color := "lightgrey"
		if blk, ok := l.(Block); ok {
			if blk.Bits() == 1 {
				color = "lightblue"
			} else {
				color = "orange"
			}
		}
		fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%s];\n", name, l.ToString(), color)
		if prev != "" {
			fmt.Fprintf(&b, "  %s -> %s;\n", prev, name)
		}
		prev = name
	}
	b.WriteString("}\n")
	return b.String()
}
