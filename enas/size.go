package enas

import (
	"fmt"
	"math"

	"github.com/Jopyth/LightNAS/nnet"
	"github.com/Jopyth/LightNAS/num"
)

// SizeReport is the compressed model size: binary weights are stored as one
// bit each, everything else at 32 bits.
type SizeReport struct {
	BinaryWeights int
	FPWeights     int
}

func (r SizeReport) Bits() int { return r.BinaryWeights + 32*r.FPWeights }

func (r SizeReport) Bytes() float64 { return float64(r.Bits()) / 8 }

// BinaryRatio is the fraction of weights that are binary.
func (r SizeReport) BinaryRatio() float64 {
	total := r.BinaryWeights + r.FPWeights
	if total == 0 {
		return 0
	}
	return float64(r.BinaryWeights) / float64(total)
}

func (r SizeReport) String() string {
	return fmt.Sprintf("compressed model size ~%s (%.2f%% binary)",
		ConvertSize(r.Bytes()), 100*float64(r.BinaryWeights)/float64(r.Bits()))
}

// ModelSize counts the network weights by precision. Biases and batch norm
// parameters always stay full precision.
func ModelSize(net *nnet.Network) SizeReport {
	var r SizeReport
	for _, l := range net.ParamLayers() {
		W, B := l.Params()
		if q, ok := l.(nnet.Quantized); ok && q.Bits() == 1 {
			r.BinaryWeights += W.Size()
		} else {
			r.FPWeights += W.Size()
		}
		r.FPWeights += B.Size()
	}
	return r
}

// BinarizeWeights snaps the stored weights of every binary layer to -1 or +1
// before evaluation, so that accuracy is measured on the values a deployed
// model would actually use. Returns the number of weights snapped.
func BinarizeWeights(net *nnet.Network) int {
	n := 0
	for _, l := range net.ParamLayers() {
		if q, ok := l.(nnet.Quantized); ok && q.Bits() == 1 {
			W, _ := l.Params()
			num.Sign(W, W)
			n += W.Size()
		}
	}
	return n
}

// ConvertSize formats a byte count using powers of 1024.
func ConvertSize(sizeBytes float64) string {
	if sizeBytes == 0 {
		return "0B"
	}
	names := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	i := int(math.Floor(math.Log(sizeBytes) / math.Log(1024)))
	if i < 0 {
		i = 0
	}
	if i >= len(names) {
		i = len(names) - 1
	}
	p := math.Pow(1024, float64(i))
	return fmt.Sprintf("%g %s", math.Round(sizeBytes/p*100)/100, names[i])
}
