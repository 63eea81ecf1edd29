package nnet

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Jopyth/LightNAS/num"
)

const eps = 1e-5

func compareArray(t *testing.T, title string, a *num.Array, expect []float32) {
	t.Helper()
	got := a.Data()
	if len(got) != len(expect) {
		t.Fatalf("%s: length %d expect %d", title, len(got), len(expect))
	}
	for i := range got {
		if math.Abs(float64(got[i]-expect[i])) > eps {
			t.Errorf("%s mismatch!\n got    %v\n expect %v", title, got, expect)
			return
		}
	}
}

func TestLinear(t *testing.T) {
	l := Linear{Nout: 2}.Build()
	l.Init([]int{2, 3})
	W := num.NewArrayData([]float32{1, 0, 0, 1, 1, 1}, 3, 2)
	B := num.NewArrayData([]float32{0.5, -0.5}, 2)
	l.SetParams(W, B)

	x := num.NewArrayData([]float32{1, 2, 3, 0, 1, 0}, 2, 3)
	y := l.Fprop(x)
	compareArray(t, "linear fprop", y, []float32{4.5, 4.5, 0.5, 0.5})

	grad := num.NewArrayData([]float32{1, 0, 0, 1}, 2, 2)
	dsrc := l.Bprop(grad)
	// dx = grad * W^T
	compareArray(t, "linear dsrc", dsrc, []float32{1, 0, 1, 0, 1, 1})
	dW, dB := l.ParamGrads()
	// dW = x^T * grad, dB = column sums of grad
	compareArray(t, "linear dW", dW, []float32{1, 0, 2, 1, 3, 0})
	compareArray(t, "linear dB", dB, []float32{1, 1})
}

func TestQActivation(t *testing.T) {
	l := QActivation{Bits: 1, GradCancel: 1}.Build()
	l.Init([]int{1, 4})
	x := num.NewArrayData([]float32{-2, -0.5, 0.5, 2}, 1, 4)
	y := l.Fprop(x)
	compareArray(t, "sign", y, []float32{-1, -1, 1, 1})

	grad := num.NewArray(1, 4)
	num.Fill(grad, 1)
	dsrc := l.Bprop(grad)
	compareArray(t, "ste", dsrc, []float32{0, 1, 1, 0})

	// at 32 bits the layer is the identity
	l.SetBits(32)
	compareArray(t, "identity", l.Fprop(x), []float32{-2, -0.5, 0.5, 2})
	compareArray(t, "identity grad", l.Bprop(grad), []float32{1, 1, 1, 1})
	if l.Bits() != 32 {
		t.Errorf("bits got %d", l.Bits())
	}
}

func TestQConvBinarized(t *testing.T) {
	l := QConv{Nfeats: 1, Size: 2, Bits: 1}.Build()
	l.Init([]int{1, 1, 3, 3})
	W := num.NewArrayData([]float32{0.3, -0.7, 0.1, -0.2}, 1, 1, 2, 2)
	B := num.NewArray(0)
	l.SetParams(W, B)

	x := num.NewArray(1, 1, 3, 3)
	num.Fill(x, 1)
	y := l.Fprop(x)
	// binarized kernel is [1,-1,1,-1] so each window sums to zero
	compareArray(t, "qconv binary", y, []float32{0, 0, 0, 0})

	l.SetBits(32)
	y = l.Fprop(x)
	compareArray(t, "qconv fp", y, []float32{-0.5, -0.5, -0.5, -0.5})
}

func TestQConvShareWeights(t *testing.T) {
	a := QConv{Nfeats: 2, Size: 3, Bits: 1, InChannels: 4}.Build()
	b := QConv{Nfeats: 2, Size: 3, Bits: 1, InChannels: 4}.Build()
	if err := b.ShareWeights(a); err != nil {
		t.Fatal(err)
	}
	if !b.SharesWeights(a) {
		t.Error("expected shared weight storage")
	}
	c := QConv{Nfeats: 4, Size: 3, Bits: 1, InChannels: 4}.Build()
	if err := c.ShareWeights(a); err == nil {
		t.Error("expected shape error")
	}
}

func TestBatchNorm(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	l := BatchNorm{}.Build()
	l.Init([]int{8, 2})
	x := num.NewArray(8, 2)
	for i := range x.Data() {
		x.Data()[i] = float32(rng.NormFloat64())*2 + 3
	}
	y := l.Fprop(x)
	// normalized output should have zero mean and unit variance per channel
	for ch := 0; ch < 2; ch++ {
		var mean, vari float32
		for n := 0; n < 8; n++ {
			mean += y.Data()[n*2+ch]
		}
		mean /= 8
		for n := 0; n < 8; n++ {
			d := y.Data()[n*2+ch] - mean
			vari += d * d
		}
		vari /= 8
		if math.Abs(float64(mean)) > 1e-4 || math.Abs(float64(vari)-1) > 1e-2 {
			t.Errorf("channel %d: mean %v var %v", ch, mean, vari)
		}
	}
}

func TestBatchNormStats(t *testing.T) {
	l := BatchNorm{}.Build()
	l.Init([]int{4, 2})
	mean := num.NewArrayData([]float32{1, 2}, 2)
	vari := num.NewArrayData([]float32{3, 4}, 2)
	l.SetStats(mean, vari)
	m, v := l.RunningStats()
	compareArray(t, "running mean", m, []float32{1, 2})
	compareArray(t, "running var", v, []float32{3, 4})
}
