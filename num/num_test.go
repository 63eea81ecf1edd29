package num

import (
	"math"
	"testing"
)

const eps = 1e-5

func compareArray(t *testing.T, title string, a *Array, expect []float32) {
	t.Helper()
	got := a.Data()
	if len(got) != len(expect) {
		t.Fatalf("%s: length %d expect %d", title, len(got), len(expect))
	}
	for i := range got {
		if math.Abs(float64(got[i]-expect[i])) > eps {
			t.Errorf("%s mismatch!\n got   %v\n expect %v", title, got, expect)
			return
		}
	}
}

func TestGemm(t *testing.T) {
	a := NewArrayData([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := NewArrayData([]float32{7, 8, 9, 10, 11, 12}, 3, 2)
	c := NewArray(2, 2)
	Gemm(1, 0, a, b, c, false, false)
	compareArray(t, "a*b", c, []float32{58, 64, 139, 154})

	// aT is 3x2, multiply transposed by b gives 2x2
	at := NewArrayData([]float32{1, 4, 2, 5, 3, 6}, 3, 2)
	Gemm(1, 0, at, b, c, true, false)
	compareArray(t, "aT*b", c, []float32{58, 64, 139, 154})

	bt := NewArrayData([]float32{7, 9, 11, 8, 10, 12}, 2, 3)
	Gemm(1, 0, a, bt, c, false, true)
	compareArray(t, "a*bT", c, []float32{58, 64, 139, 154})

	// accumulate with beta
	Gemm(1, 1, a, b, c, false, false)
	compareArray(t, "a*b+c", c, []float32{116, 128, 278, 308})
}

func TestConvFprop(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	w := NewArrayData([]float32{1, 1, 1, 1}, 1, 1, 2, 2)
	y := NewArray(1, 1, 2, 2)
	col := ConvBuffer(1, 3, 3, 2, 1, 0)
	ConvFprop(x, w, y, col, 1, 0)
	compareArray(t, "conv", y, []float32{12, 16, 24, 28})
}

func TestConvPad(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 4}, 1, 1, 2, 2)
	w := NewArrayData([]float32{0, 0, 0, 0, 1, 0, 0, 0, 0}, 1, 1, 3, 3)
	y := NewArray(1, 1, 2, 2)
	col := ConvBuffer(1, 2, 2, 3, 1, 1)
	// centre tap identity kernel with same padding
	ConvFprop(x, w, y, col, 1, 1)
	compareArray(t, "conv pad", y, []float32{1, 2, 3, 4})
}

func TestConvBprop(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	w := NewArrayData([]float32{1, 1, 1, 1}, 1, 1, 2, 2)
	grad := NewArray(1, 1, 2, 2)
	Fill(grad, 1)
	col := ConvBuffer(1, 3, 3, 2, 1, 0)

	// each input pixel gets a contribution per window covering it
	dsrc := NewArray(1, 1, 3, 3)
	ConvBpropData(grad, w, dsrc, col, 1, 0)
	compareArray(t, "dsrc", dsrc, []float32{1, 2, 1, 2, 4, 2, 1, 2, 1})

	// filter gradient is the sum of each window, accumulated into dw
	dw := NewArray(1, 1, 2, 2)
	ConvBpropFilter(x, grad, dw, col, 1, 0)
	compareArray(t, "dw", dw, []float32{12, 16, 24, 28})
	ConvBpropFilter(x, grad, dw, col, 1, 0)
	compareArray(t, "dw accumulated", dw, []float32{24, 32, 48, 56})
}

func TestMaxPool(t *testing.T) {
	x := NewArrayData([]float32{
		1, 2, 5, 6,
		3, 4, 8, 7,
		-1, -2, 0, 1,
		-3, -4, 2, 3}, 1, 1, 4, 4)
	y := NewArray(1, 1, 2, 2)
	idx := make([]int32, 4)
	MaxPool(x, y, idx, 2, 2)
	compareArray(t, "maxpool", y, []float32{4, 8, -1, 3})

	grad := NewArrayData([]float32{10, 20, 30, 40}, 1, 1, 2, 2)
	dsrc := NewArray(1, 1, 4, 4)
	MaxPoolD(grad, dsrc, idx)
	compareArray(t, "maxpoolD", dsrc, []float32{
		0, 0, 0, 0,
		0, 10, 20, 0,
		30, 0, 0, 0,
		0, 0, 0, 40})
}

func TestAvgPool(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, 1, 1, 4, 4)
	y := NewArray(1, 1, 2, 2)
	AvgPool(x, y, 2, 2)
	compareArray(t, "avgpool", y, []float32{3.5, 5.5, 11.5, 13.5})

	grad := NewArrayData([]float32{4, 8, 12, 16}, 1, 1, 2, 2)
	dsrc := NewArray(1, 1, 4, 4)
	AvgPoolD(grad, dsrc, 2, 2)
	compareArray(t, "avgpoolD", dsrc, []float32{1, 1, 2, 2, 1, 1, 2, 2, 3, 3, 4, 4, 3, 3, 4, 4})
}

func TestGlobalAvgPool(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 4, 10, 20, 30, 40}, 1, 2, 2, 2)
	y := NewArray(1, 2, 1, 1)
	GlobalAvgPool(x, y)
	compareArray(t, "gap", y, []float32{2.5, 25})

	grad := NewArrayData([]float32{4, 8}, 1, 2, 1, 1)
	dsrc := NewArray(1, 2, 2, 2)
	GlobalAvgPoolD(grad, dsrc)
	compareArray(t, "gapD", dsrc, []float32{1, 1, 1, 1, 2, 2, 2, 2})
}

func TestSign(t *testing.T) {
	x := NewArrayData([]float32{-2, -0.5, 0, 0.5, 2}, 5)
	y := NewArray(5)
	Sign(x, y)
	compareArray(t, "sign", y, []float32{-1, -1, 1, 1, 1})

	grad := NewArray(5)
	Fill(grad, 1)
	dst := NewArray(5)
	SignD(x, grad, dst, 1)
	compareArray(t, "signD", dst, []float32{0, 1, 1, 1, 0})
}

func TestSoftmax(t *testing.T) {
	x := NewArrayData([]float32{1, 2, 3, 0, 0, 0}, 2, 3)
	y := NewArray(2, 3)
	Softmax(x, y)
	for r := 0; r < 2; r++ {
		var sum float32
		for _, v := range y.Data()[r*3 : (r+1)*3] {
			sum += v
		}
		if math.Abs(float64(sum-1)) > eps {
			t.Errorf("softmax row %d sums to %v", r, sum)
		}
	}
	classes := make([]int32, 2)
	Unhot(y, classes)
	if classes[0] != 2 || classes[1] != 0 {
		t.Errorf("unhot got %v", classes)
	}
	// loss approaches zero for a confident correct prediction
	yOneHot := NewArray(1, 2)
	Onehot([]int32{0}, yOneHot, 2)
	yPred := NewArrayData([]float32{0.999, 0.001}, 1, 2)
	if loss := SoftmaxLoss(yOneHot, yPred); loss < 0 || loss > 0.01 {
		t.Errorf("unexpected loss %v", loss)
	}
}

func TestOnehot(t *testing.T) {
	y := NewArray(3, 4)
	Onehot([]int32{1, 3, 0}, y, 4)
	compareArray(t, "onehot", y, []float32{0, 1, 0, 0, 0, 0, 0, 1, 1, 0, 0, 0})
	if n := Neq([]int32{1, 3, 0}, []int32{1, 0, 0}); n != 1 {
		t.Errorf("neq got %d expect 1", n)
	}
}

func TestReshape(t *testing.T) {
	a := NewArrayData([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := a.Reshape(3, -1)
	if d := b.Dims(); d[0] != 3 || d[1] != 2 {
		t.Errorf("reshape dims %v", d)
	}
	b.Data()[0] = 9
	if a.Data()[0] != 9 {
		t.Error("reshape should share data")
	}
	c := a.Clone()
	c.Data()[0] = 1
	if a.Data()[0] != 9 {
		// clone must not alias
		t.Error("clone should copy data")
	}
}
