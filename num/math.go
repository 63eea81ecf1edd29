package num

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Fill sets all elements of a to val.
func Fill(a *Array, val float32) {
	for i := range a.data {
		a.data[i] = val
	}
}

// Copy copies src to dst which must be the same size.
func Copy(dst, src *Array) {
	if len(dst.data) != len(src.data) {
		panic(fmt.Sprintf("num: copy size mismatch %v %v", dst.dims, src.dims))
	}
	copy(dst.data, src.data)
}

// Axpy calculates y += alpha * x.
func Axpy(alpha float32, x, y *Array) {
	if len(x.data) != len(y.data) {
		panic(fmt.Sprintf("num: axpy size mismatch %v %v", x.dims, y.dims))
	}
	for i, v := range x.data {
		y.data[i] += alpha * v
	}
}

// Scale calculates x *= alpha.
func Scale(alpha float32, x *Array) {
	for i := range x.data {
		x.data[i] *= alpha
	}
}

// Sum returns the sum of all elements.
func Sum(a *Array) float32 {
	var s float32
	for _, v := range a.data {
		s += v
	}
	return s
}

func general(a *Array, rows, cols int) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: a.data}
}

// Gemm calculates c = alpha*a*b + beta*c where a, b and c are 2 dimensional
// matrices and a and b are optionally transposed.
func Gemm(alpha, beta float32, a, b, c *Array, aTrans, bTrans bool) {
	ad, bd, cd := a.dims, b.dims, c.dims
	if len(ad) != 2 || len(bd) != 2 || len(cd) != 2 {
		panic("num: gemm expects 2 dimensional arrays")
	}
	ta, tb := blas.NoTrans, blas.NoTrans
	m, ka := ad[0], ad[1]
	if aTrans {
		ta = blas.Trans
		m, ka = ad[1], ad[0]
	}
	kb, n := bd[0], bd[1]
	if bTrans {
		tb = blas.Trans
		kb, n = bd[1], bd[0]
	}
	if ka != kb || cd[0] != m || cd[1] != n {
		panic(fmt.Sprintf("num: gemm shape mismatch %v %v => %v", ad, bd, cd))
	}
	blas32.Gemm(ta, tb, alpha, general(a, ad[0], ad[1]), general(b, bd[0], bd[1]), beta, general(c, m, n))
}

// Relu applies y = max(x, 0) elementwise.
func Relu(x, y *Array) {
	for i, v := range x.data {
		if v > 0 {
			y.data[i] = v
		} else {
			y.data[i] = 0
		}
	}
}

// ReluD calculates dst = grad where x > 0 else 0.
func ReluD(x, grad, dst *Array) {
	for i, v := range x.data {
		if v > 0 {
			dst.data[i] = grad.data[i]
		} else {
			dst.data[i] = 0
		}
	}
}

// Tanh applies the tanh function elementwise.
func Tanh(x, y *Array) {
	for i, v := range x.data {
		y.data[i] = float32(math.Tanh(float64(v)))
	}
}

// TanhD calculates the tanh derivative: dst = grad * (1 - tanh(x)^2).
func TanhD(x, grad, dst *Array) {
	for i, v := range x.data {
		t := float32(math.Tanh(float64(v)))
		dst.data[i] = grad.data[i] * (1 - t*t)
	}
}

// Sigmoid applies the logistic function elementwise.
func Sigmoid(x, y *Array) {
	for i, v := range x.data {
		y.data[i] = float32(1 / (1 + math.Exp(-float64(v))))
	}
}

// SigmoidD calculates the sigmoid derivative: dst = grad * s * (1-s).
func SigmoidD(x, grad, dst *Array) {
	for i, v := range x.data {
		s := float32(1 / (1 + math.Exp(-float64(v))))
		dst.data[i] = grad.data[i] * s * (1 - s)
	}
}

// Sign applies deterministic sign binarization: y = 1 if x >= 0 else -1.
func Sign(x, y *Array) {
	for i, v := range x.data {
		if v >= 0 {
			y.data[i] = 1
		} else {
			y.data[i] = -1
		}
	}
}

// SignD applies the straight through estimator for the sign function:
// dst = grad where |x| <= cancel else 0.
func SignD(x, grad, dst *Array, cancel float32) {
	for i, v := range x.data {
		if v <= cancel && v >= -cancel {
			dst.data[i] = grad.data[i]
		} else {
			dst.data[i] = 0
		}
	}
}

// Softmax applies the softmax function to each row of x.
func Softmax(x, y *Array) {
	rows, cols := x.dims[0], x.dims[1]
	for r := 0; r < rows; r++ {
		row := x.data[r*cols : (r+1)*cols]
		out := y.data[r*cols : (r+1)*cols]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		for i, v := range row {
			out[i] = float32(math.Exp(float64(v - max)))
			sum += out[i]
		}
		for i := range out {
			out[i] /= sum
		}
	}
}

// SoftmaxLoss returns the total cross entropy loss over the batch where
// yPred holds predicted probabilities and yOneHot the target distribution.
func SoftmaxLoss(yOneHot, yPred *Array) float32 {
	var loss float64
	for i, y := range yOneHot.data {
		if y != 0 {
			p := math.Max(float64(yPred.data[i]), 1e-12)
			loss -= float64(y) * math.Log(p)
		}
	}
	return float32(loss)
}

// Onehot expands labels into a one hot encoded [batch, classes] array.
func Onehot(labels []int32, y *Array, classes int) {
	Fill(y, 0)
	for i, l := range labels {
		y.data[i*classes+int(l)] = 1
	}
}

// Unhot sets classes to the argmax of each row of yPred.
func Unhot(yPred *Array, classes []int32) {
	rows, cols := yPred.dims[0], yPred.dims[1]
	for r := 0; r < rows; r++ {
		row := yPred.data[r*cols : (r+1)*cols]
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		classes[r] = int32(best)
	}
}

// Neq counts the entries where the two slices differ.
func Neq(a, b []int32) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}
