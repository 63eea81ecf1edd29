package num

import "fmt"

// ConvOutSize returns the output size for one spatial dimension of a
// convolution or pooling window.
func ConvOutSize(in, size, stride, pad int) int {
	return (in-size+2*pad)/stride + 1
}

// im2col expands one image [channels, h, w] into a [channels*size*size, ho*wo]
// column matrix so that convolution reduces to a matrix multiply.
func im2col(src []float32, col *Array, channels, h, w, size, stride, pad int) {
	ho := ConvOutSize(h, size, stride, pad)
	wo := ConvOutSize(w, size, stride, pad)
	cdata := col.data
	row := 0
	for c := 0; c < channels; c++ {
		for ky := 0; ky < size; ky++ {
			for kx := 0; kx < size; kx++ {
				for oy := 0; oy < ho; oy++ {
					y := oy*stride + ky - pad
					for ox := 0; ox < wo; ox++ {
						x := ox*stride + kx - pad
						if y >= 0 && y < h && x >= 0 && x < w {
							cdata[row*ho*wo+oy*wo+ox] = src[c*h*w+y*w+x]
						} else {
							cdata[row*ho*wo+oy*wo+ox] = 0
						}
					}
				}
				row++
			}
		}
	}
}

// col2im is the adjoint of im2col: accumulates columns back into the image.
func col2im(col *Array, dst []float32, channels, h, w, size, stride, pad int) {
	ho := ConvOutSize(h, size, stride, pad)
	wo := ConvOutSize(w, size, stride, pad)
	cdata := col.data
	row := 0
	for c := 0; c < channels; c++ {
		for ky := 0; ky < size; ky++ {
			for kx := 0; kx < size; kx++ {
				for oy := 0; oy < ho; oy++ {
					y := oy*stride + ky - pad
					for ox := 0; ox < wo; ox++ {
						x := ox*stride + kx - pad
						if y >= 0 && y < h && x >= 0 && x < w {
							dst[c*h*w+y*w+x] += cdata[row*ho*wo+oy*wo+ox]
						}
					}
				}
				row++
			}
		}
	}
}

// ConvBuffer allocates the column workspace for inputs of shape
// [batch, channels, h, w] and a square kernel of the given size.
func ConvBuffer(channels, h, w, size, stride, pad int) *Array {
	ho := ConvOutSize(h, size, stride, pad)
	wo := ConvOutSize(w, size, stride, pad)
	return NewArray(channels*size*size, ho*wo)
}

// ConvFprop convolves x [batch, cin, h, w] with filters w [cout, cin, k, k]
// writing the result to y [batch, cout, ho, wo]. col is the workspace from
// ConvBuffer.
func ConvFprop(x, weights, y, col *Array, stride, pad int) {
	batch, cin, h, wid := x.dims[0], x.dims[1], x.dims[2], x.dims[3]
	cout, size := weights.dims[0], weights.dims[2]
	ho := ConvOutSize(h, size, stride, pad)
	wo := ConvOutSize(wid, size, stride, pad)
	if y.dims[1] != cout || y.dims[2] != ho || y.dims[3] != wo {
		panic(fmt.Sprintf("num: conv output shape %v does not match input %v filter %v", y.dims, x.dims, weights.dims))
	}
	wmat := weights.Reshape(cout, cin*size*size)
	for n := 0; n < batch; n++ {
		im2col(x.data[n*cin*h*wid:(n+1)*cin*h*wid], col, cin, h, wid, size, stride, pad)
		out := NewArrayData(y.data[n*cout*ho*wo:(n+1)*cout*ho*wo], cout, ho*wo)
		Gemm(1, 0, wmat, col, out, false, false)
	}
}

// ConvBpropData computes the gradient with respect to the convolution input:
// dsrc [batch, cin, h, w] given grad [batch, cout, ho, wo].
func ConvBpropData(grad, weights, dsrc, col *Array, stride, pad int) {
	batch, cin, h, wid := dsrc.dims[0], dsrc.dims[1], dsrc.dims[2], dsrc.dims[3]
	cout, size := weights.dims[0], weights.dims[2]
	ho := ConvOutSize(h, size, stride, pad)
	wo := ConvOutSize(wid, size, stride, pad)
	wmat := weights.Reshape(cout, cin*size*size)
	Fill(dsrc, 0)
	for n := 0; n < batch; n++ {
		g := NewArrayData(grad.data[n*cout*ho*wo:(n+1)*cout*ho*wo], cout, ho*wo)
		Gemm(1, 0, wmat, g, col, true, false)
		col2im(col, dsrc.data[n*cin*h*wid:(n+1)*cin*h*wid], cin, h, wid, size, stride, pad)
	}
}

// ConvBpropFilter accumulates the gradient with respect to the filters into
// dw [cout, cin, k, k]. dw is not zeroed: aliased layers sum contributions.
func ConvBpropFilter(x, grad, dw, col *Array, stride, pad int) {
	batch, cin, h, wid := x.dims[0], x.dims[1], x.dims[2], x.dims[3]
	cout, size := dw.dims[0], dw.dims[2]
	ho := ConvOutSize(h, size, stride, pad)
	wo := ConvOutSize(wid, size, stride, pad)
	dwmat := dw.Reshape(cout, cin*size*size)
	for n := 0; n < batch; n++ {
		im2col(x.data[n*cin*h*wid:(n+1)*cin*h*wid], col, cin, h, wid, size, stride, pad)
		g := NewArrayData(grad.data[n*cout*ho*wo:(n+1)*cout*ho*wo], cout, ho*wo)
		Gemm(1, 1, g, col, dwmat, false, true)
	}
}

// MaxPool applies max pooling to x [batch, c, h, w] writing y and recording
// the index of each maximum for the backward pass.
func MaxPool(x, y *Array, idx []int32, size, stride int) {
	batch, c, h, w := x.dims[0], x.dims[1], x.dims[2], x.dims[3]
	ho, wo := y.dims[2], y.dims[3]
	for n := 0; n < batch; n++ {
		for ch := 0; ch < c; ch++ {
			src := x.data[(n*c+ch)*h*w:]
			for oy := 0; oy < ho; oy++ {
				for ox := 0; ox < wo; ox++ {
					best := float32(0)
					bestIx := -1
					for ky := 0; ky < size; ky++ {
						for kx := 0; kx < size; kx++ {
							py, px := oy*stride+ky, ox*stride+kx
							if py < h && px < w {
								if v := src[py*w+px]; bestIx < 0 || v > best {
									best, bestIx = v, py*w+px
								}
							}
						}
					}
					pos := ((n*c+ch)*ho+oy)*wo + ox
					y.data[pos] = best
					idx[pos] = int32((n*c+ch)*h*w + bestIx)
				}
			}
		}
	}
}

// MaxPoolD routes the pooled gradient back to the recorded maxima.
func MaxPoolD(grad, dsrc *Array, idx []int32) {
	Fill(dsrc, 0)
	for i, ix := range idx {
		dsrc.data[ix] += grad.data[i]
	}
}

// AvgPool applies average pooling to x [batch, c, h, w].
func AvgPool(x, y *Array, size, stride int) {
	batch, c, h, w := x.dims[0], x.dims[1], x.dims[2], x.dims[3]
	ho, wo := y.dims[2], y.dims[3]
	norm := float32(size * size)
	for n := 0; n < batch; n++ {
		for ch := 0; ch < c; ch++ {
			src := x.data[(n*c+ch)*h*w:]
			for oy := 0; oy < ho; oy++ {
				for ox := 0; ox < wo; ox++ {
					var sum float32
					for ky := 0; ky < size; ky++ {
						for kx := 0; kx < size; kx++ {
							py, px := oy*stride+ky, ox*stride+kx
							if py < h && px < w {
								sum += src[py*w+px]
							}
						}
					}
					y.data[((n*c+ch)*ho+oy)*wo+ox] = sum / norm
				}
			}
		}
	}
}

// AvgPoolD spreads the pooled gradient evenly over each window.
func AvgPoolD(grad, dsrc *Array, size, stride int) {
	batch, c, h, w := dsrc.dims[0], dsrc.dims[1], dsrc.dims[2], dsrc.dims[3]
	ho, wo := grad.dims[2], grad.dims[3]
	norm := float32(size * size)
	Fill(dsrc, 0)
	for n := 0; n < batch; n++ {
		for ch := 0; ch < c; ch++ {
			dst := dsrc.data[(n*c+ch)*h*w:]
			for oy := 0; oy < ho; oy++ {
				for ox := 0; ox < wo; ox++ {
					g := grad.data[((n*c+ch)*ho+oy)*wo+ox] / norm
					for ky := 0; ky < size; ky++ {
						for kx := 0; kx < size; kx++ {
							py, px := oy*stride+ky, ox*stride+kx
							if py < h && px < w {
								dst[py*w+px] += g
							}
						}
					}
				}
			}
		}
	}
}

// GlobalAvgPool reduces x [batch, c, h, w] to y [batch, c, 1, 1].
func GlobalAvgPool(x, y *Array) {
	batch, c, h, w := x.dims[0], x.dims[1], x.dims[2], x.dims[3]
	norm := float32(h * w)
	for i := 0; i < batch*c; i++ {
		var sum float32
		for _, v := range x.data[i*h*w : (i+1)*h*w] {
			sum += v
		}
		y.data[i] = sum / norm
	}
}

// GlobalAvgPoolD spreads the gradient evenly over the spatial positions.
func GlobalAvgPoolD(grad, dsrc *Array) {
	batch, c, h, w := dsrc.dims[0], dsrc.dims[1], dsrc.dims[2], dsrc.dims[3]
	norm := float32(h * w)
	for i := 0; i < batch*c; i++ {
		g := grad.data[i] / norm
		for j := i * h * w; j < (i+1)*h*w; j++ {
			dsrc.data[j] = g
		}
	}
}
