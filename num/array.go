// Package num contains the float32 array type and numeric routines used to
// build and train networks: BLAS matrix multiply, convolution via im2col,
// pooling, batch activation functions and the sign quantizer.
package num

import (
	"fmt"
	"strings"
)

// Array is an n-dimensional float32 array in row major order.
type Array struct {
	dims []int
	data []float32
}

// NewArray creates a new zeroed array with the given dimensions.
func NewArray(dims ...int) *Array {
	return &Array{dims: append([]int{}, dims...), data: make([]float32, Prod(dims))}
}

// NewArrayData creates an array wrapping the given backing slice.
func NewArrayData(data []float32, dims ...int) *Array {
	if len(data) != Prod(dims) {
		panic(fmt.Sprintf("num: data length %d does not match dims %v", len(data), dims))
	}
	return &Array{dims: append([]int{}, dims...), data: data}
}

// Dims returns the array dimensions.
func (a *Array) Dims() []int { return a.dims }

// Size returns the total number of elements, zero for a nil array.
func (a *Array) Size() int {
	if a == nil {
		return 0
	}
	return len(a.data)
}

// Data returns the backing slice.
func (a *Array) Data() []float32 {
	if a == nil {
		return nil
	}
	return a.data
}

// Reshape returns a new array sharing the same data. One dimension may be
// set to -1 in which case it is inferred from the size.
func (a *Array) Reshape(dims ...int) *Array {
	dims = append([]int{}, dims...)
	wild := -1
	size := 1
	for i, d := range dims {
		if d == -1 {
			if wild >= 0 {
				panic("num: multiple -1 dims in Reshape")
			}
			wild = i
		} else {
			size *= d
		}
	}
	if wild >= 0 {
		dims[wild] = len(a.data) / size
		size *= dims[wild]
	}
	if size != len(a.data) {
		panic(fmt.Sprintf("num: cannot reshape %v to %v", a.dims, dims))
	}
	return &Array{dims: dims, data: a.data}
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	b := NewArray(a.dims...)
	copy(b.data, a.data)
	return b
}

// SameShape checks if the two arrays have identical dimensions.
func (a *Array) SameShape(b *Array) bool {
	if len(a.dims) != len(b.dims) {
		return false
	}
	for i, d := range a.dims {
		if b.dims[i] != d {
			return false
		}
	}
	return true
}

// String formats the array for debug output, one row per line for matrices.
func (a *Array) String() string {
	if len(a.dims) != 2 {
		return fmt.Sprintf("%v%v", a.dims, a.data)
	}
	rows, cols := a.dims[0], a.dims[1]
	var sb strings.Builder
	for r := 0; r < rows; r++ {
		sb.WriteString(fmt.Sprintf("%7.4g\n", a.data[r*cols:(r+1)*cols]))
	}
	return sb.String()
}

// Prod returns the product of the dimensions.
func Prod(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
