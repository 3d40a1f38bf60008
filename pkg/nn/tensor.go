package nn

import "fmt"

// Tensor is a dense float64 array in row-major order. Image tensors are
// channel-major: (C, H, W) for one sample and (N, C, H, W) for a batch.
type Tensor struct {
	Shape []int
	Data  []float64
}

func NewTensor(shape ...int) *Tensor {
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, volume(shape)),
	}
}

// FromData wraps data without copying it.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	if volume(shape) != len(data) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, volume(shape), len(data))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

func (t *Tensor) Len() int {
	return len(t.Data)
}

func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// Reshape returns a view over the same data with a new shape.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	if volume(shape) != len(t.Data) {
		panic(fmt.Sprintf("nn: cannot reshape %v into %v", t.Shape, shape))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: t.Data}
}

// BatchSize is the leading dimension of a batch tensor.
func (t *Tensor) BatchSize() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Sample returns a view of the i-th entry of a batch tensor.
func (t *Tensor) Sample(i int) *Tensor {
	n := t.BatchSize()
	if i < 0 || i >= n {
		panic(fmt.Sprintf("nn: sample %d out of range for batch of %d", i, n))
	}
	size := len(t.Data) / n
	return &Tensor{
		Shape: append([]int(nil), t.Shape[1:]...),
		Data:  t.Data[i*size : (i+1)*size],
	}
}

// Equal reports whether both tensors have the same shape and identical values.
func (t *Tensor) Equal(o *Tensor) bool {
	if o == nil || !sameShape(t.Shape, o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

func volume(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	v := 1
	for _, d := range shape {
		v *= d
	}
	return v
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
