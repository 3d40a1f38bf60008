package nn

import (
	"fmt"
	"math"
	"math/rand"
)

type ReLU struct{}

func NewReLU() *ReLU { return &ReLU{} }

func (r *ReLU) OutputShape(in []int) ([]int, error) {
	return append([]int(nil), in...), nil
}

func (r *ReLU) Params() []*Param { return nil }

func (r *ReLU) Forward(x *Tensor) *Tensor {
	y := NewTensor(x.Shape...)
	for i, v := range x.Data {
		if v > 0 {
			y.Data[i] = v
		}
	}
	return y
}

func (r *ReLU) Train(x *Tensor, _ *rand.Rand) (*Tensor, Backward) {
	y := r.Forward(x)
	return y, func(dy *Tensor) *Tensor {
		dx := NewTensor(y.Shape...)
		for i, v := range y.Data {
			if v > 0 {
				dx.Data[i] = dy.Data[i]
			}
		}
		return dx
	}
}

func (r *ReLU) spec() layerSpec {
	return layerSpec{Kind: kindReLU}
}

// Dropout zeroes a Rate fraction of activations during training and scales
// the survivors by 1/(1-Rate). Inference passes the input through.
type Dropout struct {
	Rate float64
}

func NewDropout(rate float64) *Dropout {
	return &Dropout{Rate: rate}
}

func (d *Dropout) OutputShape(in []int) ([]int, error) {
	if d.Rate < 0 || d.Rate >= 1 {
		return nil, fmt.Errorf("dropout rate %v outside [0, 1)", d.Rate)
	}
	return append([]int(nil), in...), nil
}

func (d *Dropout) Params() []*Param { return nil }

func (d *Dropout) Forward(x *Tensor) *Tensor {
	return x
}

func (d *Dropout) Train(x *Tensor, rng *rand.Rand) (*Tensor, Backward) {
	if d.Rate == 0 || rng == nil {
		return x, func(dy *Tensor) *Tensor { return dy }
	}
	scale := 1 / (1 - d.Rate)
	mask := make([]float64, len(x.Data))
	y := NewTensor(x.Shape...)
	for i, v := range x.Data {
		if rng.Float64() >= d.Rate {
			mask[i] = scale
			y.Data[i] = v * scale
		}
	}
	return y, func(dy *Tensor) *Tensor {
		dx := NewTensor(dy.Shape...)
		for i, m := range mask {
			dx.Data[i] = dy.Data[i] * m
		}
		return dx
	}
}

func (d *Dropout) spec() layerSpec {
	return layerSpec{Kind: kindDropout, Rate: d.Rate}
}

type Flatten struct{}

func NewFlatten() *Flatten { return &Flatten{} }

func (f *Flatten) OutputShape(in []int) ([]int, error) {
	return []int{volume(in)}, nil
}

func (f *Flatten) Params() []*Param { return nil }

func (f *Flatten) Forward(x *Tensor) *Tensor {
	return x.Reshape(x.Len())
}

func (f *Flatten) Train(x *Tensor, _ *rand.Rand) (*Tensor, Backward) {
	shape := append([]int(nil), x.Shape...)
	return f.Forward(x), func(dy *Tensor) *Tensor {
		return dy.Reshape(shape...)
	}
}

func (f *Flatten) spec() layerSpec {
	return layerSpec{Kind: kindFlatten}
}

// Softmax returns the normalised exponentials of logits.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// ArgMax returns the index of the largest value, preferring the lowest index
// on ties.
func ArgMax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
