package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer, y = Wx + b, with W stored Out x In.
// It accepts any input whose element count equals In.
type Dense struct {
	In     int
	Out    int
	Weight *Param
	Bias   *Param
}

func NewDense(in, out int, rng *rand.Rand) *Dense {
	d := &Dense{
		In:     in,
		Out:    out,
		Weight: newParam("dense.weight", out*in),
		Bias:   newParam("dense.bias", out),
	}
	if rng != nil {
		glorotUniform(d.Weight, in, out, rng)
	}
	return d
}

func (d *Dense) OutputShape(in []int) ([]int, error) {
	if volume(in) != d.In {
		return nil, fmt.Errorf("dense expects %d inputs, got shape %v", d.In, in)
	}
	return []int{d.Out}, nil
}

func (d *Dense) Params() []*Param {
	return []*Param{d.Weight, d.Bias}
}

func (d *Dense) Forward(x *Tensor) *Tensor {
	weight := mat.NewDense(d.Out, d.In, d.Weight.Value)
	y := NewTensor(d.Out)
	out := mat.NewVecDense(d.Out, y.Data)
	out.MulVec(weight, mat.NewVecDense(d.In, x.Data))
	floats.Add(y.Data, d.Bias.Value)
	return y
}

func (d *Dense) Train(x *Tensor, _ *rand.Rand) (*Tensor, Backward) {
	y := d.Forward(x)
	shape := append([]int(nil), x.Shape...)
	input := x.Data

	return y, func(dy *Tensor) *Tensor {
		for o := 0; o < d.Out; o++ {
			floats.AddScaled(d.Weight.Grad[o*d.In:(o+1)*d.In], dy.Data[o], input)
		}
		floats.Add(d.Bias.Grad, dy.Data)

		weight := mat.NewDense(d.Out, d.In, d.Weight.Value)
		dx := NewTensor(shape...)
		grad := mat.NewVecDense(d.In, dx.Data)
		grad.MulVec(weight.T(), mat.NewVecDense(d.Out, dy.Data))
		return dx
	}
}

func (d *Dense) spec() layerSpec {
	return layerSpec{
		Kind:   kindDense,
		Ints:   []int{d.In, d.Out},
		Weight: d.Weight.Value,
		Bias:   d.Bias.Value,
	}
}
