package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Conv2D is a stride-1 convolution without padding ("valid"). Weights are
// stored as a Filters x (InChannels*Kernel*Kernel) matrix so the forward pass
// is a single matrix product over the im2col expansion of the input.
type Conv2D struct {
	InChannels int
	Filters    int
	Kernel     int
	Weight     *Param
	Bias       *Param
}

func NewConv2D(inChannels, filters, kernel int, rng *rand.Rand) *Conv2D {
	c := &Conv2D{
		InChannels: inChannels,
		Filters:    filters,
		Kernel:     kernel,
		Weight:     newParam("conv2d.weight", filters*inChannels*kernel*kernel),
		Bias:       newParam("conv2d.bias", filters),
	}
	if rng != nil {
		glorotUniform(c.Weight, inChannels*kernel*kernel, filters*kernel*kernel, rng)
	}
	return c
}

func (c *Conv2D) OutputShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("conv2d expects (C, H, W) input, got %v", in)
	}
	if in[0] != c.InChannels {
		return nil, fmt.Errorf("conv2d expects %d channels, got %d", c.InChannels, in[0])
	}
	outH, outW := in[1]-c.Kernel+1, in[2]-c.Kernel+1
	if outH < 1 || outW < 1 {
		return nil, fmt.Errorf("conv2d kernel %d does not fit input %dx%d", c.Kernel, in[1], in[2])
	}
	return []int{c.Filters, outH, outW}, nil
}

func (c *Conv2D) Params() []*Param {
	return []*Param{c.Weight, c.Bias}
}

func (c *Conv2D) Forward(x *Tensor) *Tensor {
	y, _ := c.forward(x)
	return y
}

func (c *Conv2D) Train(x *Tensor, _ *rand.Rand) (*Tensor, Backward) {
	y, cols := c.forward(x)
	h, w := x.Shape[1], x.Shape[2]
	outH, outW := y.Shape[1], y.Shape[2]
	rows := c.InChannels * c.Kernel * c.Kernel
	positions := outH * outW

	return y, func(dy *Tensor) *Tensor {
		dOut := mat.NewDense(c.Filters, positions, dy.Data)

		var dW mat.Dense
		dW.Mul(dOut, cols.T())
		floats.Add(c.Weight.Grad, dW.RawMatrix().Data)

		for f := 0; f < c.Filters; f++ {
			c.Bias.Grad[f] += floats.Sum(dy.Data[f*positions : (f+1)*positions])
		}

		weight := mat.NewDense(c.Filters, rows, c.Weight.Value)
		dCols := mat.NewDense(rows, positions, nil)
		dCols.Mul(weight.T(), dOut)

		return col2im(dCols.RawMatrix().Data, c.InChannels, h, w, c.Kernel)
	}
}

func (c *Conv2D) forward(x *Tensor) (*Tensor, *mat.Dense) {
	h, w := x.Shape[1], x.Shape[2]
	outH, outW := h-c.Kernel+1, w-c.Kernel+1
	rows := c.InChannels * c.Kernel * c.Kernel
	positions := outH * outW

	cols := mat.NewDense(rows, positions, im2col(x.Data, c.InChannels, h, w, c.Kernel))
	weight := mat.NewDense(c.Filters, rows, c.Weight.Value)

	y := NewTensor(c.Filters, outH, outW)
	out := mat.NewDense(c.Filters, positions, y.Data)
	out.Mul(weight, cols)

	for f := 0; f < c.Filters; f++ {
		floats.AddConst(c.Bias.Value[f], y.Data[f*positions:(f+1)*positions])
	}
	return y, cols
}

func (c *Conv2D) spec() layerSpec {
	return layerSpec{
		Kind:   kindConv2D,
		Ints:   []int{c.InChannels, c.Filters, c.Kernel},
		Weight: c.Weight.Value,
		Bias:   c.Bias.Value,
	}
}

// im2col lays out every kernel-sized patch of a (C, H, W) input as a column.
// Row r = ch*k*k + ki*k + kj, column p = oy*outW + ox.
func im2col(x []float64, channels, h, w, k int) []float64 {
	outH, outW := h-k+1, w-k+1
	positions := outH * outW
	cols := make([]float64, channels*k*k*positions)
	for ch := 0; ch < channels; ch++ {
		for ki := 0; ki < k; ki++ {
			for kj := 0; kj < k; kj++ {
				row := (ch*k*k + ki*k + kj) * positions
				for oy := 0; oy < outH; oy++ {
					src := ch*h*w + (oy+ki)*w + kj
					copy(cols[row+oy*outW:row+(oy+1)*outW], x[src:src+outW])
				}
			}
		}
	}
	return cols
}

// col2im is the adjoint of im2col: it sums column gradients back into the
// input positions they were read from.
func col2im(cols []float64, channels, h, w, k int) *Tensor {
	outH, outW := h-k+1, w-k+1
	positions := outH * outW
	dx := NewTensor(channels, h, w)
	for ch := 0; ch < channels; ch++ {
		for ki := 0; ki < k; ki++ {
			for kj := 0; kj < k; kj++ {
				row := (ch*k*k + ki*k + kj) * positions
				for oy := 0; oy < outH; oy++ {
					dst := ch*h*w + (oy+ki)*w + kj
					floats.Add(dx.Data[dst:dst+outW], cols[row+oy*outW:row+(oy+1)*outW])
				}
			}
		}
	}
	return dx
}
