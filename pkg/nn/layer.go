package nn

import (
	"math"
	"math/rand"
)

// Param is a trainable array together with its accumulated gradient.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

func newParam(name string, size int) *Param {
	return &Param{
		Name:  name,
		Value: make([]float64, size),
		Grad:  make([]float64, size),
	}
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Backward propagates the gradient of the loss with respect to a layer's
// output back to its input, accumulating parameter gradients on the way.
type Backward func(dy *Tensor) *Tensor

// Layer is one stage of a Sequential model. Forward must not mutate the
// layer, so a trained model can serve concurrent inference. Train runs the
// same computation with training behaviour (dropout) and returns the
// closure that performs the backward pass for that input.
type Layer interface {
	Forward(x *Tensor) *Tensor
	Train(x *Tensor, rng *rand.Rand) (*Tensor, Backward)
	Params() []*Param
	OutputShape(in []int) ([]int, error)
	spec() layerSpec
}

// glorotUniform matches the default Keras kernel initializer.
func glorotUniform(p *Param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.Value {
		p.Value[i] = (rng.Float64()*2 - 1) * limit
	}
}
