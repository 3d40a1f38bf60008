package nn

import (
	"fmt"
	"math/rand"
)

// MaxPool2D takes the maximum over non-overlapping Size x Size windows.
// Trailing rows and columns that do not fill a window are dropped.
type MaxPool2D struct {
	Size int
}

func NewMaxPool2D(size int) *MaxPool2D {
	return &MaxPool2D{Size: size}
}

func (p *MaxPool2D) OutputShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("maxpool2d expects (C, H, W) input, got %v", in)
	}
	outH, outW := in[1]/p.Size, in[2]/p.Size
	if outH < 1 || outW < 1 {
		return nil, fmt.Errorf("maxpool2d window %d does not fit input %dx%d", p.Size, in[1], in[2])
	}
	return []int{in[0], outH, outW}, nil
}

func (p *MaxPool2D) Params() []*Param { return nil }

func (p *MaxPool2D) Forward(x *Tensor) *Tensor {
	y, _ := p.forward(x)
	return y
}

func (p *MaxPool2D) Train(x *Tensor, _ *rand.Rand) (*Tensor, Backward) {
	y, argmax := p.forward(x)
	shape := append([]int(nil), x.Shape...)
	return y, func(dy *Tensor) *Tensor {
		dx := NewTensor(shape...)
		for i, src := range argmax {
			dx.Data[src] += dy.Data[i]
		}
		return dx
	}
}

func (p *MaxPool2D) forward(x *Tensor) (*Tensor, []int) {
	channels, h, w := x.Shape[0], x.Shape[1], x.Shape[2]
	outH, outW := h/p.Size, w/p.Size
	y := NewTensor(channels, outH, outW)
	argmax := make([]int, len(y.Data))

	for ch := 0; ch < channels; ch++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				best := ch*h*w + oy*p.Size*w + ox*p.Size
				for dy := 0; dy < p.Size; dy++ {
					for dx := 0; dx < p.Size; dx++ {
						idx := ch*h*w + (oy*p.Size+dy)*w + ox*p.Size + dx
						if x.Data[idx] > x.Data[best] {
							best = idx
						}
					}
				}
				out := ch*outH*outW + oy*outW + ox
				y.Data[out] = x.Data[best]
				argmax[out] = best
			}
		}
	}
	return y, argmax
}

func (p *MaxPool2D) spec() layerSpec {
	return layerSpec{Kind: kindMaxPool2D, Ints: []int{p.Size}}
}
