package nn

import (
	"fmt"
	"math/rand"
)

// Architecture describes the plant-disease network: a stack of
// Conv2D -> ReLU -> MaxPool2D -> Dropout blocks, then a hidden Dense layer
// with ReLU and dropout, then the class logits.
type Architecture struct {
	ImageSize    int
	Channels     int
	Filters      []int
	Kernel       int
	Pool         int
	ConvDropout  float64
	DenseUnits   int
	DenseDropout float64
	Classes      int
}

func DefaultArchitecture(imageSize, classes int) Architecture {
	return Architecture{
		ImageSize:    imageSize,
		Channels:     3,
		Filters:      []int{32, 64, 128},
		Kernel:       3,
		Pool:         2,
		ConvDropout:  0.2,
		DenseUnits:   128,
		DenseDropout: 0.5,
		Classes:      classes,
	}
}

// Build initialises a model for a with Glorot-uniform weights drawn from rng.
func Build(a Architecture, rng *rand.Rand) (*Model, error) {
	if a.Classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", a.Classes)
	}

	shape := []int{a.Channels, a.ImageSize, a.ImageSize}
	var layers []Layer
	in := a.Channels
	for _, filters := range a.Filters {
		layers = append(layers,
			NewConv2D(in, filters, a.Kernel, rng),
			NewReLU(),
			NewMaxPool2D(a.Pool),
			NewDropout(a.ConvDropout),
		)
		in = filters
	}

	flat, err := flattenedSize(shape, layers)
	if err != nil {
		return nil, fmt.Errorf("image size %d too small for %d conv blocks: %w", a.ImageSize, len(a.Filters), err)
	}

	layers = append(layers,
		NewFlatten(),
		NewDense(flat, a.DenseUnits, rng),
		NewReLU(),
		NewDropout(a.DenseDropout),
		NewDense(a.DenseUnits, a.Classes, rng),
	)
	return NewSequential(shape, layers...)
}

func flattenedSize(shape []int, layers []Layer) (int, error) {
	for _, l := range layers {
		next, err := l.OutputShape(shape)
		if err != nil {
			return 0, err
		}
		shape = next
	}
	return volume(shape), nil
}
