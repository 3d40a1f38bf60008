package dataset

import (
	"math/rand"

	"Myagara/pkg/nn"
	"Myagara/pkg/vision"
)

// Example is one network input and its label.
type Example struct {
	X     *nn.Tensor
	Label int
}

// Batches splits samples into consecutive batches of at most size. When rng
// is non-nil the order is shuffled first; samples itself is left untouched.
func Batches(samples []Sample, size int, rng *rand.Rand) [][]Sample {
	if size <= 0 {
		size = len(samples)
	}
	order := append([]Sample(nil), samples...)
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	var batches [][]Sample
	for start := 0; start < len(order); start += size {
		end := start + size
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, order[start:end])
	}
	return batches
}

// Examples turns a batch into tensors, augmenting each image when aug is
// enabled and rng is non-nil.
func (d *Dataset) Examples(batch []Sample, aug Augmentation, rng *rand.Rand) ([]Example, error) {
	out := make([]Example, 0, len(batch))
	for _, s := range batch {
		img, err := d.Image(s)
		if err != nil {
			return nil, err
		}
		if rng != nil && aug.Enabled() {
			img = aug.Apply(img, rng)
		}
		out = append(out, Example{X: vision.ToTensor(img), Label: s.Label})
	}
	return out, nil
}
