package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// lossEpsilon clips probabilities before the log, as Keras does.
const lossEpsilon = 1e-7

var ErrBadInput = errors.New("input does not match model input shape")

// Model is a sequential stack of layers over (C, H, W) inputs. After
// construction or loading it is only read by Predict, so one Model can be
// shared by concurrent requests.
type Model struct {
	InputShape  []int
	Layers      []Layer
	outputShape []int
}

// NewSequential checks that every layer accepts the previous layer's output.
func NewSequential(inputShape []int, layers ...Layer) (*Model, error) {
	if len(layers) == 0 {
		return nil, errors.New("model needs at least one layer")
	}
	shape := append([]int(nil), inputShape...)
	for i, l := range layers {
		next, err := l.OutputShape(shape)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.spec().Kind, err)
		}
		shape = next
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("model must end in a vector, got shape %v", shape)
	}
	return &Model{
		InputShape:  append([]int(nil), inputShape...),
		Layers:      layers,
		outputShape: shape,
	}, nil
}

// NumClasses is the size of the output vector.
func (m *Model) NumClasses() int {
	return m.outputShape[0]
}

func (m *Model) Params() []*Param {
	var params []*Param
	for _, l := range m.Layers {
		params = append(params, l.Params()...)
	}
	return params
}

func (m *Model) ZeroGrad() {
	for _, p := range m.Params() {
		p.zeroGrad()
	}
}

// Logits runs inference on a single (C, H, W) sample.
func (m *Model) Logits(x *Tensor) (*Tensor, error) {
	if !sameShape(x.Shape, m.InputShape) {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrBadInput, x.Shape, m.InputShape)
	}
	out := x
	for _, l := range m.Layers {
		out = l.Forward(out)
	}
	return out, nil
}

// Predict returns class probabilities for every sample of an (N, C, H, W)
// batch.
func (m *Model) Predict(batch *Tensor) ([][]float64, error) {
	if len(batch.Shape) != len(m.InputShape)+1 || batch.BatchSize() == 0 {
		return nil, fmt.Errorf("%w: batch shape %v, sample shape %v", ErrBadInput, batch.Shape, m.InputShape)
	}
	probs := make([][]float64, batch.BatchSize())
	for i := range probs {
		logits, err := m.Logits(batch.Sample(i))
		if err != nil {
			return nil, err
		}
		probs[i] = Softmax(logits.Data)
	}
	return probs, nil
}

// TrainStep runs a training forward pass for one sample, then backpropagates
// the sparse categorical cross-entropy loss, adding to the parameter
// gradients. It returns the loss and the predicted probabilities.
func (m *Model) TrainStep(x *Tensor, label int, rng *rand.Rand) (float64, []float64, error) {
	if !sameShape(x.Shape, m.InputShape) {
		return 0, nil, fmt.Errorf("%w: got %v, want %v", ErrBadInput, x.Shape, m.InputShape)
	}
	if label < 0 || label >= m.NumClasses() {
		return 0, nil, fmt.Errorf("label %d outside [0, %d)", label, m.NumClasses())
	}

	backs := make([]Backward, len(m.Layers))
	out := x
	for i, l := range m.Layers {
		out, backs[i] = l.Train(out, rng)
	}

	probs := Softmax(out.Data)
	loss := CrossEntropy(probs, label)

	grad := NewTensor(out.Shape...)
	copy(grad.Data, probs)
	grad.Data[label] -= 1

	for i := len(backs) - 1; i >= 0; i-- {
		grad = backs[i](grad)
	}
	return loss, probs, nil
}

// CrossEntropy is the sparse categorical cross-entropy of one prediction.
func CrossEntropy(probs []float64, label int) float64 {
	p := math.Min(math.Max(probs[label], lossEpsilon), 1-lossEpsilon)
	return -math.Log(p)
}

// Snapshot copies all parameter values.
func (m *Model) Snapshot() [][]float64 {
	params := m.Params()
	snap := make([][]float64, len(params))
	for i, p := range params {
		snap[i] = append([]float64(nil), p.Value...)
	}
	return snap
}

// Restore writes back values taken by Snapshot on the same model.
func (m *Model) Restore(snap [][]float64) error {
	params := m.Params()
	if len(snap) != len(params) {
		return fmt.Errorf("snapshot has %d params, model has %d", len(snap), len(params))
	}
	for i, p := range params {
		if len(snap[i]) != len(p.Value) {
			return fmt.Errorf("snapshot param %d has %d values, want %d", i, len(snap[i]), len(p.Value))
		}
		copy(p.Value, snap[i])
	}
	return nil
}
