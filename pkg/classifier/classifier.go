package classifier

import (
	"errors"
	"fmt"
	"math"

	"Myagara/pkg/nn"

	"golang.org/x/net/context"
)

type Backend string

const (
	BackendNative Backend = "native"
	BackendONNX   Backend = "onnx"
	BackendRemote Backend = "remote"
)

// ErrInference wraps every failure that happens after the image decoded
// successfully.
var ErrInference = errors.New("inference failed")

type Prediction struct {
	Label         string    `json:"label"`
	Index         int       `json:"index"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// Classifier is safe for concurrent use. Classify returns a
// *vision.DecodeError for bytes that are not an image and an error wrapping
// ErrInference when the model itself fails.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*Prediction, error)
	Metadata() nn.Metadata
	Close() error
}

// NewPrediction picks the most probable class. Confidence is that probability
// as a percentage rounded to two decimals.
func NewPrediction(probs []float64, classes []string) (*Prediction, error) {
	if len(probs) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrInference)
	}
	if len(probs) != len(classes) {
		return nil, fmt.Errorf("%w: %d outputs for %d classes", ErrInference, len(probs), len(classes))
	}
	idx := nn.ArgMax(probs)
	return &Prediction{
		Label:         classes[idx],
		Index:         idx,
		Confidence:    Percent(probs[idx]),
		Probabilities: probs,
	}, nil
}

// Percent converts a probability to a percentage with two decimals, clamped
// to [0, 100].
func Percent(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	v := math.Round(p*100*100) / 100
	return math.Min(math.Max(v, 0), 100)
}

func inferenceError(err error) error {
	if errors.Is(err, ErrInference) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInference, err)
}
