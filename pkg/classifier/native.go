package classifier

import (
	"Myagara/pkg/nn"
	"Myagara/pkg/vision"

	"golang.org/x/net/context"
)

// Native runs a pkg/nn model in process. The model is never written after
// construction.
type Native struct {
	model *nn.Model
	meta  nn.Metadata
}

func NewNative(model *nn.Model, meta nn.Metadata) (*Native, error) {
	if err := meta.Check(model); err != nil {
		return nil, err
	}
	return &Native{model: model, meta: meta}, nil
}

// LoadNative reads an artifact and its metadata sidecar. An empty
// metadataPath means "<modelPath>.json".
func LoadNative(modelPath, metadataPath string) (*Native, error) {
	model, meta, err := nn.LoadArtifact(modelPath, metadataPath)
	if err != nil {
		return nil, err
	}
	return &Native{model: model, meta: meta}, nil
}

func (n *Native) Classify(ctx context.Context, image []byte) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, err := vision.Preprocess(image, n.meta.ImageSize)
	if err != nil {
		return nil, err
	}

	probs, err := n.model.Predict(x)
	if err != nil {
		return nil, inferenceError(err)
	}
	return NewPrediction(probs[0], n.meta.Classes)
}

func (n *Native) Metadata() nn.Metadata {
	return n.meta
}

func (n *Native) Close() error {
	return nil
}
