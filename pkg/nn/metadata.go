package nn

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const MetadataSchemaVersion = 1

var ErrMetadataMismatch = errors.New("model metadata does not match model")

// Metadata travels next to a model artifact. Classes is the only source of
// the index to label mapping; serving never hardcodes labels.
type Metadata struct {
	SchemaVersion   int       `json:"schema_version"`
	ModelVersion    string    `json:"model_version"`
	Classes         []string  `json:"classes"`
	ImageSize       int       `json:"image_size"`
	InputShape      []int64   `json:"input_shape"`
	CreatedAt       time.Time `json:"created_at"`
	BestValLoss     float64   `json:"best_val_loss"`
	BestValAccuracy float64   `json:"best_val_accuracy"`
	EpochsRun       int       `json:"epochs_run"`

	// ONNX exports only.
	InputName  string `json:"input_name,omitempty"`
	OutputName string `json:"output_name,omitempty"`
	Logits     bool   `json:"logits,omitempty"`
}

// MetadataPath is the sidecar location used when none is configured.
func MetadataPath(artifactPath string) string {
	return artifactPath + ".json"
}

func SaveMetadata(path string, meta Metadata) error {
	meta.BestValLoss = finite(meta.BestValLoss)
	meta.BestValAccuracy = finite(meta.BestValAccuracy)

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}
	if len(meta.Classes) == 0 {
		return Metadata{}, fmt.Errorf("metadata %s lists no classes", path)
	}
	for i, c := range meta.Classes {
		if strings.TrimSpace(c) == "" {
			return Metadata{}, fmt.Errorf("metadata %s has an empty class name at index %d", path, i)
		}
	}
	return meta, nil
}

// Check rejects metadata whose classes or resolution disagree with the model.
func (meta Metadata) Check(m *Model) error {
	if len(meta.Classes) != m.NumClasses() {
		return fmt.Errorf("%w: %d classes in metadata, %d model outputs", ErrMetadataMismatch, len(meta.Classes), m.NumClasses())
	}
	if len(m.InputShape) != 3 || m.InputShape[1] != meta.ImageSize || m.InputShape[2] != meta.ImageSize {
		return fmt.Errorf("%w: image size %d, model input %v", ErrMetadataMismatch, meta.ImageSize, m.InputShape)
	}
	return nil
}

// LoadArtifact loads a model and its metadata and checks that they agree.
func LoadArtifact(modelPath, metadataPath string) (*Model, Metadata, error) {
	if metadataPath == "" {
		metadataPath = MetadataPath(modelPath)
	}
	m, err := Load(modelPath)
	if err != nil {
		return nil, Metadata{}, err
	}
	meta, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, Metadata{}, err
	}
	if err := meta.Check(m); err != nil {
		return nil, Metadata{}, err
	}
	return m, meta, nil
}

// SaveArtifact writes the model and its metadata sidecar.
func SaveArtifact(m *Model, meta Metadata, modelPath string) error {
	if err := meta.Check(m); err != nil {
		return err
	}
	if err := m.Save(modelPath); err != nil {
		return err
	}
	return SaveMetadata(MetadataPath(modelPath), meta)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
