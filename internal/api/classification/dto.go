package classification

import "time"

type ClassifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type ModelResponse struct {
	Backend         string    `json:"backend"`
	ModelVersion    string    `json:"model_version"`
	Classes         []string  `json:"classes"`
	ImageSize       int       `json:"image_size"`
	InputShape      []int64   `json:"input_shape,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	BestValAccuracy float64   `json:"best_val_accuracy,omitempty"`
}
