package entity

import "time"

// ImageRecord is a classified upload kept for later review.
type ImageRecord struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Label        string    `json:"label"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
	ContentHash  string    `json:"content_hash"`
	StorageURL   string    `json:"storage_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
