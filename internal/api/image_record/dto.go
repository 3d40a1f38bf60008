package image_record

import (
	"Myagara/internal/entity"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type ImageRecordResponse struct {
	ID           string  `json:"id"`
	Filename     string  `json:"filename"`
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version"`
	ContentHash  string  `json:"content_hash"`
	StorageURL   string  `json:"storage_url"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type ListImageRecordsQuery struct {
	Limit  int `query:"limit" validate:"gte=0,lte=100"`
	Offset int `query:"offset" validate:"gte=0"`
}

type ListImageRecordsResponse struct {
	Data   []ImageRecordResponse `json:"data"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// UpdateImageRecordRequest changes only the fields that are present.
type UpdateImageRecordRequest struct {
	Filename   *string  `json:"filename" validate:"omitempty,min=1,max=255"`
	Label      *string  `json:"label" validate:"omitempty,min=1,max=255"`
	Confidence *float64 `json:"confidence" validate:"omitempty,gte=0,lte=100"`
}

type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

func NewImageRecordResponse(r entity.ImageRecord) ImageRecordResponse {
	return ImageRecordResponse{
		ID:           r.ID,
		Filename:     r.Filename,
		Label:        r.Label,
		Confidence:   r.Confidence,
		ModelVersion: r.ModelVersion,
		ContentHash:  r.ContentHash,
		StorageURL:   r.StorageURL,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
}
