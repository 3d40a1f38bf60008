package classificationService

import (
	"Myagara/internal/api/classification"
	"Myagara/pkg/classifier"
	contextPkg "Myagara/pkg/context"
	"Myagara/pkg/vision"
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

func (s *classificationService) Classify(ctx context.Context, image []byte) (*classifier.Prediction, error) {
	requestID := contextPkg.GetRequestID(ctx)
	start := time.Now()

	prediction, err := s.classifier.Classify(ctx, image)
	if err != nil {
		fields := logrus.Fields{
			"request_id": requestID,
			"bytes":      len(image),
			"error":      err.Error(),
		}
		switch {
		case vision.IsDecodeError(err):
			s.log.WithFields(fields).Warn("Uploaded file is not a decodable image")
			return nil, fmt.Errorf("%w: %v", classification.ErrUndecodableImage, err)
		case errors.Is(err, classifier.ErrInference):
			s.log.WithFields(fields).Error("Inference failed")
			return nil, fmt.Errorf("%w: %v", classification.ErrInferenceFailed, err)
		default:
			s.log.WithFields(fields).Error("Classification failed")
			return nil, fmt.Errorf("%w: %v", classification.ErrInternalServerError, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"label":      prediction.Label,
		"confidence": prediction.Confidence,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Image classified")

	return prediction, nil
}

func (s *classificationService) Model() classification.ModelResponse {
	meta := s.classifier.Metadata()
	return classification.ModelResponse{
		Backend:         string(s.backend),
		ModelVersion:    meta.ModelVersion,
		Classes:         meta.Classes,
		ImageSize:       meta.ImageSize,
		InputShape:      meta.InputShape,
		CreatedAt:       meta.CreatedAt,
		BestValAccuracy: meta.BestValAccuracy,
	}
}
