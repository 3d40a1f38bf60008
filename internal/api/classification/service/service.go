package classificationService

import (
	"Myagara/internal/api/classification"
	"Myagara/pkg/classifier"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IClassificationService interface {
	Classify(ctx context.Context, image []byte) (*classifier.Prediction, error)
	Model() classification.ModelResponse
}

type classificationService struct {
	log        *logrus.Logger
	classifier classifier.Classifier
	backend    classifier.Backend
}

func NewClassificationService(
	log *logrus.Logger,
	c classifier.Classifier,
	backend classifier.Backend,
) IClassificationService {
	return &classificationService{
		log:        log,
		classifier: c,
		backend:    backend,
	}
}
