package imageRecordService

import (
	"Myagara/internal/api/image_record"
	"Myagara/internal/entity"
	contextPkg "Myagara/pkg/context"
	"fmt"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"path/filepath"
	"time"
)

// UploadImage classifies the image first, so nothing is stored for bytes the
// model cannot read.
func (s *imageRecordService) UploadImage(ctx context.Context, filename string, data []byte) (entity.ImageRecord, error) {
	requestID := contextPkg.GetRequestID(ctx)

	prediction, err := s.classificationService.Classify(ctx, data)
	if err != nil {
		return entity.ImageRecord{}, err
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate ULID")
		return entity.ImageRecord{}, err
	}

	mtype := mimetype.Detect(data)
	objectName := uuid.NewString() + mtype.Extension()
	location, err := s.store.Upload(ctx, objectName, data, mtype.String())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to store uploaded image")
		return entity.ImageRecord{}, fmt.Errorf("%w: %v", image_record.ErrStoreImage, err)
	}

	if filename == "" {
		filename = objectName
	}
	now := time.Now().UTC()
	record := entity.ImageRecord{
		ID:           id,
		Filename:     filepath.Base(filename),
		Label:        prediction.Label,
		Confidence:   prediction.Confidence,
		ModelVersion: s.classificationService.Model().ModelVersion,
		ContentHash:  s.utils.ContentHash(data),
		StorageURL:   location,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	repo, err := s.imageRecordRepository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		s.removeObject(ctx, location)
		return entity.ImageRecord{}, err
	}

	if err := repo.ImageRecord.CreateImageRecord(ctx, record); err != nil {
		s.removeObject(ctx, location)
		return entity.ImageRecord{}, fmt.Errorf("%w: %v", image_record.ErrCreateRecord, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"id":         record.ID,
		"label":      record.Label,
	}).Info("Image record created")

	return record, nil
}

func (s *imageRecordService) GetImageRecordByID(ctx context.Context, id string) (entity.ImageRecord, error) {
	repo, err := s.imageRecordRepository.NewClient(false)
	if err != nil {
		return entity.ImageRecord{}, err
	}
	return repo.ImageRecord.GetImageRecordByID(ctx, id)
}

func (s *imageRecordService) ListImageRecords(ctx context.Context, query image_record.ListImageRecordsQuery) ([]entity.ImageRecord, int, error) {
	if query.Limit < 0 || query.Offset < 0 || query.Limit > image_record.MaxPageSize {
		return nil, 0, image_record.ErrInvalidQuery
	}
	if query.Limit == 0 {
		query.Limit = image_record.DefaultPageSize
	}

	repo, err := s.imageRecordRepository.NewClient(false)
	if err != nil {
		return nil, 0, err
	}

	records, err := repo.ImageRecord.ListImageRecords(ctx, query.Limit, query.Offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := repo.ImageRecord.CountImageRecords(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *imageRecordService) UpdateImageRecord(ctx context.Context, id string, req image_record.UpdateImageRecordRequest) (entity.ImageRecord, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.imageRecordRepository.NewClient(true)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return entity.ImageRecord{}, err
	}
	defer func() {
		if err := repo.Rollback(); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Debug("Rollback after update")
		}
	}()

	record, err := repo.ImageRecord.GetImageRecordByID(ctx, id)
	if err != nil {
		return entity.ImageRecord{}, err
	}

	if req.Filename != nil {
		record.Filename = *req.Filename
	}
	if req.Label != nil {
		record.Label = *req.Label
	}
	if req.Confidence != nil {
		record.Confidence = *req.Confidence
	}
	record.UpdatedAt = time.Now().UTC()

	if err := repo.ImageRecord.UpdateImageRecord(ctx, record); err != nil {
		return entity.ImageRecord{}, fmt.Errorf("%w: %v", image_record.ErrUpdateRecord, err)
	}
	if err := repo.Commit(); err != nil {
		return entity.ImageRecord{}, fmt.Errorf("%w: %v", image_record.ErrUpdateRecord, err)
	}
	return record, nil
}

func (s *imageRecordService) DeleteImageRecord(ctx context.Context, id string) error {
	repo, err := s.imageRecordRepository.NewClient(false)
	if err != nil {
		return err
	}

	location, err := repo.ImageRecord.DeleteImageRecord(ctx, id)
	if err != nil {
		return err
	}
	s.removeObject(ctx, location)
	return nil
}

func (s *imageRecordService) DeleteAllImageRecords(ctx context.Context) (int, error) {
	repo, err := s.imageRecordRepository.NewClient(false)
	if err != nil {
		return 0, err
	}

	locations, err := repo.ImageRecord.DeleteAllImageRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", image_record.ErrDeleteRecord, err)
	}
	for _, location := range locations {
		s.removeObject(ctx, location)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"deleted":    len(locations),
	}).Info("All image records deleted")

	return len(locations), nil
}

// removeObject deletes a stored upload. The record is already gone or was
// never written, so failures are only logged.
func (s *imageRecordService) removeObject(ctx context.Context, location string) {
	if location == "" {
		return
	}
	if err := s.store.Delete(ctx, location); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"location":   location,
			"error":      err.Error(),
		}).Warn("Failed to delete stored image")
	}
}
