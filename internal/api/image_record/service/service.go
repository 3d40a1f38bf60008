package imageRecordService

import (
	"Myagara/internal/api/image_record"
	imageRecordRepository "Myagara/internal/api/image_record/repository"
	classificationService "Myagara/internal/api/classification/service"
	"Myagara/internal/entity"
	"Myagara/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// ObjectStore is satisfied by pkg/s3 and pkg/filestore.
type ObjectStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, location string) error
}

type IImageRecordService interface {
	UploadImage(ctx context.Context, filename string, data []byte) (entity.ImageRecord, error)
	GetImageRecordByID(ctx context.Context, id string) (entity.ImageRecord, error)
	ListImageRecords(ctx context.Context, query image_record.ListImageRecordsQuery) ([]entity.ImageRecord, int, error)
	UpdateImageRecord(ctx context.Context, id string, req image_record.UpdateImageRecordRequest) (entity.ImageRecord, error)
	DeleteImageRecord(ctx context.Context, id string) error
	DeleteAllImageRecords(ctx context.Context) (int, error)
}

type imageRecordService struct {
	log                   *logrus.Logger
	imageRecordRepository imageRecordRepository.Repository
	classificationService classificationService.IClassificationService
	store                 ObjectStore
	utils                 utils.IUtils
}

func NewImageRecordService(
	log *logrus.Logger,
	repo imageRecordRepository.Repository,
	cs classificationService.IClassificationService,
	store ObjectStore,
	utils utils.IUtils,
) IImageRecordService {
	return &imageRecordService{
		log:                   log,
		imageRecordRepository: repo,
		classificationService: cs,
		store:                 store,
		utils:                 utils,
	}
}
