package imageRecordHandler

import (
	imageRecordService "Myagara/internal/api/image_record/service"
	"Myagara/internal/middleware"
	"Myagara/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"time"
)

type ImageRecordHandler struct {
	log                *logrus.Logger
	validator          *validator.Validate
	middleware         middleware.Middleware
	imageRecordService imageRecordService.IImageRecordService
	utils              utils.IUtils
	timeout            time.Duration
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	imageRecordService imageRecordService.IImageRecordService,
	utils utils.IUtils,
	timeout time.Duration,
) *ImageRecordHandler {
	return &ImageRecordHandler{
		log:                log,
		validator:          validate,
		middleware:         middleware,
		imageRecordService: imageRecordService,
		utils:              utils,
		timeout:            timeout,
	}
}

func (h *ImageRecordHandler) Start(srv fiber.Router) {
	images := srv.Group("/images")

	images.Post("/upload", h.UploadImage)
	images.Get("/", h.ListImageRecords)
	images.Get("/:id", h.GetImageRecordByID)
	images.Put("/:id", h.UpdateImageRecord)
	images.Delete("/:id", h.DeleteImageRecord)
	images.Delete("/", h.DeleteAllImageRecords)
}
