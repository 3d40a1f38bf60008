package imageRecordHandler

import (
	"Myagara/internal/api/classification"
	"Myagara/internal/api/image_record"
	contextPkg "Myagara/pkg/context"
	"Myagara/pkg/handlerUtil"
	"Myagara/pkg/log"
	"fmt"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *ImageRecordHandler) requestContext(ctx *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(contextPkg.FromFiberCtx(ctx))
	}
	return context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
}

func (h *ImageRecordHandler) UploadImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := h.requestContext(ctx)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("image")
	if err != nil {
		return errHandler.Handle(ctx, requestID, classification.ErrMissingImage, ctx.Path(), "form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing image upload request")

	data, err := h.utils.ReadFormFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", classification.ErrInternalServerError, err), ctx.Path(), "read_form_file")
	}

	record, err := h.imageRecordService.UploadImage(c, file.Filename, data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_image")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, image_record.NewImageRecordResponse(record))
	}
}

func (h *ImageRecordHandler) ListImageRecords(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := h.requestContext(ctx)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var query image_record.ListImageRecordsQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	records, total, err := h.imageRecordService.ListImageRecords(c, query)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_image_records")
	}

	if query.Limit == 0 {
		query.Limit = image_record.DefaultPageSize
	}
	response := image_record.ListImageRecordsResponse{
		Data:   make([]image_record.ImageRecordResponse, 0, len(records)),
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	for _, record := range records {
		response.Data = append(response.Data, image_record.NewImageRecordResponse(record))
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
	}
}

func (h *ImageRecordHandler) GetImageRecordByID(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := h.requestContext(ctx)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	record, err := h.imageRecordService.GetImageRecordByID(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_image_record")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, image_record.NewImageRecordResponse(record))
	}
}

func (h *ImageRecordHandler) UpdateImageRecord(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := h.requestContext(ctx)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req image_record.UpdateImageRecordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	record, err := h.imageRecordService.UpdateImageRecord(c, ctx.Params("id"), req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "update_image_record")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, image_record.NewImageRecordResponse(record))
	}
}

func (h *ImageRecordHandler) DeleteImageRecord(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := h.requestContext(ctx)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	if err := h.imageRecordService.DeleteImageRecord(c, ctx.Params("id")); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_image_record")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
	}
}

func (h *ImageRecordHandler) DeleteAllImageRecords(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := h.requestContext(ctx)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	deleted, err := h.imageRecordService.DeleteAllImageRecords(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "delete_all_image_records")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, image_record.DeleteAllResponse{Deleted: deleted})
	}
}
