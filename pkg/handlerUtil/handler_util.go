package handlerUtil

import (
	"Myagara/internal/api/classification"
	"Myagara/internal/api/image_record"
	"Myagara/pkg/classifier"
	"Myagara/pkg/log"
	"Myagara/pkg/response"
	"Myagara/pkg/vision"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, body := h.Resolve(requestID, err, path, operation)
	return c.Status(status).JSON(body)
}

// Resolve maps err to a status and a public body. Raw error text is only
// logged. Server errors carry their category in Code; client errors keep the
// bare {"error": ...} shape.
func (h *ErrorHandler) Resolve(requestID string, err error, path string, operation string) (int, ErrorResponse) {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	respErr := h.classify(err)
	fields["code"] = respErr.Code

	if respErr.Code >= fiber.StatusInternalServerError {
		fields["trace_id"] = log.TraceID(fields)
		fields["kind"] = respErr.Kind
		h.logger.WithFields(fields).Error("Operation failed with server error")
		return respErr.Code, ErrorResponse{Error: respErr.Error(), Code: respErr.Kind}
	}

	h.logger.WithFields(fields).Warn("Operation failed with error response")
	return respErr.Code, ErrorResponse{Error: respErr.Error()}
}

func (h *ErrorHandler) classify(err error) *response.Error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return respErr
	}

	switch {
	case vision.IsDecodeError(err):
		errors.As(classification.ErrUndecodableImage, &respErr)
	case errors.Is(err, classifier.ErrInference):
		errors.As(classification.ErrInferenceFailed, &respErr)
	case errors.Is(err, image_record.ErrRecordNotFound):
		errors.As(image_record.ErrRecordNotFound, &respErr)
	default:
		errors.As(classification.ErrInternalServerError, &respErr)
	}
	return respErr
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
