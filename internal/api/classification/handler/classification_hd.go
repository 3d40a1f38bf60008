package classificationHandler

import (
	"Myagara/internal/api/classification"
	contextPkg "Myagara/pkg/context"
	"Myagara/pkg/handlerUtil"
	"Myagara/pkg/log"
	"fmt"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
	"time"
)

func (h *ClassificationHandler) Classify(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := h.requestContext(contextPkg.FromFiberCtx(ctx))
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
	}).Debug("Processing classification request")

	image, err := h.utils.ReadFormFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", classification.ErrInternalServerError, err), ctx.Path(), "read_form_file")
	}

	prediction, err := h.classificationService.Classify(c, image)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "classify")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, classification.ClassifyResponse{
			Label:      prediction.Label,
			Confidence: prediction.Confidence,
		})
	}
}

func (h *ClassificationHandler) GetModel(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.classificationService.Model())
}

func (h *ClassificationHandler) handleClassifyWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals("X-Request-ID").(string)
	if requestID == "" {
		requestID = "unknown"
	}
	fields := log.Fields{"request_id": requestID}

	h.log.WithFields(fields).Info("Classification WebSocket client connected")
	defer h.log.WithFields(fields).Info("Classification WebSocket client disconnected")

	errHandler := handlerUtil.New(h.log)
	baseCtx := contextPkg.WithRequestID(context.Background(), requestID)

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.WithFields(fields).Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	maxReadTimeout := 60 * time.Second

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.WithFields(fields).Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithFields(fields).Errorf("Classification WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.WithFields(fields).Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var reply interface{}
		ctx, cancel := h.requestContext(baseCtx)
		prediction, err := h.classificationService.Classify(ctx, message)
		cancel()
		if err != nil {
			_, body := errHandler.Resolve(requestID, err, "/classify/ws", "classify_frame")
			reply = body
		} else {
			reply = classification.ClassifyResponse{
				Label:      prediction.Label,
				Confidence: prediction.Confidence,
			}
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			h.log.WithFields(fields).Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.WithFields(fields).Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			h.log.WithFields(fields).Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}
