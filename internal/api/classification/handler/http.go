package classificationHandler

import (
	classificationService "Myagara/internal/api/classification/service"
	"Myagara/internal/middleware"
	"Myagara/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
	"time"
)

type ClassificationHandler struct {
	log                   *logrus.Logger
	middleware            middleware.Middleware
	classificationService classificationService.IClassificationService
	utils                 utils.IUtils
	timeout               time.Duration
}

// New builds the handler. timeout bounds each request's context; zero leaves
// requests bounded only by the server's own timeouts.
func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	cs classificationService.IClassificationService,
	utils utils.IUtils,
	timeout time.Duration,
) *ClassificationHandler {
	return &ClassificationHandler{
		classificationService: cs,
		log:                   log,
		middleware:            middleware,
		utils:                 utils,
		timeout:               timeout,
	}
}

func (h *ClassificationHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	classify := srv.Group("/classify")
	classify.Post("/", h.Classify)
	classify.Use("/ws", wsMiddleware)
	classify.Get("/ws", websocket.New(h.handleClassifyWebSocket))

	srv.Get("/model", h.GetModel)
}

// StartRoot mounts the unversioned route existing clients post to.
func (h *ClassificationHandler) StartRoot(root fiber.Router) {
	root.Post("/classify", h.Classify)
}

func (h *ClassificationHandler) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.timeout)
}
