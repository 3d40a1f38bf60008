package context

import (
	"context"
	"github.com/gofiber/fiber/v2"
)

type ctxKey string

// RequestIDKey is also the key loggers use for the request ID field.
const RequestIDKey = "request_id"

// localsKey matches the header name under which the request ID middleware
// stores the ID in fiber locals.
const localsKey = "X-Request-ID"

const unknownRequestID = "unknown"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey(RequestIDKey), requestID)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return unknownRequestID
	}
	requestID, ok := ctx.Value(ctxKey(RequestIDKey)).(string)
	if !ok || requestID == "" {
		return unknownRequestID
	}
	return requestID
}

// FromFiberCtx derives a request scoped context from the handler's user
// context, carrying the request ID.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	requestID, ok := c.Locals(localsKey).(string)
	if !ok || requestID == "" {
		requestID = c.Get(localsKey)
	}
	if requestID == "" {
		requestID = unknownRequestID
	}

	return WithRequestID(c.UserContext(), requestID)
}
