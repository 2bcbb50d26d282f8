package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// requestIDKey is the fiber locals key holding the request id.
const requestIDKey = "requestid"

// RequestLogger logs one structured entry per request with a request id.
func RequestLogger(logger logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()
		c.Locals(requestIDKey, requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		entry := logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"http_method": c.Method(),
			"uri":         c.OriginalURL(),
			"status_code": statusCode,
			"latency_ms":  time.Since(start).Milliseconds(),
			"client_ip":   c.IP(),
		})

		switch {
		case err != nil:
			entry.WithError(err).Error("request processing failed")
		case statusCode >= 500:
			entry.Error("request completed with server error")
		case statusCode >= 400:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}
		return err
	}
}
