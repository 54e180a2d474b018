package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Audit emits structured logs for each request/response lifecycle event,
// tagged with the authenticated caller when there is one.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = httpx.Status(err)
		}
		requestID, _ := c.Locals(RequestIDKey).(string)

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if caller, cerr := httpx.CallerFrom(c); cerr == nil {
			attrs = append(attrs,
				slog.String("caller_id", caller.ID),
				slog.String("owner_id", caller.OwnerID),
				slog.String("role", string(caller.Role)),
			)
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			if status >= fiber.StatusInternalServerError {
				logger.Error("request completed", attrs...)
			} else {
				logger.Warn("request completed", attrs...)
			}
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
