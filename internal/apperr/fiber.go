package apperr

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// FiberErrorHandler renders every error returned by a handler as
// {"error": "..."} with the status picked by Status.
func FiberErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := Status(err)
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{
			"error": PublicMessage(err),
		})
	}
}
