package storage

import (
	"kitchen-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// POST /api/storage/upload (multipart: file, file_id, file_format, folder)
func UploadHandler(up Uploader, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("file is required")
		}
		if fileHeader.Size == 0 {
			return apperr.Validation("file content is empty")
		}

		key, err := ObjectKey(c.FormValue("folder"), c.FormValue("file_id"), c.FormValue("file_format"))
		if err != nil {
			return err
		}

		file, err := fileHeader.Open()
		if err != nil {
			return apperr.Upstream("opening uploaded file", err)
		}
		defer file.Close()

		url, err := up.Upload(c.UserContext(), key, fileHeader.Header.Get("Content-Type"), file)
		if err != nil {
			return apperr.Upstream("uploading file", err)
		}
		logger.Info("file uploaded", zap.String("key", key), zap.Int64("size", fileHeader.Size))
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"public_url": url})
	}
}
