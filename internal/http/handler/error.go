package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// envelope is the response body shared by every endpoint: status is
// "success" or "error", data carries payloads, error carries safe detail.
type envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func writeSuccess(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// writeError writes a standardized JSON error response. Detail is optional
// and must already be safe for clients (no storage paths, no SQL).
func writeError(c *fiber.Ctx, status int, message string, detail ...string) error {
	res := envelope{
		Status:    "error",
		Message:   message,
		RequestID: requestIDFromCtx(c),
	}
	if len(detail) > 0 {
		res.Error = detail[0]
	}
	return c.Status(status).JSON(res)
}

// translateServiceError maps registry error kinds to HTTP statuses
// deterministically. Unclassified errors collapse to 500 with a generic
// message so internals never leak.
func translateServiceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrIDRequired), errors.Is(err, service.ErrEmptyUpload):
		return writeError(c, fiber.StatusBadRequest, fallback, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "Document not found")
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrBlobMissing):
		// Invalid and deleted-document tokens are deliberately
		// indistinguishable; a missing blob is reported the same way the
		// original file-not-found path was.
		return writeError(c, fiber.StatusNotFound, accessErrorMessage(err))
	case errors.Is(err, service.ErrTokenExpired):
		return writeError(c, fiber.StatusForbidden, "Access token has expired")
	case errors.Is(err, service.ErrConflict):
		return writeError(c, fiber.StatusConflict, "Access token conflict, retry the operation")
	default:
		return writeError(c, fiber.StatusInternalServerError, fallback)
	}
}

func accessErrorMessage(err error) string {
	if errors.Is(err, service.ErrBlobMissing) {
		return "File not found"
	}
	return "Invalid access token"
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "Bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "Resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "Method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "Uploaded file is too large")
		default:
			return writeError(c, status, "Internal server error")
		}
	}
}
