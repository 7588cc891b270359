package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader is the header the invoice application sends its static key in.
const APIKeyHeader = "X-API-KEY"

// APIKey gates management endpoints behind a static API key.
//
// Behavior:
// - 401 when the header is absent (the caller never attempted to authenticate).
// - 403 when the header is present but does not match the configured key.
// The comparison is constant-time so response timing leaks nothing about the key.
func APIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		supplied := c.Get(APIKeyHeader)
		if supplied == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "API key is missing",
			})
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Invalid API key",
			})
		}
		return c.Next()
	}
}
