package middleware

import (
	"auction-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards operator routes. The header value is checked against a bcrypt hash;
// an empty hash disables the routes entirely.
func RequireAdminKey(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(AdminKeyHeader)
		if hash == "" || key == "" {
			return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
