package middleware

import (
	"auction-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := GetUserID(c); !ok {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) map[string]interface{} {
	m, _ := c.Locals(userLocal).(map[string]interface{})
	return m
}

// GetUserID returns the session user's id when it is a valid uuid.
func GetUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	user := GetUser(c)
	if user == nil {
		return uuid.Nil, false
	}
	s, _ := user["user_id"].(string)
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
