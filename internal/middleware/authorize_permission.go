package middleware

import (
	"auction-backend/internal/pkg/constants"
	"auction-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthorizePermission checks the session user's role against constants.PermissionRoles.
// Unconfigured permission -> 500; role not allowed -> 403.
func AuthorizePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		role, _ := user["role"].(string)
		if !constants.IsValidRole(role) {
			return response.Error(c, "Authorization error", fiber.StatusInternalServerError, nil)
		}
		if len(constants.PermissionRoles[permission]) == 0 {
			return response.Error(c, "Permission configuration error", fiber.StatusInternalServerError, nil)
		}
		if !constants.AllowedRole(permission, role) {
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
