package health

import (
	"strconv"
	"time"

	healthsvc "auction-backend/internal/application/health"
	"auction-backend/internal/middleware"
	"auction-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const serviceName = "auction-backend"

// Handlers holds dependencies for health endpoints. Reset is mounted behind RequireAdminKey.
type Handlers struct {
	Deps healthsvc.Deps
}

// Reset clears request stats in Redis and restarts the uptime clock.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	if h.Deps.Rdb == nil {
		return response.Error(c, "Redis is not configured", fiber.StatusServiceUnavailable, nil)
	}
	ctx := c.UserContext()
	keys := []string{
		middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyReqRejected,
		middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq,
	}
	if err := h.Deps.Rdb.Del(ctx, keys...).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	if err := h.Deps.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err(); err != nil {
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}

// JSON returns service status, runtime, traffic, outbox backlog and dependencies.
// Responds 503 when a required dependency is down so load balancers can act on it.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := healthsvc.CollectHealth(c.UserContext(), h.Deps)
	status := fiber.StatusOK
	if result.Status != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"service":      serviceName,
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"outbox":       result.Outbox,
		"dependencies": result.Dependencies,
	})
}
