package middleware

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request stats, shared with the health handlers.
const (
	KeyReqTotal    = "health:auctions:req_total"
	KeyReqErrors   = "health:auctions:req_errors"
	KeyReqRejected = "health:auctions:req_rejected"
	KeyResTime     = "health:auctions:res_time_total"
	KeyResCount    = "health:auctions:res_count"
	KeyStartTime   = "health:auctions:start_time"
	KeyLastReq     = "health:auctions:last_request"
)

// HealthMarker records request stats in Redis (skip /health*, favicon). Rejections are 4xx
// answers such as lost bid races; errors are 5xx.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if rdb == nil || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		lastReq, _ := json.Marshal(map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		})
		ctx := c.UserContext()
		pipe := rdb.Pipeline()
		pipe.Set(ctx, KeyLastReq, lastReq, 0)
		pipe.Incr(ctx, KeyReqTotal)
		_, _ = pipe.Exec(ctx)

		err := c.Next()
		if err != nil {
			// let the error handler settle the status before counting
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
			err = nil
		}

		status := c.Response().StatusCode()
		pipe = rdb.Pipeline()
		pipe.Incr(ctx, KeyResCount)
		pipe.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds()))
		switch {
		case status >= 500:
			pipe.Incr(ctx, KeyReqErrors)
		case status >= 400:
			pipe.Incr(ctx, KeyReqRejected)
		}
		_, _ = pipe.Exec(ctx)
		return err
	}
}
