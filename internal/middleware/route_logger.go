package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// RouteLogger logs each request exit with status, duration, trace ID and session user.
// Errors are rendered here first so the logged status is the one the client receives.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		start := time.Now()
		log.Debug().Str("trace_id", traceID).Str("method", c.Method()).Str("path", c.Path()).Msg("Entering request")
		err := c.Next()

		ev := log.Info()
		if err != nil {
			ev = log.Warn().Err(err)
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
		}
		if id, ok := GetUserID(c); ok {
			ev = ev.Str("user_id", id.String())
		}
		ev.Str("trace_id", traceID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Int64("ms", time.Since(start).Milliseconds()).
			Msg("Exiting request")
		return nil
	}
}
