package middleware

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Sessions are issued by the marketplace's auth service; this service only reads them.
const (
	SessionCookieName  = "auction.sid"
	SessionRedisPrefix = "session:"
	sessionMaxAge      = 24 * time.Hour
)

// SessionUser is the shape stored in the session under "user".
type SessionUser struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Session loads the session named by the cookie from Redis and puts its user in Locals.
// Activity slides the session TTL forward.
func Session(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(userLocal, nil)
		sessionID := c.Cookies(SessionCookieName)
		// cookie may be "s:id" or "s:id.signature"; use first part as id
		if strings.HasPrefix(sessionID, "s:") {
			sessionID = strings.SplitN(sessionID[2:], ".", 2)[0]
		}
		if sessionID == "" || rdb == nil {
			return c.Next()
		}

		key := SessionRedisPrefix + sessionID
		b, err := rdb.Get(c.UserContext(), key).Bytes()
		if err != nil {
			return c.Next()
		}
		var data struct {
			User *SessionUser `json:"user"`
		}
		if err := json.Unmarshal(b, &data); err != nil || data.User == nil {
			return c.Next()
		}
		c.Locals(userLocal, map[string]interface{}{
			"user_id": data.User.UserID,
			"role":    data.User.Role,
		})
		rdb.Expire(c.UserContext(), key, sessionMaxAge)
		return c.Next()
	}
}
