package rayid

import (
	"gamedata-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Header carries the RayID on requests and responses.
const Header = "X-Ray-ID"

// New returns a middleware that assigns every request a RayID. An incoming X-Ray-ID
// is kept so that callers can correlate their own logs.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Locals(logger.RayIDKey, id)
		c.Set(Header, id)
		return c.Next()
	}
}
