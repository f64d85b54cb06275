package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/auth"
)

// JWTAuth returns a middleware that validates access tokens against the live session
// flag. It sets the user_id, email and access_token locals.
func JWTAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := svc.Verify(c.UserContext(), tokenStr)
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		case errors.Is(err, auth.ErrSessionRevoked):
			return fiber.NewError(http.StatusUnauthorized, "session ended")
		case err != nil:
			return fiber.NewError(http.StatusServiceUnavailable, "session store unavailable")
		}

		c.Locals("user_id", claims.Subject)
		c.Locals("email", claims.Email)
		c.Locals("access_token", tokenStr)
		return c.Next()
	}
}
