package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/auth"
	"github.com/ghost-swarm/ghost_swarm/internal/identity"
)

// RegisterAuthRoutes wires the public login endpoint.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
}

// RegisterSessionRoutes wires endpoints that need a signed-in caller.
func RegisterSessionRoutes(r fiber.Router, h *auth.Handler, ids *identity.Handler) {
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.Get("/me", ids.Me)
}
