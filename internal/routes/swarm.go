package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/swarm"
)

// RegisterSwarmRoutes wires the dashboard and swarm controls. Activation is
// idempotency-keyed.
func RegisterSwarmRoutes(r fiber.Router, h *swarm.Handler, idempotency fiber.Handler) {
	r.Get("/dashboard", h.Dashboard)
	r.Get("/agents/leaderboard", h.Leaderboard)

	group := r.Group("/swarm")
	group.Get("/status", h.Status)
	group.Put("/auto", h.SetAuto)
	group.Post("/activate", idempotency, h.Activate)
	group.Delete("/burst", h.CancelBurst)
}
