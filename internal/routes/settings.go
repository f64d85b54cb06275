package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/notification"
	"github.com/ghost-swarm/ghost_swarm/internal/settings"
)

// RegisterSettingsRoutes wires user settings and the notification inbox.
func RegisterSettingsRoutes(r fiber.Router, h *settings.Handler, n *notification.Handler) {
	r.Get("/settings", h.Get)
	r.Put("/settings", h.Put)
	r.Get("/notifications", n.List)
	r.Delete("/notifications", n.Clear)
}
