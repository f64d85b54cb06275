package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/swarm"
	"github.com/ghost-swarm/ghost_swarm/internal/wallet"
)

// RegisterWalletRoutes wires wallet and transaction endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, s *swarm.Handler) {
	r.Get("/wallet", h.Me)
	r.Get("/wallet/reconcile", s.Reconcile)
	r.Get("/transactions", s.Transactions)
}
