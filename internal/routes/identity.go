package routes

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/identity"
	"github.com/ghost-swarm/ghost_swarm/internal/wallet"
)

// RegisterIdentityRoutes wires registration and auto-provisions the new user's wallet.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, wallets *wallet.Service, logger *slog.Logger) {
	provision := func(ctx context.Context, user identity.User) {
		w, err := wallets.GetOrCreate(ctx, user.ID)
		if err != nil {
			// the wallet is created lazily on first dashboard load instead
			logger.Warn("identity.register wallet provisioning failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
			return
		}
		logger.Info("identity.register completed",
			slog.String("user_id", user.ID),
			slog.String("wallet_id", w.ID),
			slog.String("balance", w.Balance.String()),
		)
	}
	r.Post("/auth/register", identity.NewHandler(ids, provision).Register)
}
