package wallet

import (
	"time"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

// Wallet holds the running balance of one user's swarm earnings.
type Wallet struct {
	ID        string
	OwnerID   string
	Balance   money.Cents
	CreatedAt time.Time
	UpdatedAt time.Time
}
