package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

var (
	// ErrInvalidTransaction is returned when a record is missing its owner, agent or
	// has a non-positive amount.
	ErrInvalidTransaction = errors.New("invalid transaction")
)

const (
	// MaxRecent caps how many transactions Recent will return.
	MaxRecent = 50
	// KindEarning is the kind stamped on every swarm transaction.
	KindEarning = "earning"
)

// Transaction is an immutable record of one earning event.
type Transaction struct {
	ID        string
	OwnerID   string
	AgentID   string
	Amount    money.Cents
	Source    string
	Kind      string
	CreatedAt time.Time
}

// Ledger defines the contract implemented by transaction stores (e.g. Postgres).
type Ledger interface {
	// Record stores tx and returns it with the store-assigned ID and timestamp.
	Record(ctx context.Context, tx Transaction) (Transaction, error)
	// Recent lists the owner's transactions newest first, at most limit (capped at MaxRecent).
	Recent(ctx context.Context, ownerID string, limit int) ([]Transaction, error)
	// Sum totals the owner's earning amounts.
	Sum(ctx context.Context, ownerID string) (money.Cents, error)
}

func validate(tx Transaction) error {
	if tx.OwnerID == "" || tx.AgentID == "" || tx.Amount <= 0 {
		return ErrInvalidTransaction
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecent {
		return MaxRecent
	}
	return limit
}
