package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	byOwner map[string][]Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests and
// development without Postgres.
func NewInMemory() Ledger {
	return &inMemoryLedger{byOwner: make(map[string][]Transaction)}
}

func (l *inMemoryLedger) Record(_ context.Context, tx Transaction) (Transaction, error) {
	if err := validate(tx); err != nil {
		return Transaction{}, err
	}
	if tx.Kind == "" {
		tx.Kind = KindEarning
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byOwner[tx.OwnerID] = append(l.byOwner[tx.OwnerID], tx)
	return tx, nil
}

func (l *inMemoryLedger) Recent(_ context.Context, ownerID string, limit int) ([]Transaction, error) {
	limit = clampLimit(limit)

	l.mu.RLock()
	all := l.byOwner[ownerID]
	out := make([]Transaction, len(all))
	copy(out, all)
	l.mu.RUnlock()

	// insertion order breaks timestamp ties so equal-time records stay newest first
	idx := make(map[string]int, len(out))
	for i, tx := range out {
		idx[tx.ID] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return idx[out[i].ID] > idx[out[j].ID]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *inMemoryLedger) Sum(_ context.Context, ownerID string) (money.Cents, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total money.Cents
	for _, tx := range l.byOwner[ownerID] {
		if tx.Kind == KindEarning {
			total += tx.Amount
		}
	}
	return total, nil
}
