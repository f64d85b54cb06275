package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[wallet.OwnerID]; exists {
		return ErrExists
	}
	r.storage[wallet.OwnerID] = wallet
	return nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return wallet, nil
}

func (r *memoryRepository) UpdateBalance(_ context.Context, ownerID string, balance money.Cents) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet, ok := r.storage[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	wallet.Balance = balance
	wallet.UpdatedAt = time.Now().UTC()
	r.storage[ownerID] = wallet
	return wallet, nil
}
