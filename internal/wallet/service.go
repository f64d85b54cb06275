package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

// Service exposes wallet operations.
type Service struct {
	repo            Repository
	startingBalance money.Cents
}

// NewService builds a wallet service. New wallets open with startingBalance.
func NewService(repo Repository, startingBalance money.Cents) *Service {
	return &Service{repo: repo, startingBalance: startingBalance}
}

// GetOrCreate returns the owner's wallet, creating it with the starting balance on
// first use.
func (s *Service) GetOrCreate(ctx context.Context, ownerID string) (Wallet, error) {
	w, err := s.repo.GetByOwner(ctx, ownerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	now := time.Now().UTC()
	w = Wallet{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Balance:   s.startingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		if errors.Is(err, ErrExists) {
			// lost a creation race; the winner's row is authoritative
			return s.repo.GetByOwner(ctx, ownerID)
		}
		return Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

// Get retrieves the owner's wallet.
func (s *Service) Get(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// Credit adds amount to the stored balance with a read-modify-write. Two concurrent
// Credits for the same owner can lose an update; callers serialize per owner.
func (s *Service) Credit(ctx context.Context, ownerID string, amount money.Cents) (Wallet, error) {
	if amount <= 0 {
		return Wallet{}, fmt.Errorf("amount must be positive")
	}
	w, err := s.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return Wallet{}, err
	}
	return s.repo.UpdateBalance(ctx, ownerID, w.Balance+amount)
}

// StartingBalance is the balance every new wallet opens with.
func (s *Service) StartingBalance() money.Cents {
	return s.startingBalance
}
