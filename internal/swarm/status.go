package swarm

import (
	"context"
	"fmt"

	"github.com/ghost-swarm/ghost_swarm/internal/agent"
	"github.com/ghost-swarm/ghost_swarm/internal/ledger"
	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

// LeaderboardSize is how many agents a dashboard ranks.
const LeaderboardSize = 10

// Status is the control-panel view of a session.
type Status struct {
	AutoMode      bool
	Activating    bool
	Progress      int
	BurstsRunning int
	Agents        int
	Balance       money.Cents
}

// Snapshot is everything a dashboard renders.
type Snapshot struct {
	Balance      money.Cents
	Transactions []ledger.Transaction
	Agents       int
	Leaderboard  []agent.Agent
	Status       Status
}

// Reconciliation compares the stored balance with the one implied by the ledger.
// The stored balance is authoritative; Drift is reported, never corrected.
type Reconciliation struct {
	Stored   money.Cents
	Expected money.Cents
	InMemory money.Cents
	Drift    money.Cents
}

// Consistent reports whether stored and ledger-derived balances agree.
func (r Reconciliation) Consistent() bool { return r.Drift == 0 }

// Status returns the current control-panel state.
func (s *Session) Status() Status {
	activating, progress := s.Activating()
	return Status{
		AutoMode:      s.AutoMode(),
		Activating:    activating,
		Progress:      progress,
		BurstsRunning: s.BurstsRunning(),
		Agents:        s.roster.Len(),
		Balance:       s.Balance(),
	}
}

// Snapshot returns the dashboard state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	balance := s.balance
	txs := s.history.Snapshot()
	s.mu.RUnlock()

	return Snapshot{
		Balance:      balance,
		Transactions: txs,
		Agents:       s.roster.Len(),
		Leaderboard:  s.roster.Leaderboard(LeaderboardSize),
		Status:       s.Status(),
	}
}

// Reconcile reads the stored wallet and the ledger total and reports drift between
// them. Drift appears when a balance update failed after its transaction was stored.
func (s *Session) Reconcile(ctx context.Context) (Reconciliation, error) {
	w, err := s.deps.Wallets.Get(ctx, s.userID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("load wallet: %w", err)
	}
	sum, err := s.deps.Ledger.Sum(ctx, s.userID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("sum transactions: %w", err)
	}
	expected := s.deps.Wallets.StartingBalance() + sum
	return Reconciliation{
		Stored:   w.Balance,
		Expected: expected,
		InMemory: s.Balance(),
		Drift:    w.Balance - expected,
	}, nil
}
