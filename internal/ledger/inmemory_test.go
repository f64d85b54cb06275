package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryLedger_RecordAssignsIdentity(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	tx, err := l.Record(ctx, Transaction{OwnerID: "user-1", AgentID: "agent_0", Amount: 125, Source: "NFT Flipping"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if tx.ID == "" || tx.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", tx)
	}
	if tx.Kind != KindEarning {
		t.Fatalf("expected kind %s, got %s", KindEarning, tx.Kind)
	}
}

func TestInMemoryLedger_RejectsInvalid(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	cases := []Transaction{
		{AgentID: "a", Amount: 1},
		{OwnerID: "u", Amount: 1},
		{OwnerID: "u", AgentID: "a", Amount: 0},
	}
	for i, tx := range cases {
		if _, err := l.Record(ctx, tx); err != ErrInvalidTransaction {
			t.Fatalf("case %d: expected ErrInvalidTransaction, got %v", i, err)
		}
	}
}

func TestInMemoryLedger_RecentNewestFirstAndCapped(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		_, err := l.Record(ctx, Transaction{
			OwnerID:   "user-1",
			AgentID:   fmt.Sprintf("agent_%d", i),
			Amount:    1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recent, err := l.Recent(ctx, "user-1", 500)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != MaxRecent {
		t.Fatalf("expected %d, got %d", MaxRecent, len(recent))
	}
	if recent[0].AgentID != "agent_59" {
		t.Fatalf("expected newest first, got %s", recent[0].AgentID)
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
			t.Fatalf("order broken at %d", i)
		}
	}

	few, _ := l.Recent(ctx, "user-1", 3)
	if len(few) != 3 {
		t.Fatalf("expected 3, got %d", len(few))
	}
	none, _ := l.Recent(ctx, "someone-else", 10)
	if len(none) != 0 {
		t.Fatalf("expected no transactions for other owner")
	}
}

func TestInMemoryLedger_SumConcurrent(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Record(ctx, Transaction{OwnerID: "user-1", AgentID: fmt.Sprintf("agent_%d", i), Amount: 50}); err != nil {
				t.Errorf("record %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total, err := l.Sum(ctx, "user-1")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != workers*50 {
		t.Fatalf("expected %d, got %d", workers*50, total)
	}
}
