package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

// PostgresLedger persists earning transactions in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Record inserts the transaction and returns the row as stored.
func (l *PostgresLedger) Record(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := validate(tx); err != nil {
		return Transaction{}, err
	}
	ownerID, err := uuid.Parse(tx.OwnerID)
	if err != nil {
		return Transaction{}, fmt.Errorf("owner id: %w", err)
	}
	if tx.Kind == "" {
		tx.Kind = KindEarning
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO transactions (id, user_id, agent_id, amount_cents, source, kind, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`
	var (
		id        uuid.UUID
		createdAt time.Time
	)
	if err := l.db.QueryRow(ctx, query, uuid.New(), ownerID, tx.AgentID, int64(tx.Amount), tx.Source, tx.Kind, tx.CreatedAt.UTC()).
		Scan(&id, &createdAt); err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}

// Recent lists the owner's transactions ordered newest first.
func (l *PostgresLedger) Recent(ctx context.Context, ownerID string, limit int) ([]Transaction, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("owner id: %w", err)
	}
	const query = `SELECT id, user_id, agent_id, amount_cents, source, kind, created_at
        FROM transactions WHERE user_id = $1
        ORDER BY created_at DESC, seq DESC
        LIMIT $2`
	rows, err := l.db.Query(ctx, query, owner, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			id, user  uuid.UUID
			amount    int64
			createdAt time.Time
			tx        Transaction
		)
		if err := rows.Scan(&id, &user, &tx.AgentID, &amount, &tx.Source, &tx.Kind, &createdAt); err != nil {
			return nil, err
		}
		tx.ID = id.String()
		tx.OwnerID = user.String()
		tx.Amount = money.Cents(amount)
		tx.CreatedAt = createdAt.UTC()
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Sum returns the total of the owner's earning amounts.
func (l *PostgresLedger) Sum(ctx context.Context, ownerID string) (money.Cents, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return 0, fmt.Errorf("owner id: %w", err)
	}
	const query = `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE user_id = $1 AND kind = $2`
	var total int64
	if err := l.db.QueryRow(ctx, query, owner, KindEarning).Scan(&total); err != nil {
		return 0, err
	}
	return money.Cents(total), nil
}
