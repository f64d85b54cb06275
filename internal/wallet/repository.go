package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ghost-swarm/ghost_swarm/internal/money"
)

var (
	// ErrNotFound indicates the owner has no wallet yet.
	ErrNotFound = errors.New("wallet not found")
	// ErrExists indicates a wallet already exists for the owner.
	ErrExists = errors.New("wallet exists")
)

// Repository persists wallets, one per owner.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	GetByOwner(ctx context.Context, ownerID string) (Wallet, error)
	UpdateBalance(ctx context.Context, ownerID string, balance money.Cents) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	walletID, err := uuid.Parse(wallet.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(wallet.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets (id, user_id, balance_cents, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)`, walletID, ownerID, int64(wallet.Balance), wallet.CreatedAt.UTC(), wallet.UpdatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	return err
}

// GetByOwner fetches the wallet belonging to ownerID.
func (r *PostgresRepository) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, fmt.Errorf("owner id: %w", err)
	}
	row := r.db.QueryRow(ctx, `SELECT id, user_id, balance_cents, created_at, updated_at
        FROM wallets WHERE user_id = $1`, owner)
	return scanWallet(row)
}

// UpdateBalance overwrites the stored balance.
func (r *PostgresRepository) UpdateBalance(ctx context.Context, ownerID string, balance money.Cents) (Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return Wallet{}, fmt.Errorf("owner id: %w", err)
	}
	row := r.db.QueryRow(ctx, `UPDATE wallets SET balance_cents = $1, updated_at = $2 WHERE user_id = $3
        RETURNING id, user_id, balance_cents, created_at, updated_at`, int64(balance), time.Now().UTC(), owner)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id, owner          uuid.UUID
		balance            int64
		createdAt, updated time.Time
	)
	if err := row.Scan(&id, &owner, &balance, &createdAt, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return Wallet{
		ID:        id.String(),
		OwnerID:   owner.String(),
		Balance:   money.Cents(balance),
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updated.UTC(),
	}, nil
}
