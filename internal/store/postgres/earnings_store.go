package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelhouse/duelengine/internal/domain"
)

// EarningsStore implements domain.EarningsStore using PostgreSQL. Withdrawals
// are compare-and-swap UPDATEs so a balance can never go negative.
type EarningsStore struct {
	pool *pgxpool.Pool
}

// NewEarningsStore creates a new EarningsStore backed by the given connection pool.
func NewEarningsStore(pool *pgxpool.Pool) *EarningsStore {
	return &EarningsStore{pool: pool}
}

// Balance returns an account's withdrawable earnings.
func (s *EarningsStore) Balance(ctx context.Context, account domain.Account) (domain.Money, error) {
	var bal int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM earnings WHERE account = $1`, string(account),
	).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: earnings balance %s: %w", account, err)
	}
	return domain.Money(bal), nil
}

// Credit adds amount to an account's withdrawable earnings.
func (s *EarningsStore) Credit(ctx context.Context, account domain.Account, amount domain.Money) error {
	const query = `
		INSERT INTO earnings (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET
			balance = earnings.balance + EXCLUDED.balance`
	if _, err := s.pool.Exec(ctx, query, string(account), int64(amount)); err != nil {
		return fmt.Errorf("postgres: credit earnings %s: %w", account, err)
	}
	return nil
}

// Withdraw deducts amount from an account's earnings. It returns
// domain.ErrInsufficientBalance when the balance does not cover the amount.
func (s *EarningsStore) Withdraw(ctx context.Context, account domain.Account, amount domain.Money) error {
	const query = `
		UPDATE earnings SET balance = balance - $2
		WHERE account = $1 AND balance >= $2`
	tag, err := s.pool.Exec(ctx, query, string(account), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: withdraw earnings %s: %w", account, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// ProtocolFees returns the accumulated protocol fee balance.
func (s *EarningsStore) ProtocolFees(ctx context.Context) (domain.Money, error) {
	var bal int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM protocol_fees WHERE singleton`,
	).Scan(&bal)
	if err != nil {
		return 0, fmt.Errorf("postgres: protocol fees: %w", err)
	}
	return domain.Money(bal), nil
}

// CreditProtocolFees adds amount to the protocol fee account.
func (s *EarningsStore) CreditProtocolFees(ctx context.Context, amount domain.Money) error {
	const query = `UPDATE protocol_fees SET balance = balance + $1 WHERE singleton`
	if _, err := s.pool.Exec(ctx, query, int64(amount)); err != nil {
		return fmt.Errorf("postgres: credit protocol fees: %w", err)
	}
	return nil
}

// WithdrawProtocolFees zeroes the protocol fee account and returns the amount
// that was withdrawn.
func (s *EarningsStore) WithdrawProtocolFees(ctx context.Context) (domain.Money, error) {
	const query = `
		UPDATE protocol_fees p SET balance = 0
		FROM (SELECT balance FROM protocol_fees WHERE singleton FOR UPDATE) old
		WHERE p.singleton
		RETURNING old.balance`

	var bal int64
	if err := s.pool.QueryRow(ctx, query).Scan(&bal); err != nil {
		return 0, fmt.Errorf("postgres: withdraw protocol fees: %w", err)
	}
	return domain.Money(bal), nil
}

// CreatorFees returns a creator's accumulated fee balance.
func (s *EarningsStore) CreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error) {
	var bal int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM creator_fees WHERE creator = $1`, string(creator),
	).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: creator fees %s: %w", creator, err)
	}
	return domain.Money(bal), nil
}

// CreditCreatorFees adds amount to a creator's fee account.
func (s *EarningsStore) CreditCreatorFees(ctx context.Context, creator domain.Account, amount domain.Money) error {
	const query = `
		INSERT INTO creator_fees (creator, balance) VALUES ($1, $2)
		ON CONFLICT (creator) DO UPDATE SET
			balance = creator_fees.balance + EXCLUDED.balance`
	if _, err := s.pool.Exec(ctx, query, string(creator), int64(amount)); err != nil {
		return fmt.Errorf("postgres: credit creator fees %s: %w", creator, err)
	}
	return nil
}

// WithdrawCreatorFees zeroes a creator's fee account and returns the amount
// that was withdrawn. A creator with no fee account withdraws zero.
func (s *EarningsStore) WithdrawCreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error) {
	const query = `
		UPDATE creator_fees c SET balance = 0
		FROM (SELECT balance FROM creator_fees WHERE creator = $1 FOR UPDATE) old
		WHERE c.creator = $1
		RETURNING old.balance`

	var bal int64
	err := s.pool.QueryRow(ctx, query, string(creator)).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: withdraw creator fees %s: %w", creator, err)
	}
	return domain.Money(bal), nil
}

// Compile-time interface check.
var _ domain.EarningsStore = (*EarningsStore)(nil)
