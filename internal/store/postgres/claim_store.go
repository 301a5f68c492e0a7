package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelhouse/duelengine/internal/domain"
)

// ClaimStore implements domain.ClaimStore using PostgreSQL. Balance moves are
// compare-and-swap UPDATEs guarded by the table's non-negative CHECKs, so no
// interleaving can overdraw a holding.
type ClaimStore struct {
	pool *pgxpool.Pool
}

// NewClaimStore creates a new ClaimStore backed by the given connection pool.
func NewClaimStore(pool *pgxpool.Pool) *ClaimStore {
	return &ClaimStore{pool: pool}
}

// validateClaim rejects claims of unknown duels or out-of-range options.
func (s *ClaimStore) validateClaim(ctx context.Context, claim domain.ClaimID) error {
	var optionCount int
	err := s.pool.QueryRow(ctx,
		`SELECT cardinality(options) FROM duels WHERE id = $1`, claim.DuelID,
	).Scan(&optionCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: validate claim %s: %w", claim, err)
	}
	if claim.Option < 0 || claim.Option >= optionCount {
		return domain.ErrInvalidOption
	}
	return nil
}

// Balance returns an account's free claim balance.
func (s *ClaimStore) Balance(ctx context.Context, claim domain.ClaimID, account domain.Account) (domain.Money, error) {
	if err := s.validateClaim(ctx, claim); err != nil {
		return 0, err
	}

	var bal int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM claim_holdings WHERE duel_id = $1 AND option = $2 AND account = $3`,
		claim.DuelID, claim.Option, string(account),
	).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: claim balance %s: %w", claim, err)
	}
	return domain.Money(bal), nil
}

// Escrowed returns an account's marketplace-escrowed claim balance.
func (s *ClaimStore) Escrowed(ctx context.Context, claim domain.ClaimID, account domain.Account) (domain.Money, error) {
	if err := s.validateClaim(ctx, claim); err != nil {
		return 0, err
	}

	var esc int64
	err := s.pool.QueryRow(ctx,
		`SELECT escrowed FROM claim_holdings WHERE duel_id = $1 AND option = $2 AND account = $3`,
		claim.DuelID, claim.Option, string(account),
	).Scan(&esc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: claim escrow %s: %w", claim, err)
	}
	return domain.Money(esc), nil
}

// Supply returns the total outstanding claim supply, free plus escrowed.
func (s *ClaimStore) Supply(ctx context.Context, claim domain.ClaimID) (domain.Money, error) {
	if err := s.validateClaim(ctx, claim); err != nil {
		return 0, err
	}

	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(balance + escrowed), 0) FROM claim_holdings WHERE duel_id = $1 AND option = $2`,
		claim.DuelID, claim.Option,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: claim supply %s: %w", claim, err)
	}
	return domain.Money(total), nil
}

// Transfer moves free claim balance between accounts.
func (s *ClaimStore) Transfer(ctx context.Context, claim domain.ClaimID, from, to domain.Account, amount domain.Money) error {
	if err := s.validateClaim(ctx, claim); err != nil {
		return err
	}
	if amount <= 0 {
		return domain.ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transfer %s: %w", claim, err)
	}
	defer tx.Rollback(ctx)

	const debit = `
		UPDATE claim_holdings SET balance = balance - $4
		WHERE duel_id = $1 AND option = $2 AND account = $3 AND balance >= $4`
	tag, err := tx.Exec(ctx, debit, claim.DuelID, claim.Option, string(from), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: transfer debit %s: %w", claim, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}

	const credit = `
		INSERT INTO claim_holdings (duel_id, option, account, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (duel_id, option, account) DO UPDATE SET
			balance = claim_holdings.balance + EXCLUDED.balance`
	if _, err := tx.Exec(ctx, credit, claim.DuelID, claim.Option, string(to), int64(amount)); err != nil {
		return fmt.Errorf("postgres: transfer credit %s: %w", claim, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transfer %s: %w", claim, err)
	}
	return nil
}

// Escrow moves amount from an account's free balance into marketplace escrow.
func (s *ClaimStore) Escrow(ctx context.Context, claim domain.ClaimID, account domain.Account, amount domain.Money) error {
	if err := s.validateClaim(ctx, claim); err != nil {
		return err
	}

	const query = `
		UPDATE claim_holdings SET balance = balance - $4, escrowed = escrowed + $4
		WHERE duel_id = $1 AND option = $2 AND account = $3 AND balance >= $4`
	tag, err := s.pool.Exec(ctx, query, claim.DuelID, claim.Option, string(account), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: escrow %s: %w", claim, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

// Release moves amount from marketplace escrow back to the free balance.
func (s *ClaimStore) Release(ctx context.Context, claim domain.ClaimID, account domain.Account, amount domain.Money) error {
	if err := s.validateClaim(ctx, claim); err != nil {
		return err
	}

	const query = `
		UPDATE claim_holdings SET balance = balance + $4, escrowed = escrowed - $4
		WHERE duel_id = $1 AND option = $2 AND account = $3 AND escrowed >= $4`
	tag, err := s.pool.Exec(ctx, query, claim.DuelID, claim.Option, string(account), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: release escrow %s: %w", claim, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientEscrow
	}
	return nil
}

// ListHolders returns holders with a positive free-plus-escrowed balance,
// ordered by account for offset-stable distribution paging.
func (s *ClaimStore) ListHolders(ctx context.Context, claim domain.ClaimID, offset, limit int) ([]domain.ClaimHolding, error) {
	if err := s.validateClaim(ctx, claim); err != nil {
		return nil, err
	}

	const query = `
		SELECT account, balance + escrowed FROM claim_holdings
		WHERE duel_id = $1 AND option = $2 AND balance + escrowed > 0
		ORDER BY account
		LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, claim.DuelID, claim.Option, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list holders %s: %w", claim, err)
	}
	defer rows.Close()

	var out []domain.ClaimHolding
	for rows.Next() {
		var (
			acct string
			bal  int64
		)
		if err := rows.Scan(&acct, &bal); err != nil {
			return nil, fmt.Errorf("postgres: scan holder: %w", err)
		}
		out = append(out, domain.ClaimHolding{
			Claim:   claim,
			Account: domain.Account(acct),
			Balance: domain.Money(bal),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list holders rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.ClaimStore = (*ClaimStore)(nil)
