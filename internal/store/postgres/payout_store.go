package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelhouse/duelengine/internal/domain"
)

// PayoutStore implements domain.PayoutStore using PostgreSQL. Each Apply call
// lands the credits and the cursor advance in one transaction, so a crashed
// continuation either fully happened or never happened.
type PayoutStore struct {
	pool *pgxpool.Pool
}

// NewPayoutStore creates a new PayoutStore backed by the given connection pool.
func NewPayoutStore(pool *pgxpool.Pool) *PayoutStore {
	return &PayoutStore{pool: pool}
}

// Cursor returns the resumption state of a chunked process. It returns
// domain.ErrNotFound until settlement or cancellation arms the cursor.
func (s *PayoutStore) Cursor(ctx context.Context, duelID uuid.UUID, kind domain.CursorKind) (domain.Cursor, error) {
	const query = `
		SELECT next, processed, done FROM payout_cursors
		WHERE duel_id = $1 AND kind = $2`

	var c domain.Cursor
	err := s.pool.QueryRow(ctx, query, duelID, string(kind)).Scan(&c.Next, &c.Processed, &c.Done)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cursor{}, domain.ErrNotFound
		}
		return domain.Cursor{}, fmt.Errorf("postgres: cursor %s/%s: %w", duelID, kind, err)
	}
	return c, nil
}

func saveCursor(ctx context.Context, tx pgx.Tx, duelID uuid.UUID, kind domain.CursorKind, c domain.Cursor) error {
	const query = `
		UPDATE payout_cursors SET next = $3, processed = $4, done = $5
		WHERE duel_id = $1 AND kind = $2`
	tag, err := tx.Exec(ctx, query, duelID, string(kind), c.Next, c.Processed, c.Done)
	if err != nil {
		return fmt.Errorf("postgres: save cursor %s/%s: %w", duelID, kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyPayoutChunk credits one chunk of settlement payouts and advances the
// distribution cursor atomically.
func (s *PayoutStore) ApplyPayoutChunk(ctx context.Context, duelID uuid.UUID, credits []domain.EarningsCredit, next domain.Cursor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin payout chunk %s: %w", duelID, err)
	}
	defer tx.Rollback(ctx)

	const credit = `
		INSERT INTO earnings (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET
			balance = earnings.balance + EXCLUDED.balance`
	for _, c := range credits {
		if _, err := tx.Exec(ctx, credit, string(c.Account), int64(c.Amount)); err != nil {
			return fmt.Errorf("postgres: credit payout %s: %w", c.Account, err)
		}
	}

	if err := saveCursor(ctx, tx, duelID, domain.CursorDistribution, next); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit payout chunk %s: %w", duelID, err)
	}
	return nil
}

// ApplyRefundChunk credits one chunk of refunds, zeroes the refunded wager
// records, burns the matching claims, shrinks the option pools, and advances
// the refund cursor, all atomically.
func (s *PayoutStore) ApplyRefundChunk(ctx context.Context, duelID uuid.UUID, refunds []domain.RefundEntry, next domain.Cursor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin refund chunk %s: %w", duelID, err)
	}
	defer tx.Rollback(ctx)

	const credit = `
		INSERT INTO earnings (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET
			balance = earnings.balance + EXCLUDED.balance`
	const zeroWager = `
		UPDATE wagers SET amount = 0
		WHERE duel_id = $1 AND account = $2 AND option = $3`
	const burnClaims = `
		UPDATE claim_holdings SET balance = 0, escrowed = 0
		WHERE duel_id = $1 AND option = $2 AND account = $3`
	const shrinkPool = `
		UPDATE duels SET pools[$2] = pools[$2] - $3 WHERE id = $1`

	for _, r := range refunds {
		if _, err := tx.Exec(ctx, credit, string(r.Account), int64(r.Total)); err != nil {
			return fmt.Errorf("postgres: credit refund %s: %w", r.Account, err)
		}
		for option, amount := range r.PerOption {
			if amount == 0 {
				continue
			}
			if _, err := tx.Exec(ctx, zeroWager, duelID, string(r.Account), option); err != nil {
				return fmt.Errorf("postgres: zero wager %s/%d: %w", r.Account, option, err)
			}
			if _, err := tx.Exec(ctx, burnClaims, duelID, option, string(r.Account)); err != nil {
				return fmt.Errorf("postgres: burn claims %s/%d: %w", r.Account, option, err)
			}
			if _, err := tx.Exec(ctx, shrinkPool, duelID, option+1, int64(amount)); err != nil {
				return fmt.Errorf("postgres: shrink pool %d: %w", option, err)
			}
		}
	}

	if err := saveCursor(ctx, tx, duelID, domain.CursorRefund, next); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit refund chunk %s: %w", duelID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PayoutStore = (*PayoutStore)(nil)
