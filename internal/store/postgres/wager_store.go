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

// WagerStore implements domain.WagerStore using PostgreSQL.
type WagerStore struct {
	pool *pgxpool.Pool
}

// NewWagerStore creates a new WagerStore backed by the given connection pool.
func NewWagerStore(pool *pgxpool.Pool) *WagerStore {
	return &WagerStore{pool: pool}
}

// Place applies a deposit atomically: the option pool grows, the wager record
// accumulates, and an equal claim balance is minted, all in one transaction.
func (s *WagerStore) Place(ctx context.Context, rec domain.WagerRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin place wager: %w", err)
	}
	defer tx.Rollback(ctx)

	// Postgres arrays are 1-based.
	slot := rec.Option + 1

	const growPool = `
		UPDATE duels SET pools[$2] = pools[$2] + $3
		WHERE id = $1 AND $2 BETWEEN 1 AND cardinality(pools)`
	tag, err := tx.Exec(ctx, growPool, rec.DuelID, slot, int64(rec.Amount))
	if err != nil {
		return fmt.Errorf("postgres: grow pool %s/%d: %w", rec.DuelID, rec.Option, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM duels WHERE id = $1)`, rec.DuelID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check duel %s: %w", rec.DuelID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidOption
	}

	const upsertWager = `
		INSERT INTO wagers (duel_id, account, option, amount, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (duel_id, account, option) DO UPDATE SET
			amount     = wagers.amount + EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, upsertWager,
		rec.DuelID, string(rec.Account), rec.Option, int64(rec.Amount), rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert wager %s/%d: %w", rec.DuelID, rec.Option, err)
	}

	const mintClaim = `
		INSERT INTO claim_holdings (duel_id, option, account, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (duel_id, option, account) DO UPDATE SET
			balance = claim_holdings.balance + EXCLUDED.balance`
	if _, err := tx.Exec(ctx, mintClaim,
		rec.DuelID, rec.Option, string(rec.Account), int64(rec.Amount),
	); err != nil {
		return fmt.Errorf("postgres: mint claim %s/%d: %w", rec.DuelID, rec.Option, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit place wager: %w", err)
	}
	return nil
}

// Get retrieves one account's wager record behind one option.
func (s *WagerStore) Get(ctx context.Context, duelID uuid.UUID, account domain.Account, option int) (domain.WagerRecord, error) {
	const query = `
		SELECT duel_id, account, option, amount, updated_at
		FROM wagers WHERE duel_id = $1 AND account = $2 AND option = $3`

	var (
		rec  domain.WagerRecord
		acct string
		amt  int64
	)
	err := s.pool.QueryRow(ctx, query, duelID, string(account), option).Scan(
		&rec.DuelID, &acct, &rec.Option, &amt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WagerRecord{}, domain.ErrNotFound
		}
		return domain.WagerRecord{}, fmt.Errorf("postgres: get wager %s/%d: %w", duelID, option, err)
	}
	rec.Account = domain.Account(acct)
	rec.Amount = domain.Money(amt)
	return rec, nil
}

// ListRefundable returns up to limit depositors with a non-zero remaining
// stake, aggregated across options and ordered by account. Applied refunds
// zero their records, so repeated calls walk the remaining set.
func (s *WagerStore) ListRefundable(ctx context.Context, duelID uuid.UUID, limit int) ([]domain.RefundEntry, error) {
	var optionCount int
	err := s.pool.QueryRow(ctx,
		`SELECT cardinality(options) FROM duels WHERE id = $1`, duelID,
	).Scan(&optionCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get duel %s options: %w", duelID, err)
	}

	const query = `
		SELECT account, option, amount FROM wagers
		WHERE duel_id = $1 AND amount > 0 AND account IN (
			SELECT DISTINCT account FROM wagers
			WHERE duel_id = $1 AND amount > 0
			ORDER BY account LIMIT $2
		)
		ORDER BY account, option`

	rows, err := s.pool.Query(ctx, query, duelID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list refundable %s: %w", duelID, err)
	}
	defer rows.Close()

	var out []domain.RefundEntry
	for rows.Next() {
		var (
			acct   string
			option int
			amt    int64
		)
		if err := rows.Scan(&acct, &option, &amt); err != nil {
			return nil, fmt.Errorf("postgres: scan refundable: %w", err)
		}

		if len(out) == 0 || out[len(out)-1].Account != domain.Account(acct) {
			out = append(out, domain.RefundEntry{
				Account:   domain.Account(acct),
				PerOption: make([]domain.Money, optionCount),
			})
		}
		entry := &out[len(out)-1]
		entry.PerOption[option] += domain.Money(amt)
		entry.Total += domain.Money(amt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list refundable rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.WagerStore = (*WagerStore)(nil)
