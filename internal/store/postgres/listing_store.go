package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelhouse/duelengine/internal/domain"
)

// ListingStore implements domain.ListingStore using PostgreSQL. Listing
// indices come from a per-claim counter table and are never reused.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given connection pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Insert persists a new listing and returns its allocated index.
func (s *ListingStore) Insert(ctx context.Context, l domain.Listing) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin insert listing: %w", err)
	}
	defer tx.Rollback(ctx)

	const allocate = `
		INSERT INTO listing_counters (duel_id, option, next_idx)
		VALUES ($1, $2, 1)
		ON CONFLICT (duel_id, option) DO UPDATE SET
			next_idx = listing_counters.next_idx + 1
		RETURNING next_idx - 1`
	var idx int64
	if err := tx.QueryRow(ctx, allocate, l.Claim.DuelID, l.Claim.Option).Scan(&idx); err != nil {
		return 0, fmt.Errorf("postgres: allocate listing index %s: %w", l.Claim, err)
	}

	const insert = `
		INSERT INTO listings (duel_id, option, idx, seller, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insert,
		l.Claim.DuelID, l.Claim.Option, idx,
		string(l.Seller), int64(l.Quantity), int64(l.UnitPrice), l.CreatedAt,
	); err != nil {
		return 0, fmt.Errorf("postgres: insert listing %s/%d: %w", l.Claim, idx, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit insert listing: %w", err)
	}
	return idx, nil
}

func scanListing(row pgx.Row, claim domain.ClaimID) (domain.Listing, error) {
	var (
		l      domain.Listing
		seller string
		qty    int64
		price  int64
	)
	err := row.Scan(&l.Index, &seller, &qty, &price, &l.CreatedAt)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Claim = claim
	l.Seller = domain.Account(seller)
	l.Quantity = domain.Money(qty)
	l.UnitPrice = domain.Money(price)
	return l, nil
}

// Get retrieves a listing by claim and index.
func (s *ListingStore) Get(ctx context.Context, claim domain.ClaimID, index int64) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT idx, seller, quantity, unit_price, created_at
		FROM listings WHERE duel_id = $1 AND option = $2 AND idx = $3`,
		claim.DuelID, claim.Option, index)
	l, err := scanListing(row, claim)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %s/%d: %w", claim, index, err)
	}
	return l, nil
}

// ListByClaim returns a claim's open listings in index order.
func (s *ListingStore) ListByClaim(ctx context.Context, claim domain.ClaimID, opts domain.ListOpts) ([]domain.Listing, error) {
	query := `
		SELECT idx, seller, quantity, unit_price, created_at
		FROM listings WHERE duel_id = $1 AND option = $2
		ORDER BY idx`
	args := []any{claim.DuelID, claim.Option}
	query, args = paginate(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings %s: %w", claim, err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows, claim)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list listings rows: %w", err)
	}
	return out, nil
}

// Delete removes a listing.
func (s *ListingStore) Delete(ctx context.Context, claim domain.ClaimID, index int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM listings WHERE duel_id = $1 AND option = $2 AND idx = $3`,
		claim.DuelID, claim.Option, index)
	if err != nil {
		return fmt.Errorf("postgres: delete listing %s/%d: %w", claim, index, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExecuteTrade applies a validated multi-listing fill atomically. Every fill
// is re-validated under row locks before anything moves, so a stale trade
// leaves the tables untouched.
func (s *ListingStore) ExecuteTrade(ctx context.Context, trade domain.TradeExecution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin trade %s: %w", trade.ID, err)
	}
	defer tx.Rollback(ctx)

	for _, fill := range trade.Fills {
		var (
			seller string
			qty    int64
		)
		err := tx.QueryRow(ctx,
			`SELECT seller, quantity FROM listings
			WHERE duel_id = $1 AND option = $2 AND idx = $3 FOR UPDATE`,
			trade.Claim.DuelID, trade.Claim.Option, fill.Index,
		).Scan(&seller, &qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("postgres: lock listing %s/%d: %w", trade.Claim, fill.Index, err)
		}
		if fill.Quantity <= 0 || fill.Quantity > domain.Money(qty) {
			return domain.ErrInvalidQuantity
		}

		var escrowed int64
		err = tx.QueryRow(ctx,
			`SELECT escrowed FROM claim_holdings
			WHERE duel_id = $1 AND option = $2 AND account = $3 FOR UPDATE`,
			trade.Claim.DuelID, trade.Claim.Option, seller,
		).Scan(&escrowed)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrInsufficientEscrow
			}
			return fmt.Errorf("postgres: lock seller holding %s: %w", trade.Claim, err)
		}
		if domain.Money(escrowed) < fill.Quantity {
			return domain.ErrInsufficientEscrow
		}
	}

	for _, fill := range trade.Fills {
		const takeClaims = `
			UPDATE claim_holdings SET escrowed = escrowed - $4
			WHERE duel_id = $1 AND option = $2 AND account = $3`
		if _, err := tx.Exec(ctx, takeClaims,
			trade.Claim.DuelID, trade.Claim.Option, string(fill.Seller), int64(fill.Quantity),
		); err != nil {
			return fmt.Errorf("postgres: take escrow %s: %w", trade.Claim, err)
		}

		const giveClaims = `
			INSERT INTO claim_holdings (duel_id, option, account, balance)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (duel_id, option, account) DO UPDATE SET
				balance = claim_holdings.balance + EXCLUDED.balance`
		if _, err := tx.Exec(ctx, giveClaims,
			trade.Claim.DuelID, trade.Claim.Option, string(trade.Buyer), int64(fill.Quantity),
		); err != nil {
			return fmt.Errorf("postgres: credit buyer %s: %w", trade.Claim, err)
		}

		const shrink = `
			UPDATE listings SET quantity = quantity - $4
			WHERE duel_id = $1 AND option = $2 AND idx = $3 AND quantity > $4`
		tag, err := tx.Exec(ctx, shrink,
			trade.Claim.DuelID, trade.Claim.Option, fill.Index, int64(fill.Quantity),
		)
		if err != nil {
			return fmt.Errorf("postgres: shrink listing %s/%d: %w", trade.Claim, fill.Index, err)
		}
		if tag.RowsAffected() == 0 {
			// Exact fill: the listing is exhausted and removed.
			if _, err := tx.Exec(ctx,
				`DELETE FROM listings WHERE duel_id = $1 AND option = $2 AND idx = $3`,
				trade.Claim.DuelID, trade.Claim.Option, fill.Index,
			); err != nil {
				return fmt.Errorf("postgres: delete filled listing %s/%d: %w", trade.Claim, fill.Index, err)
			}
		}

		const paySeller = `
			INSERT INTO earnings (account, balance) VALUES ($1, $2)
			ON CONFLICT (account) DO UPDATE SET
				balance = earnings.balance + EXCLUDED.balance`
		if _, err := tx.Exec(ctx, paySeller, string(fill.Seller), int64(fill.SellerNet)); err != nil {
			return fmt.Errorf("postgres: pay seller %s: %w", fill.Seller, err)
		}
	}

	const payProtocol = `UPDATE protocol_fees SET balance = balance + $1 WHERE singleton`
	if _, err := tx.Exec(ctx, payProtocol, int64(trade.ProtocolFee)); err != nil {
		return fmt.Errorf("postgres: credit protocol fee: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit trade %s: %w", trade.ID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ListingStore = (*ListingStore)(nil)
