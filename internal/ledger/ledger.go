// Package ledger provides the in-memory custodial implementation of the
// participation-token Value Ledger. The real ledger is an external
// collaborator; the engine only ever calls Transfer, Mint and BalanceOf.
// This implementation keeps both token kinds' balances at the accounting
// scale and rescales to the token's wire precision only at the query edge.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/duelhouse/duelengine/internal/domain"
)

// Ledger is a custodial balance book for one participation-token kind.
type Ledger struct {
	mu       sync.Mutex
	kind     domain.TokenKind
	balances map[domain.Account]domain.Money
}

// New creates an empty ledger for the given token kind.
func New(kind domain.TokenKind) *Ledger {
	return &Ledger{
		kind:     kind,
		balances: map[domain.Account]domain.Money{},
	}
}

// Kind returns the token kind this ledger accounts in.
func (l *Ledger) Kind() domain.TokenKind { return l.kind }

// Transfer moves amount from one account to another. It fails with
// ErrInsufficientBalance before touching either balance.
func (l *Ledger) Transfer(_ context.Context, from, to domain.Account, amount domain.Money) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: transfer amount %s: %w", amount, domain.ErrInvalidQuantity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return fmt.Errorf("ledger: transfer %s from %s: %w", amount, from, domain.ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Mint credits freshly issued value to an account.
func (l *Ledger) Mint(_ context.Context, to domain.Account, amount domain.Money) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: mint amount %s: %w", amount, domain.ErrInvalidQuantity)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
	return nil
}

// BalanceOf returns the account's balance in accounting units.
func (l *Ledger) BalanceOf(_ context.Context, account domain.Account) (domain.Money, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// WireBalanceOf returns the balance in the token's on-wire smallest unit.
func (l *Ledger) WireBalanceOf(ctx context.Context, account domain.Account) (*big.Int, error) {
	bal, err := l.BalanceOf(ctx, account)
	if err != nil {
		return nil, err
	}
	return domain.WireAmount(bal, l.kind), nil
}

var _ domain.ValueLedger = (*Ledger)(nil)
