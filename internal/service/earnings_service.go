package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duelhouse/duelengine/internal/domain"
)

// EarningsService is the pull side of the earnings ledger: accounts
// withdraw settled winnings, refunds, and marketplace proceeds; the owner
// and creators withdraw their accrued fees. Balances only grow through
// completed distribution, refund, or trade credits.
type EarningsService struct {
	earnings domain.EarningsStore
	ledger   domain.ValueLedger
	params   domain.ParamsProvider
	logger   *slog.Logger
}

// NewEarningsService creates an EarningsService with all required
// dependencies.
func NewEarningsService(
	earnings domain.EarningsStore,
	ledger domain.ValueLedger,
	params domain.ParamsProvider,
	logger *slog.Logger,
) *EarningsService {
	return &EarningsService{
		earnings: earnings,
		ledger:   ledger,
		params:   params,
		logger:   logger.With(slog.String("component", "earnings")),
	}
}

// Balance returns an account's withdrawable earnings.
func (s *EarningsService) Balance(ctx context.Context, account domain.Account) (domain.Money, error) {
	bal, err := s.earnings.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("earnings: balance of %s: %w", account, err)
	}
	return bal, nil
}

// Withdraw moves amount from the account's withdrawable earnings to its
// external value-ledger balance. The decrement is compare-and-swap, so an
// over-withdrawal fails before any value moves.
func (s *EarningsService) Withdraw(ctx context.Context, account domain.Account, amount domain.Money) error {
	if err := s.earnings.Withdraw(ctx, account, amount); err != nil {
		return fmt.Errorf("earnings: withdraw %s for %s: %w", amount, account, err)
	}
	if err := s.ledger.Transfer(ctx, domain.CustodyAccount, account, amount); err != nil {
		// Restore the ledger entry so the failed call has no effect.
		_ = s.earnings.Credit(ctx, account, amount)
		return fmt.Errorf("earnings: transfer %s to %s: %w", amount, account, err)
	}

	s.logger.InfoContext(ctx, "earnings: withdrawal",
		slog.String("account", account.String()),
		slog.String("amount", amount.String()),
	)
	return nil
}

// ProtocolFees returns the accrued, not-yet-withdrawn protocol fees.
func (s *EarningsService) ProtocolFees(ctx context.Context) (domain.Money, error) {
	fees, err := s.earnings.ProtocolFees(ctx)
	if err != nil {
		return 0, fmt.Errorf("earnings: protocol fees: %w", err)
	}
	return fees, nil
}

// WithdrawProtocolFees zeroes the protocol fee account and pays it out to
// the configured protocol address.
func (s *EarningsService) WithdrawProtocolFees(ctx context.Context) (domain.Money, error) {
	to := s.params.Params().ProtocolAccount
	if to == "" {
		return 0, fmt.Errorf("earnings: protocol account unset: %w", domain.ErrInvalidAccount)
	}

	amount, err := s.earnings.WithdrawProtocolFees(ctx)
	if err != nil {
		return 0, fmt.Errorf("earnings: withdraw protocol fees: %w", err)
	}
	if amount == 0 {
		return 0, nil
	}
	if err := s.ledger.Transfer(ctx, domain.CustodyAccount, to, amount); err != nil {
		_ = s.earnings.CreditProtocolFees(ctx, amount)
		return 0, fmt.Errorf("earnings: transfer protocol fees: %w", err)
	}

	s.logger.InfoContext(ctx, "earnings: protocol fees withdrawn",
		slog.String("amount", amount.String()),
		slog.String("to", to.String()),
	)
	return amount, nil
}

// CreatorFees returns a creator's accrued fee balance.
func (s *EarningsService) CreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error) {
	fees, err := s.earnings.CreatorFees(ctx, creator)
	if err != nil {
		return 0, fmt.Errorf("earnings: creator fees of %s: %w", creator, err)
	}
	return fees, nil
}

// WithdrawCreatorFees pays out a creator's whole accrued fee balance.
func (s *EarningsService) WithdrawCreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error) {
	amount, err := s.earnings.WithdrawCreatorFees(ctx, creator)
	if err != nil {
		return 0, fmt.Errorf("earnings: withdraw creator fees: %w", err)
	}
	if amount == 0 {
		return 0, nil
	}
	if err := s.ledger.Transfer(ctx, domain.CustodyAccount, creator, amount); err != nil {
		_ = s.earnings.CreditCreatorFees(ctx, creator, amount)
		return 0, fmt.Errorf("earnings: transfer creator fees: %w", err)
	}
	return amount, nil
}
