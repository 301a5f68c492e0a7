package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// The arena exposes each domain store interface through a narrow view, the
// same way the postgres package exposes one store struct per interface.

// Duels returns the DuelStore view.
func (s *Store) Duels() domain.DuelStore { return s }

// Wagers returns the WagerStore view.
func (s *Store) Wagers() domain.WagerStore { return wagerView{s} }

// Claims returns the ClaimStore view.
func (s *Store) Claims() domain.ClaimStore { return s }

// Listings returns the ListingStore view.
func (s *Store) Listings() domain.ListingStore { return listingView{s} }

// Earnings returns the EarningsStore view.
func (s *Store) Earnings() domain.EarningsStore { return earningsView{s} }

// Payouts returns the PayoutStore view.
func (s *Store) Payouts() domain.PayoutStore { return s }

// Params returns the ParamsStore view.
func (s *Store) Params() domain.ParamsStore { return paramsView{s} }

// Audit returns the AuditStore view.
func (s *Store) Audit() domain.AuditStore { return auditView{s} }

type wagerView struct{ s *Store }

func (v wagerView) Place(ctx context.Context, rec domain.WagerRecord) error {
	return v.s.Place(ctx, rec)
}

func (v wagerView) Get(ctx context.Context, duelID uuid.UUID, account domain.Account, option int) (domain.WagerRecord, error) {
	return v.s.GetWager(ctx, duelID, account, option)
}

func (v wagerView) ListRefundable(ctx context.Context, duelID uuid.UUID, limit int) ([]domain.RefundEntry, error) {
	return v.s.ListRefundable(ctx, duelID, limit)
}

type listingView struct{ s *Store }

func (v listingView) Insert(ctx context.Context, l domain.Listing) (int64, error) {
	return v.s.InsertListing(ctx, l)
}

func (v listingView) Get(ctx context.Context, claim domain.ClaimID, index int64) (domain.Listing, error) {
	return v.s.GetListing(ctx, claim, index)
}

func (v listingView) ListByClaim(ctx context.Context, claim domain.ClaimID, opts domain.ListOpts) ([]domain.Listing, error) {
	return v.s.ListByClaim(ctx, claim, opts)
}

func (v listingView) Delete(ctx context.Context, claim domain.ClaimID, index int64) error {
	return v.s.DeleteListing(ctx, claim, index)
}

func (v listingView) ExecuteTrade(ctx context.Context, trade domain.TradeExecution) error {
	return v.s.ExecuteTrade(ctx, trade)
}

type earningsView struct{ s *Store }

func (v earningsView) Balance(ctx context.Context, account domain.Account) (domain.Money, error) {
	return v.s.EarningsBalance(ctx, account)
}

func (v earningsView) Credit(ctx context.Context, account domain.Account, amount domain.Money) error {
	return v.s.Credit(ctx, account, amount)
}

func (v earningsView) Withdraw(ctx context.Context, account domain.Account, amount domain.Money) error {
	return v.s.Withdraw(ctx, account, amount)
}

func (v earningsView) ProtocolFees(ctx context.Context) (domain.Money, error) {
	return v.s.ProtocolFees(ctx)
}

func (v earningsView) CreditProtocolFees(ctx context.Context, amount domain.Money) error {
	return v.s.CreditProtocolFees(ctx, amount)
}

func (v earningsView) WithdrawProtocolFees(ctx context.Context) (domain.Money, error) {
	return v.s.WithdrawProtocolFees(ctx)
}

func (v earningsView) CreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error) {
	return v.s.CreatorFees(ctx, creator)
}

func (v earningsView) CreditCreatorFees(ctx context.Context, creator domain.Account, amount domain.Money) error {
	return v.s.CreditCreatorFees(ctx, creator, amount)
}

func (v earningsView) WithdrawCreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error) {
	return v.s.WithdrawCreatorFees(ctx, creator)
}

type paramsView struct{ s *Store }

func (v paramsView) Load(ctx context.Context) (domain.EngineParams, error) {
	return v.s.LoadParams(ctx)
}

func (v paramsView) Save(ctx context.Context, p domain.EngineParams) error {
	return v.s.SaveParams(ctx, p)
}

type auditView struct{ s *Store }

func (v auditView) Log(ctx context.Context, event string, detail map[string]any) error {
	return v.s.Log(ctx, event, detail)
}

func (v auditView) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return v.s.ListAudit(ctx, opts)
}

// Compile-time interface checks.
var (
	_ domain.DuelStore   = (*Store)(nil)
	_ domain.ClaimStore  = (*Store)(nil)
	_ domain.PayoutStore = (*Store)(nil)

	_ domain.WagerStore    = wagerView{}
	_ domain.ListingStore  = listingView{}
	_ domain.EarningsStore = earningsView{}
	_ domain.ParamsStore   = paramsView{}
	_ domain.AuditStore    = auditView{}
)
