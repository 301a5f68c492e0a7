package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// MarketplaceService lets claim holders trade outcome claims before
// resolution: escrowed sell listings, seller-only cancellation, and a buy
// that fills across listings atomically with immediate value settlement.
type MarketplaceService struct {
	duels    domain.DuelStore
	claims   domain.ClaimStore
	listings domain.ListingStore
	ledger   domain.ValueLedger
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	params   domain.ParamsProvider
	logger   *slog.Logger
}

// NewMarketplaceService creates a MarketplaceService with all required
// dependencies.
func NewMarketplaceService(
	duels domain.DuelStore,
	claims domain.ClaimStore,
	listings domain.ListingStore,
	ledger domain.ValueLedger,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	params domain.ParamsProvider,
	logger *slog.Logger,
) *MarketplaceService {
	return &MarketplaceService{
		duels:    duels,
		claims:   claims,
		listings: listings,
		ledger:   ledger,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		params:   params,
		logger:   logger.With(slog.String("component", "marketplace")),
	}
}

// Sell escrows quantity claims and creates an independently indexed listing
// at the given unit price. Listings are never merged.
func (s *MarketplaceService) Sell(ctx context.Context, seller domain.Account, claim domain.ClaimID, quantity, unitPrice domain.Money, asOf time.Time) (domain.Listing, error) {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(claim.DuelID), lockTTL)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("marketplace: lock duel %s: %w", claim.DuelID, err)
	}
	defer unlock()

	if err := s.requireOpen(ctx, claim.DuelID); err != nil {
		return domain.Listing{}, err
	}
	if quantity <= 0 {
		return domain.Listing{}, fmt.Errorf("marketplace: sell quantity %s: %w", quantity, domain.ErrInvalidQuantity)
	}
	if unitPrice <= 0 {
		return domain.Listing{}, fmt.Errorf("marketplace: unit price %s: %w", unitPrice, domain.ErrOutOfBounds)
	}

	if err := s.claims.Escrow(ctx, claim, seller, quantity); err != nil {
		return domain.Listing{}, fmt.Errorf("marketplace: escrow claims: %w", err)
	}

	listing := domain.Listing{
		Claim:     claim,
		Seller:    seller,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		CreatedAt: asOf,
	}
	index, err := s.listings.Insert(ctx, listing)
	if err != nil {
		_ = s.claims.Release(ctx, claim, seller, quantity)
		return domain.Listing{}, fmt.Errorf("marketplace: insert listing: %w", err)
	}
	listing.Index = index

	s.publish(ctx, map[string]any{
		"event":      "listing_created",
		"claim":      claim.String(),
		"index":      index,
		"seller":     seller.String(),
		"quantity":   quantity.String(),
		"unit_price": unitPrice.String(),
	})
	return listing, nil
}

// CancelSell deletes a listing and returns its escrow to the seller. Only
// the listing's seller may cancel it.
func (s *MarketplaceService) CancelSell(ctx context.Context, caller domain.Account, claim domain.ClaimID, index int64) error {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(claim.DuelID), lockTTL)
	if err != nil {
		return fmt.Errorf("marketplace: lock duel %s: %w", claim.DuelID, err)
	}
	defer unlock()

	listing, err := s.listings.Get(ctx, claim, index)
	if err != nil {
		return fmt.Errorf("marketplace: get listing %s/%d: %w", claim, index, err)
	}
	if listing.Seller != caller {
		return fmt.Errorf("marketplace: cancel listing %s/%d by %s: %w", claim, index, caller, domain.ErrUnauthorized)
	}

	if err := s.listings.Delete(ctx, claim, index); err != nil {
		return fmt.Errorf("marketplace: delete listing %s/%d: %w", claim, index, err)
	}
	if err := s.claims.Release(ctx, claim, listing.Seller, listing.Quantity); err != nil {
		return fmt.Errorf("marketplace: release escrow: %w", err)
	}
	return nil
}

// Buy fills the requested quantities across the given listings in order,
// settling value immediately: the buyer pays gross plus the buyer fee, each
// seller's net lands in their earnings, and both fee cuts accrue to the
// protocol. The whole fill is validated before anything moves; an
// underfunded or inconsistent request has no effect.
func (s *MarketplaceService) Buy(ctx context.Context, buyer domain.Account, claim domain.ClaimID, fills []domain.TradeFill) error {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(claim.DuelID), lockTTL)
	if err != nil {
		return fmt.Errorf("marketplace: lock duel %s: %w", claim.DuelID, err)
	}
	defer unlock()

	if err := s.requireOpen(ctx, claim.DuelID); err != nil {
		return err
	}
	if len(fills) == 0 {
		return fmt.Errorf("marketplace: empty fill list: %w", domain.ErrInvalidQuantity)
	}

	p := s.params.Params()
	executed := make([]domain.ExecutedFill, 0, len(fills))
	requested := make(map[int64]domain.Money, len(fills))
	var totalCharge, totalFees domain.Money
	for _, fill := range fills {
		if fill.Quantity <= 0 {
			return fmt.Errorf("marketplace: fill quantity %s: %w", fill.Quantity, domain.ErrInvalidQuantity)
		}
		listing, err := s.listings.Get(ctx, claim, fill.Index)
		if err != nil {
			return fmt.Errorf("marketplace: get listing %s/%d: %w", claim, fill.Index, err)
		}
		// A listing may be named more than once; the combined quantity
		// must still fit what it has left.
		requested[fill.Index] = requested[fill.Index].Add(fill.Quantity)
		if requested[fill.Index] > listing.Quantity {
			return fmt.Errorf("marketplace: fills for listing %d total %s of listed %s: %w",
				fill.Index, requested[fill.Index], listing.Quantity, domain.ErrInvalidQuantity)
		}

		gross := domain.GrossPrice(fill.Quantity, listing.UnitPrice)
		sellerFee := gross.FeeBps(p.SellerFeeBps)
		buyerFee := gross.FeeBps(p.BuyerFeeBps)

		executed = append(executed, domain.ExecutedFill{
			Index:     fill.Index,
			Seller:    listing.Seller,
			Quantity:  fill.Quantity,
			Gross:     gross,
			SellerNet: gross.Sub(sellerFee),
		})
		totalCharge += gross.Add(buyerFee)
		totalFees += sellerFee.Add(buyerFee)
	}

	balance, err := s.ledger.BalanceOf(ctx, buyer)
	if err != nil {
		return fmt.Errorf("marketplace: buyer balance: %w", err)
	}
	if balance < totalCharge {
		return fmt.Errorf("marketplace: buyer %s needs %s: %w", buyer, totalCharge, domain.ErrInsufficientBalance)
	}

	if err := s.ledger.Transfer(ctx, buyer, domain.CustodyAccount, totalCharge); err != nil {
		return fmt.Errorf("marketplace: collect payment: %w", err)
	}
	trade := domain.TradeExecution{
		ID:          uuid.New(),
		Claim:       claim,
		Buyer:       buyer,
		Fills:       executed,
		ProtocolFee: totalFees,
	}
	if err := s.listings.ExecuteTrade(ctx, trade); err != nil {
		// The payment is already in custody; hand it back so a failed buy
		// has no effect.
		_ = s.ledger.Transfer(ctx, domain.CustodyAccount, buyer, totalCharge)
		return fmt.Errorf("marketplace: execute trade: %w", err)
	}

	s.publish(ctx, map[string]any{
		"event":    "trade_executed",
		"trade_id": trade.ID.String(),
		"claim":    claim.String(),
		"buyer":    buyer.String(),
		"fills":    len(executed),
		"charged":  totalCharge.String(),
	})
	s.auditLog(ctx, "trade_executed", map[string]any{
		"trade_id": trade.ID.String(),
		"claim":    claim.String(),
		"buyer":    buyer.String(),
		"charged":  totalCharge.String(),
		"fees":     totalFees.String(),
	})
	return nil
}

// Listings returns a claim's open listings ordered by index.
func (s *MarketplaceService) Listings(ctx context.Context, claim domain.ClaimID, opts domain.ListOpts) ([]domain.Listing, error) {
	listings, err := s.listings.ListByClaim(ctx, claim, opts)
	if err != nil {
		return nil, fmt.Errorf("marketplace: list %s: %w", claim, err)
	}
	return listings, nil
}

// requireOpen rejects marketplace activity once a duel is Settled or
// Cancelled.
func (s *MarketplaceService) requireOpen(ctx context.Context, duelID uuid.UUID) error {
	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return fmt.Errorf("marketplace: get duel %s: %w", duelID, err)
	}
	if duel.Status.Terminal() {
		return fmt.Errorf("marketplace: duel %s is %s: %w", duelID, duel.Status, domain.ErrMarketClosed)
	}
	return nil
}

func (s *MarketplaceService) publish(ctx context.Context, payload map[string]any) {
	data, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, ChannelTrades, data); err != nil {
		s.logger.WarnContext(ctx, "marketplace: publish event failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketplaceService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "marketplace: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
