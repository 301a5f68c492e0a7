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

// SettlementService resolves Live duels and distributes the fee-adjusted
// pot to winning claim holders in bounded, resumable chunks. Fees come off
// the total pool across all options; holders are paid pro-rata by claim
// balance, so payout rights follow traded claims, not original deposits.
type SettlementService struct {
	duels    domain.DuelStore
	claims   domain.ClaimStore
	payouts  domain.PayoutStore
	earnings domain.EarningsStore
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	params   domain.ParamsProvider
	logger   *slog.Logger
}

// NewSettlementService creates a SettlementService with all required
// dependencies.
func NewSettlementService(
	duels domain.DuelStore,
	claims domain.ClaimStore,
	payouts domain.PayoutStore,
	earnings domain.EarningsStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	params domain.ParamsProvider,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		duels:    duels,
		claims:   claims,
		payouts:  payouts,
		earnings: earnings,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		params:   params,
		logger:   logger.With(slog.String("component", "settlement")),
	}
}

// Settle resolves a Live duel after its expiry and before its resolving
// deadline, deducts protocol and creator fees from the total pool, freezes
// the distributable pot, and processes the first distribution chunk.
func (s *SettlementService) Settle(ctx context.Context, duelID uuid.UUID, input domain.ResolutionInput, asOf time.Time) (Progress, error) {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(duelID), lockTTL)
	if err != nil {
		return Progress{}, fmt.Errorf("settlement: lock duel %s: %w", duelID, err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return Progress{}, fmt.Errorf("settlement: get duel %s: %w", duelID, err)
	}
	if duel.Status.Terminal() {
		return Progress{}, fmt.Errorf("settlement: settle duel %s: %w", duelID, domain.ErrMarketClosed)
	}
	if duel.Status != domain.DuelStatusLive {
		return Progress{}, fmt.Errorf("settlement: settle duel %s in %s: %w", duelID, duel.Status, domain.ErrInvalidStatus)
	}
	if asOf.Before(duel.ExpiresAt) {
		return Progress{}, fmt.Errorf("settlement: settle duel %s before expiry: %w", duelID, domain.ErrTooEarly)
	}
	if asOf.After(duel.ResolvingDeadline) {
		return Progress{}, fmt.Errorf("settlement: settle duel %s: %w", duelID, domain.ErrResolvingExpired)
	}

	outcome, err := s.resolve(duel, input)
	if err != nil {
		return Progress{}, err
	}

	p := s.params.Params()
	total := duel.TotalPool()
	protocolFee := total.FeeBps(p.ProtocolFeeBps)
	creatorFee := total.FeeBps(p.CreatorFeeBps)
	outcome.DistributablePot = total.Sub(protocolFee).Sub(creatorFee)

	if outcome.WinningOption != nil {
		supply, err := s.claims.Supply(ctx, domain.ClaimID{DuelID: duelID, Option: *outcome.WinningOption})
		if err != nil {
			return Progress{}, fmt.Errorf("settlement: winning supply: %w", err)
		}
		outcome.WinningSupply = supply
	}

	if err := s.duels.MarkSettled(ctx, duelID, outcome); err != nil {
		return Progress{}, fmt.Errorf("settlement: mark settled %s: %w", duelID, err)
	}
	if protocolFee > 0 {
		if err := s.earnings.CreditProtocolFees(ctx, protocolFee); err != nil {
			return Progress{}, fmt.Errorf("settlement: credit protocol fee: %w", err)
		}
	}
	if creatorFee > 0 {
		if err := s.earnings.CreditCreatorFees(ctx, duel.Creator, creatorFee); err != nil {
			return Progress{}, fmt.Errorf("settlement: credit creator fee: %w", err)
		}
	}

	s.auditLog(ctx, "duel_settled", map[string]any{
		"duel_id":      duelID.String(),
		"winner":       winnerLabel(duel, outcome.WinningOption),
		"pool":         total.String(),
		"protocol_fee": protocolFee.String(),
		"creator_fee":  creatorFee.String(),
		"pot":          outcome.DistributablePot.String(),
	})
	s.publish(ctx, map[string]any{
		"event":   "duel_settled",
		"duel_id": duelID.String(),
		"winner":  winnerLabel(duel, outcome.WinningOption),
		"pot":     outcome.DistributablePot.String(),
	})
	s.logger.InfoContext(ctx, "settlement: duel settled",
		slog.String("duel_id", duelID.String()),
		slog.String("pool", total.String()),
		slog.String("pot", outcome.DistributablePot.String()),
	)

	return s.distributeChunk(ctx, duelID)
}

// resolve computes the settlement outcome from the resolver's input.
func (s *SettlementService) resolve(duel domain.Duel, input domain.ResolutionInput) (domain.SettlementOutcome, error) {
	switch duel.Kind {
	case domain.DuelKindCategorical:
		if input.WinningOption == nil || !duel.ValidOption(*input.WinningOption) {
			return domain.SettlementOutcome{}, fmt.Errorf("settlement: categorical winner: %w", domain.ErrInvalidOption)
		}
		return domain.SettlementOutcome{WinningOption: input.WinningOption}, nil

	case domain.DuelKindPriceTrigger:
		if input.EndPrice == nil {
			return domain.SettlementOutcome{}, fmt.Errorf("settlement: price duel needs end price: %w", domain.ErrOutOfBounds)
		}
		if duel.StartPrice == nil || duel.Trigger == nil {
			return domain.SettlementOutcome{}, fmt.Errorf("settlement: duel %s missing start price: %w", duel.ID, domain.ErrInvalidStatus)
		}
		// Winner may be nil when neither side's condition is met; fees are
		// still deducted and the pot stays in custody.
		winner := duel.Trigger.Winner(*duel.StartPrice, *input.EndPrice)
		return domain.SettlementOutcome{WinningOption: winner, EndPrice: input.EndPrice}, nil

	default:
		return domain.SettlementOutcome{}, fmt.Errorf("settlement: unknown kind %q: %w", duel.Kind, domain.ErrInvalidStatus)
	}
}

// ContinueWinningsDistribution processes the next distribution chunk. Once
// the cursor reports done, further calls are no-ops: no balance changes, no
// double payment.
func (s *SettlementService) ContinueWinningsDistribution(ctx context.Context, duelID uuid.UUID) (Progress, error) {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(duelID), lockTTL)
	if err != nil {
		return Progress{}, fmt.Errorf("settlement: lock duel %s: %w", duelID, err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return Progress{}, fmt.Errorf("settlement: get duel %s: %w", duelID, err)
	}
	if duel.Status != domain.DuelStatusSettled {
		return Progress{}, fmt.Errorf("settlement: continue distribution %s in %s: %w", duelID, duel.Status, domain.ErrInvalidStatus)
	}
	return s.distributeChunk(ctx, duelID)
}

// distributeChunk pays up to WinnersChunkSize holders and advances the
// durable cursor in one atomic store step. Caller holds the duel lock.
func (s *SettlementService) distributeChunk(ctx context.Context, duelID uuid.UUID) (Progress, error) {
	cursor, err := s.payouts.Cursor(ctx, duelID, domain.CursorDistribution)
	if err != nil {
		return Progress{}, fmt.Errorf("settlement: cursor %s: %w", duelID, err)
	}
	if cursor.Done {
		return Progress{Cursor: cursor, Done: true}, nil
	}

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return Progress{}, fmt.Errorf("settlement: get duel %s: %w", duelID, err)
	}

	chunk := s.params.Params().WinnersChunkSize
	claim := domain.ClaimID{DuelID: duelID, Option: *duel.WinningOption}
	holders, err := s.claims.ListHolders(ctx, claim, cursor.Next, chunk)
	if err != nil {
		return Progress{}, fmt.Errorf("settlement: list holders: %w", err)
	}

	credits := make([]domain.EarningsCredit, 0, len(holders))
	for _, h := range holders {
		payout := domain.ProRata(duel.DistributablePot, h.Balance, duel.WinningSupply)
		if payout > 0 {
			credits = append(credits, domain.EarningsCredit{Account: h.Account, Amount: payout})
		}
	}

	next := domain.Cursor{
		Next:      cursor.Next + len(holders),
		Processed: cursor.Processed + len(holders),
		Done:      len(holders) < chunk,
	}
	if err := s.payouts.ApplyPayoutChunk(ctx, duelID, credits, next); err != nil {
		return Progress{}, fmt.Errorf("settlement: apply payout chunk: %w", err)
	}

	s.logger.InfoContext(ctx, "settlement: distribution chunk applied",
		slog.String("duel_id", duelID.String()),
		slog.Int("paid", len(credits)),
		slog.Int("processed_total", next.Processed),
		slog.Bool("done", next.Done),
	)
	return Progress{Processed: len(holders), Cursor: next, Done: next.Done}, nil
}

func winnerLabel(duel domain.Duel, winner *int) string {
	if winner == nil {
		return ""
	}
	return duel.Options[*winner]
}

func (s *SettlementService) publish(ctx context.Context, payload map[string]any) {
	data, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, ChannelSettlements, data); err != nil {
		s.logger.WarnContext(ctx, "settlement: publish event failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "settlement: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
