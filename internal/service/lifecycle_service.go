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

// LifecycleService runs the duel state machine: the two-phase creation
// intake, joins, the threshold-gated start, and both cancellation paths.
// Time never advances on its own here; every gate reads the caller's asOf.
type LifecycleService struct {
	duels    domain.DuelStore
	wagers   domain.WagerStore
	earnings domain.EarningsStore
	ledger   domain.ValueLedger
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	params   domain.ParamsProvider
	logger   *slog.Logger
}

// NewLifecycleService creates a LifecycleService with all required
// dependencies.
func NewLifecycleService(
	duels domain.DuelStore,
	wagers domain.WagerStore,
	earnings domain.EarningsStore,
	ledger domain.ValueLedger,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	params domain.ParamsProvider,
	logger *slog.Logger,
) *LifecycleService {
	return &LifecycleService{
		duels:    duels,
		wagers:   wagers,
		earnings: earnings,
		ledger:   ledger,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		params:   params,
		logger:   logger.With(slog.String("component", "lifecycle")),
	}
}

// RequestCreate files an unprivileged duel-creation request. The duel does
// not exist until a resolver approves the request.
func (s *LifecycleService) RequestCreate(ctx context.Context, requester domain.Account, p domain.CreateParams, asOf time.Time) (domain.CreateRequest, error) {
	if err := s.validateParams(p, asOf); err != nil {
		return domain.CreateRequest{}, err
	}

	req := domain.CreateRequest{
		ID:        uuid.New(),
		Requester: requester,
		Params:    p,
		Status:    domain.RequestStatusPending,
		CreatedAt: asOf,
	}
	if err := s.duels.InsertRequest(ctx, req); err != nil {
		return domain.CreateRequest{}, fmt.Errorf("lifecycle: insert request: %w", err)
	}

	s.logger.InfoContext(ctx, "lifecycle: create request filed",
		slog.String("request_id", req.ID.String()),
		slog.String("requester", requester.String()),
		slog.String("kind", string(p.Kind)),
	)
	return req, nil
}

func (s *LifecycleService) validateParams(p domain.CreateParams, asOf time.Time) error {
	switch p.Kind {
	case domain.DuelKindCategorical:
		if p.Trigger != nil {
			return fmt.Errorf("lifecycle: categorical duel carries a trigger: %w", domain.ErrOutOfBounds)
		}
	case domain.DuelKindPriceTrigger:
		if p.Trigger == nil || p.Trigger.Symbol == "" {
			return fmt.Errorf("lifecycle: price duel needs a trigger and symbol: %w", domain.ErrOutOfBounds)
		}
		if len(p.Options) != 2 {
			return fmt.Errorf("lifecycle: price duel needs exactly two options: %w", domain.ErrOutOfBounds)
		}
		if c := p.Trigger.Condition; c != domain.TriggerAbove && c != domain.TriggerBelow {
			return fmt.Errorf("lifecycle: unknown trigger condition %q: %w", c, domain.ErrOutOfBounds)
		}
		if t := p.Trigger.Type; t != domain.TriggerAbsolute && t != domain.TriggerDelta {
			return fmt.Errorf("lifecycle: unknown trigger type %q: %w", t, domain.ErrOutOfBounds)
		}
	default:
		return fmt.Errorf("lifecycle: unknown duel kind %q: %w", p.Kind, domain.ErrOutOfBounds)
	}

	if len(p.Options) < 2 {
		return fmt.Errorf("lifecycle: need at least two options: %w", domain.ErrOutOfBounds)
	}
	seen := make(map[string]bool, len(p.Options))
	for _, opt := range p.Options {
		if opt == "" || seen[opt] {
			return fmt.Errorf("lifecycle: options must be distinct and non-empty: %w", domain.ErrOutOfBounds)
		}
		seen[opt] = true
	}

	if p.MinWagerPerTrade <= 0 {
		return fmt.Errorf("lifecycle: min wager per trade must be positive: %w", domain.ErrOutOfBounds)
	}
	if !p.ExpiresAt.After(asOf.Add(s.params.Params().BootstrapPeriod)) {
		return fmt.Errorf("lifecycle: expiry inside bootstrap window: %w", domain.ErrOutOfBounds)
	}
	return nil
}

// ApproveCreate materializes a pending request into a Bootstrapped duel.
// The flat creation fee is taken from the requester into custody and
// credited to the protocol fee account in the same operation.
func (s *LifecycleService) ApproveCreate(ctx context.Context, requestID uuid.UUID, asOf time.Time) (domain.Duel, error) {
	req, err := s.duels.GetRequest(ctx, requestID)
	if err != nil {
		return domain.Duel{}, fmt.Errorf("lifecycle: get request %s: %w", requestID, err)
	}
	if req.Status != domain.RequestStatusPending {
		return domain.Duel{}, fmt.Errorf("lifecycle: request %s is %s: %w", requestID, req.Status, domain.ErrInvalidStatus)
	}

	p := s.params.Params()
	if p.CreationFee > 0 {
		if err := s.ledger.Transfer(ctx, req.Requester, domain.CustodyAccount, p.CreationFee); err != nil {
			return domain.Duel{}, fmt.Errorf("lifecycle: charge creation fee: %w", err)
		}
	}

	if err := s.duels.SetRequestStatus(ctx, requestID, domain.RequestStatusPending, domain.RequestStatusApproved); err != nil {
		// Lost the race to another approver; hand the fee back.
		if p.CreationFee > 0 {
			_ = s.ledger.Transfer(ctx, domain.CustodyAccount, req.Requester, p.CreationFee)
		}
		return domain.Duel{}, fmt.Errorf("lifecycle: approve request %s: %w", requestID, err)
	}

	if p.CreationFee > 0 {
		if err := s.earnings.CreditProtocolFees(ctx, p.CreationFee); err != nil {
			return domain.Duel{}, fmt.Errorf("lifecycle: credit creation fee: %w", err)
		}
	}

	duel := domain.Duel{
		ID:                uuid.New(),
		Kind:              req.Params.Kind,
		Creator:           req.Requester,
		Options:           append([]string(nil), req.Params.Options...),
		Status:            domain.DuelStatusBootstrapped,
		Pools:             make([]domain.Money, len(req.Params.Options)),
		MinWagerThreshold: p.MinWagerThreshold,
		MinWagerPerTrade:  req.Params.MinWagerPerTrade,
		MaxPool:           p.MaxDuelPool,
		CreatedAt:         asOf,
		BootstrapEndsAt:   asOf.Add(p.BootstrapPeriod),
		ExpiresAt:         req.Params.ExpiresAt,
		ResolvingDeadline: req.Params.ExpiresAt.Add(p.ResolvingPeriod),
		Trigger:           req.Params.Trigger,
	}
	if err := s.duels.Insert(ctx, duel); err != nil {
		return domain.Duel{}, fmt.Errorf("lifecycle: insert duel: %w", err)
	}

	s.publish(ctx, ChannelDuels, map[string]any{
		"event":   "duel_created",
		"duel_id": duel.ID.String(),
		"kind":    string(duel.Kind),
		"creator": duel.Creator.String(),
	})
	s.auditLog(ctx, "duel_created", map[string]any{
		"duel_id":      duel.ID.String(),
		"request_id":   requestID.String(),
		"creation_fee": p.CreationFee.String(),
	})
	s.logger.InfoContext(ctx, "lifecycle: duel created",
		slog.String("duel_id", duel.ID.String()),
		slog.String("kind", string(duel.Kind)),
		slog.Time("bootstrap_ends_at", duel.BootstrapEndsAt),
	)
	return duel, nil
}

// RevokeCreate withdraws a pending request. The requester may revoke their
// own request; a privileged caller passes an empty account.
func (s *LifecycleService) RevokeCreate(ctx context.Context, requestID uuid.UUID, caller domain.Account) error {
	req, err := s.duels.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("lifecycle: get request %s: %w", requestID, err)
	}
	if caller != "" && caller != req.Requester {
		return fmt.Errorf("lifecycle: revoke by %s: %w", caller, domain.ErrUnauthorized)
	}
	if err := s.duels.SetRequestStatus(ctx, requestID, domain.RequestStatusPending, domain.RequestStatusRevoked); err != nil {
		return fmt.Errorf("lifecycle: revoke request %s: %w", requestID, err)
	}
	return nil
}

// Join stakes amount behind an option. Valid while the duel accepts wagers;
// the stake moves into custody, the wager record grows, and an equal claim
// balance is minted to the depositor.
func (s *LifecycleService) Join(ctx context.Context, duelID uuid.UUID, option int, amount domain.Money, account domain.Account, asOf time.Time) error {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(duelID), lockTTL)
	if err != nil {
		return fmt.Errorf("lifecycle: lock duel %s: %w", duelID, err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return fmt.Errorf("lifecycle: get duel %s: %w", duelID, err)
	}
	if duel.Status.Terminal() {
		return fmt.Errorf("lifecycle: join duel %s: %w", duelID, domain.ErrMarketClosed)
	}
	if !duel.AcceptsWagers(asOf) {
		return fmt.Errorf("lifecycle: join duel %s: %w", duelID, domain.ErrInvalidStatus)
	}
	if !duel.ValidOption(option) {
		return fmt.Errorf("lifecycle: join duel %s option %d: %w", duelID, option, domain.ErrInvalidOption)
	}
	if amount < duel.MinWagerPerTrade {
		return fmt.Errorf("lifecycle: wager %s below minimum %s: %w", amount, duel.MinWagerPerTrade, domain.ErrWagerTooSmall)
	}
	if duel.TotalPool()+amount > duel.MaxPool {
		return fmt.Errorf("lifecycle: duel %s pool cap: %w", duelID, domain.ErrCapExceeded)
	}
	open, err := s.duels.OpenLiquidity(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: open liquidity: %w", err)
	}
	if open+amount > s.params.Params().MaxProtocolPool {
		return fmt.Errorf("lifecycle: protocol pool cap: %w", domain.ErrCapExceeded)
	}

	if err := s.ledger.Transfer(ctx, account, domain.CustodyAccount, amount); err != nil {
		return fmt.Errorf("lifecycle: collect wager: %w", err)
	}
	if err := s.wagers.Place(ctx, domain.WagerRecord{
		DuelID:    duelID,
		Account:   account,
		Option:    option,
		Amount:    amount,
		UpdatedAt: asOf,
	}); err != nil {
		// The stake is already in custody; hand it back so a failed join
		// leaves every ledger untouched.
		_ = s.ledger.Transfer(ctx, domain.CustodyAccount, account, amount)
		return fmt.Errorf("lifecycle: place wager: %w", err)
	}

	s.publish(ctx, ChannelWagers, map[string]any{
		"event":   "wager_placed",
		"duel_id": duelID.String(),
		"account": account.String(),
		"option":  option,
		"amount":  amount.String(),
	})
	return nil
}

// Start transitions a duel from Bootstrapped to Live. Valid exactly once,
// only after the bootstrap deadline, and only when the pool met the
// threshold. Price-trigger duels record the observed price as their start
// price.
func (s *LifecycleService) Start(ctx context.Context, duelID uuid.UUID, observedPrice *float64, asOf time.Time) error {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(duelID), lockTTL)
	if err != nil {
		return fmt.Errorf("lifecycle: lock duel %s: %w", duelID, err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return fmt.Errorf("lifecycle: get duel %s: %w", duelID, err)
	}
	if duel.Status.Terminal() {
		return fmt.Errorf("lifecycle: start duel %s: %w", duelID, domain.ErrMarketClosed)
	}
	if duel.Status != domain.DuelStatusBootstrapped {
		return fmt.Errorf("lifecycle: start duel %s in %s: %w", duelID, duel.Status, domain.ErrInvalidStatus)
	}
	if asOf.Before(duel.BootstrapEndsAt) {
		return fmt.Errorf("lifecycle: start duel %s before bootstrap end: %w", duelID, domain.ErrTooEarly)
	}
	if duel.TotalPool() < duel.MinWagerThreshold {
		return fmt.Errorf("lifecycle: start duel %s with pool %s < threshold %s: %w",
			duelID, duel.TotalPool(), duel.MinWagerThreshold, domain.ErrThresholdNotMet)
	}
	if duel.Kind == domain.DuelKindPriceTrigger && observedPrice == nil {
		return fmt.Errorf("lifecycle: start price duel %s without observed price: %w", duelID, domain.ErrOutOfBounds)
	}

	if err := s.duels.MarkLive(ctx, duelID, observedPrice); err != nil {
		return fmt.Errorf("lifecycle: mark live %s: %w", duelID, err)
	}

	s.publish(ctx, ChannelDuels, map[string]any{
		"event":   "duel_started",
		"duel_id": duelID.String(),
		"pool":    duel.TotalPool().String(),
	})
	s.logger.InfoContext(ctx, "lifecycle: duel live",
		slog.String("duel_id", duelID.String()),
		slog.String("pool", duel.TotalPool().String()),
	)
	return nil
}

// CancelIfThresholdNotMet cancels a Bootstrapped duel whose pool missed the
// threshold, arming the refund engine. Calling it when the threshold IS met
// fails with ErrThresholdMet rather than silently doing nothing.
func (s *LifecycleService) CancelIfThresholdNotMet(ctx context.Context, duelID uuid.UUID, asOf time.Time) error {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(duelID), lockTTL)
	if err != nil {
		return fmt.Errorf("lifecycle: lock duel %s: %w", duelID, err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return fmt.Errorf("lifecycle: get duel %s: %w", duelID, err)
	}
	if duel.Status.Terminal() {
		return fmt.Errorf("lifecycle: cancel duel %s: %w", duelID, domain.ErrMarketClosed)
	}
	if duel.Status != domain.DuelStatusBootstrapped {
		return fmt.Errorf("lifecycle: cancel duel %s in %s: %w", duelID, duel.Status, domain.ErrInvalidStatus)
	}
	if asOf.Before(duel.BootstrapEndsAt) {
		return fmt.Errorf("lifecycle: cancel duel %s before bootstrap end: %w", duelID, domain.ErrTooEarly)
	}
	if duel.TotalPool() >= duel.MinWagerThreshold {
		return fmt.Errorf("lifecycle: cancel duel %s with pool %s: %w", duelID, duel.TotalPool(), domain.ErrThresholdMet)
	}

	if err := s.duels.MarkCancelled(ctx, duelID); err != nil {
		return fmt.Errorf("lifecycle: mark cancelled %s: %w", duelID, err)
	}

	s.publish(ctx, ChannelDuels, map[string]any{
		"event":   "duel_cancelled",
		"duel_id": duelID.String(),
		"reason":  "threshold_not_met",
	})
	s.auditLog(ctx, "duel_cancelled", map[string]any{
		"duel_id": duelID.String(),
		"reason":  "threshold_not_met",
		"pool":    duel.TotalPool().String(),
	})
	return nil
}

// CancelUnresolved cancels a Live duel whose resolving deadline has passed
// without a settlement, releasing every stake through the refund path.
func (s *LifecycleService) CancelUnresolved(ctx context.Context, duelID uuid.UUID, asOf time.Time) error {
	unlock, err := s.locks.Acquire(ctx, duelLockKey(duelID), lockTTL)
	if err != nil {
		return fmt.Errorf("lifecycle: lock duel %s: %w", duelID, err)
	}
	defer unlock()

	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return fmt.Errorf("lifecycle: get duel %s: %w", duelID, err)
	}
	if duel.Status.Terminal() {
		return fmt.Errorf("lifecycle: cancel duel %s: %w", duelID, domain.ErrMarketClosed)
	}
	if duel.Status != domain.DuelStatusLive {
		return fmt.Errorf("lifecycle: cancel unresolved %s in %s: %w", duelID, duel.Status, domain.ErrInvalidStatus)
	}
	if !asOf.After(duel.ResolvingDeadline) {
		return fmt.Errorf("lifecycle: cancel unresolved %s before deadline: %w", duelID, domain.ErrTooEarly)
	}

	if err := s.duels.MarkCancelled(ctx, duelID); err != nil {
		return fmt.Errorf("lifecycle: mark cancelled %s: %w", duelID, err)
	}

	s.publish(ctx, ChannelDuels, map[string]any{
		"event":   "duel_cancelled",
		"duel_id": duelID.String(),
		"reason":  "unresolved",
	})
	return nil
}

// GetDuel returns a duel snapshot.
func (s *LifecycleService) GetDuel(ctx context.Context, duelID uuid.UUID) (domain.Duel, error) {
	duel, err := s.duels.Get(ctx, duelID)
	if err != nil {
		return domain.Duel{}, fmt.Errorf("lifecycle: get duel %s: %w", duelID, err)
	}
	return duel, nil
}

// ListDuels returns duels in creation order.
func (s *LifecycleService) ListDuels(ctx context.Context, opts domain.ListOpts) ([]domain.Duel, error) {
	duels, err := s.duels.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: list duels: %w", err)
	}
	return duels, nil
}

func (s *LifecycleService) publish(ctx context.Context, channel string, payload map[string]any) {
	data, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, channel, data); err != nil {
		s.logger.WarnContext(ctx, "lifecycle: publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *LifecycleService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "lifecycle: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
