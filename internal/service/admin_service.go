package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duelhouse/duelengine/internal/domain"
)

// AdminService owns the runtime engine parameters. It loads the persisted
// copy at startup, validates every update against the configured bounds,
// and serves a consistent snapshot to the other services.
type AdminService struct {
	store  domain.ParamsStore
	audit  domain.AuditStore
	logger *slog.Logger

	mu      sync.RWMutex
	current domain.EngineParams
}

// NewAdminService creates an AdminService seeded with defaults. Call Init
// to load any persisted parameters before serving traffic.
func NewAdminService(store domain.ParamsStore, audit domain.AuditStore, defaults domain.EngineParams, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:   store,
		audit:   audit,
		current: defaults,
		logger:  logger.With(slog.String("component", "admin")),
	}
}

// Init loads persisted parameters, keeping the seeded defaults when none
// have been saved yet.
func (s *AdminService) Init(ctx context.Context) error {
	p, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("admin: load params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("admin: persisted params invalid: %w", err)
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

// Params returns the current engine parameters.
func (s *AdminService) Params() domain.EngineParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates, persists, and swaps in new engine parameters. Updates
// outside the allowed bounds are rejected without any change.
func (s *AdminService) Update(ctx context.Context, p domain.EngineParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("admin: update params: %w", err)
	}
	if err := s.store.Save(ctx, p); err != nil {
		return fmt.Errorf("admin: save params: %w", err)
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	if err := s.audit.Log(ctx, "params_updated", map[string]any{
		"creation_fee":       p.CreationFee.String(),
		"protocol_fee_bps":   p.ProtocolFeeBps,
		"creator_fee_bps":    p.CreatorFeeBps,
		"wager_threshold":    p.MinWagerThreshold.String(),
		"bootstrap_period":   p.BootstrapPeriod.String(),
		"resolving_period":   p.ResolvingPeriod.String(),
		"winners_chunk_size": p.WinnersChunkSize,
		"refund_chunk_size":  p.RefundChunkSize,
		"token":              string(p.Token),
	}); err != nil {
		s.logger.WarnContext(ctx, "admin: audit log failed",
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "admin: params updated")
	return nil
}

var _ domain.ParamsProvider = (*AdminService)(nil)
