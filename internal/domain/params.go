package domain

import (
	"fmt"
	"time"
)

// Bounds every admin-tunable engine parameter must respect. The engine
// refuses to boot, and the admin surface refuses updates, outside these.
const (
	MaxCreationFeeWhole    = 10 // flat creation fee ceiling, whole units
	MinWagerThresholdWhole = 50
	MaxWagerThresholdWhole = 100
	MinBootstrapPeriod     = 5 * time.Minute
	MaxBootstrapPeriod     = 30 * time.Minute
	MinResolvingPeriod     = 48 * time.Hour
	MinChunkSize           = 30
	MaxChunkSize           = 100
)

// EngineParams is the runtime-tunable configuration of the settlement
// engine. A validated copy is persisted so restarts keep admin changes.
type EngineParams struct {
	CreationFee       Money         `json:"creation_fee" toml:"creation_fee"`
	ProtocolFeeBps    int           `json:"protocol_fee_bps" toml:"protocol_fee_bps"`
	CreatorFeeBps     int           `json:"creator_fee_bps" toml:"creator_fee_bps"`
	SellerFeeBps      int           `json:"seller_fee_bps" toml:"seller_fee_bps"`
	BuyerFeeBps       int           `json:"buyer_fee_bps" toml:"buyer_fee_bps"`
	MinWagerThreshold Money         `json:"min_wager_threshold" toml:"min_wager_threshold"`
	BootstrapPeriod   time.Duration `json:"bootstrap_period" toml:"bootstrap_period"`
	ResolvingPeriod   time.Duration `json:"resolving_period" toml:"resolving_period"`
	WinnersChunkSize  int           `json:"winners_chunk_size" toml:"winners_chunk_size"`
	RefundChunkSize   int           `json:"refund_chunk_size" toml:"refund_chunk_size"`
	MaxDuelPool       Money         `json:"max_duel_pool" toml:"max_duel_pool"`
	MaxProtocolPool   Money         `json:"max_protocol_pool" toml:"max_protocol_pool"`
	Token             TokenKind     `json:"token" toml:"token"`
	ResolverAccount   Account       `json:"resolver_account" toml:"resolver_account"`
	ProtocolAccount   Account       `json:"protocol_account" toml:"protocol_account"`
}

// DefaultEngineParams returns the observed production defaults: 2% protocol
// and creator fees, $5 creation fee, $100 threshold, 15 minute bootstrap,
// 48 hour resolving window, chunk sizes of 50.
func DefaultEngineParams() EngineParams {
	return EngineParams{
		CreationFee:       MoneyFromWhole(5),
		ProtocolFeeBps:    200,
		CreatorFeeBps:     200,
		SellerFeeBps:      100,
		BuyerFeeBps:       100,
		MinWagerThreshold: MoneyFromWhole(100),
		BootstrapPeriod:   15 * time.Minute,
		ResolvingPeriod:   48 * time.Hour,
		WinnersChunkSize:  50,
		RefundChunkSize:   50,
		MaxDuelPool:       MoneyFromWhole(1_000_000),
		MaxProtocolPool:   MoneyFromWhole(10_000_000),
		Token:             TokenStable,
	}
}

// Validate checks every parameter against its allowed range.
func (p EngineParams) Validate() error {
	if p.CreationFee.IsNegative() || p.CreationFee > MoneyFromWhole(MaxCreationFeeWhole) {
		return fmt.Errorf("creation fee %s exceeds ceiling of %d: %w", p.CreationFee, MaxCreationFeeWhole, ErrOutOfBounds)
	}
	for name, bps := range map[string]int{
		"protocol": p.ProtocolFeeBps,
		"creator":  p.CreatorFeeBps,
		"seller":   p.SellerFeeBps,
		"buyer":    p.BuyerFeeBps,
	} {
		if bps < 0 || bps > 10_000 {
			return fmt.Errorf("%s fee %d bps outside [0,10000]: %w", name, bps, ErrOutOfBounds)
		}
	}
	if p.MinWagerThreshold < MoneyFromWhole(MinWagerThresholdWhole) || p.MinWagerThreshold > MoneyFromWhole(MaxWagerThresholdWhole) {
		return fmt.Errorf("wager threshold %s outside [%d,%d]: %w", p.MinWagerThreshold, MinWagerThresholdWhole, MaxWagerThresholdWhole, ErrOutOfBounds)
	}
	if p.BootstrapPeriod < MinBootstrapPeriod || p.BootstrapPeriod > MaxBootstrapPeriod {
		return fmt.Errorf("bootstrap period %s outside [%s,%s]: %w", p.BootstrapPeriod, MinBootstrapPeriod, MaxBootstrapPeriod, ErrOutOfBounds)
	}
	if p.ResolvingPeriod < MinResolvingPeriod {
		return fmt.Errorf("resolving period %s below minimum %s: %w", p.ResolvingPeriod, MinResolvingPeriod, ErrOutOfBounds)
	}
	if p.WinnersChunkSize < MinChunkSize || p.WinnersChunkSize > MaxChunkSize {
		return fmt.Errorf("winners chunk size %d outside [%d,%d]: %w", p.WinnersChunkSize, MinChunkSize, MaxChunkSize, ErrOutOfBounds)
	}
	if p.RefundChunkSize < MinChunkSize || p.RefundChunkSize > MaxChunkSize {
		return fmt.Errorf("refund chunk size %d outside [%d,%d]: %w", p.RefundChunkSize, MinChunkSize, MaxChunkSize, ErrOutOfBounds)
	}
	if p.MaxDuelPool <= 0 || p.MaxProtocolPool <= 0 {
		return fmt.Errorf("liquidity caps must be positive: %w", ErrOutOfBounds)
	}
	if !p.Token.Valid() {
		return fmt.Errorf("unknown participation token %q: %w", p.Token, ErrOutOfBounds)
	}
	if p.ResolverAccount != "" {
		if _, err := ParseAccount(string(p.ResolverAccount)); err != nil {
			return fmt.Errorf("resolver account: %w", err)
		}
	}
	if p.ProtocolAccount != "" {
		if _, err := ParseAccount(string(p.ProtocolAccount)); err != nil {
			return fmt.Errorf("protocol account: %w", err)
		}
	}
	return nil
}

// ParamsProvider exposes the current engine parameters to services without
// coupling them to the admin surface.
type ParamsProvider interface {
	Params() EngineParams
}
