package domain

import "context"

// CustodyAccount is the engine's own value-ledger account. Stakes, trade
// payments, and accrued fees sit here until a withdrawal moves them out.
const CustodyAccount Account = "engine:custody"

// ValueLedger is the external participation-token ledger. The engine only
// ever consumes it through these three operations; token internals are not
// its business. All amounts are accounting Money; implementations rescale
// to the token's wire precision themselves.
type ValueLedger interface {
	Transfer(ctx context.Context, from, to Account, amount Money) error
	Mint(ctx context.Context, to Account, amount Money) error
	BalanceOf(ctx context.Context, account Account) (Money, error)
}

// PriceSource supplies the start/end price observations that resolve
// price-trigger duels. Sourcing mechanics are external to the engine.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}
