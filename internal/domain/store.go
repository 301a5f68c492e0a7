package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// CursorKind names a chunked payout process.
type CursorKind string

const (
	CursorDistribution CursorKind = "distribution"
	CursorRefund       CursorKind = "refund"
)

// Cursor is the durable resumption state of a chunked distribution or
// refund. Next indexes the stable holder ordering, Processed counts payouts
// applied so far, Done marks completion; once Done, further continuation
// calls are no-ops.
type Cursor struct {
	Next      int  `json:"next"`
	Processed int  `json:"processed"`
	Done      bool `json:"done"`
}

// SettlementOutcome freezes the result of a settle call: the winner (nil
// when neither price condition was met), the observed end price, and the
// fee-adjusted pot and winning supply used by every distribution chunk.
type SettlementOutcome struct {
	WinningOption    *int
	EndPrice         *float64
	DistributablePot Money
	WinningSupply    Money
}

// DuelStore persists duels, creation requests, and the status transitions
// of the lifecycle state machine. Transition methods are atomic and reject
// calls from any status other than the expected predecessor, which keeps
// the status monotonic even across racing callers.
type DuelStore interface {
	InsertRequest(ctx context.Context, req CreateRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (CreateRequest, error)
	// SetRequestStatus transitions a request from `from` to `to`; it fails
	// with ErrInvalidStatus when the request is no longer in `from`.
	SetRequestStatus(ctx context.Context, id uuid.UUID, from, to RequestStatus) error
	ListRequests(ctx context.Context, status RequestStatus, opts ListOpts) ([]CreateRequest, error)

	Insert(ctx context.Context, d Duel) error
	Get(ctx context.Context, id uuid.UUID) (Duel, error)
	List(ctx context.Context, opts ListOpts) ([]Duel, error)
	ListByStatus(ctx context.Context, status DuelStatus, opts ListOpts) ([]Duel, error)

	// MarkLive transitions Bootstrapped -> Live, recording the observed
	// start price for price-trigger duels.
	MarkLive(ctx context.Context, id uuid.UUID, startPrice *float64) error
	// MarkSettled transitions Live -> Settled and arms the distribution
	// cursor in the same atomic step.
	MarkSettled(ctx context.Context, id uuid.UUID, outcome SettlementOutcome) error
	// MarkCancelled transitions a non-terminal status to Cancelled and arms
	// the refund cursor in the same atomic step.
	MarkCancelled(ctx context.Context, id uuid.UUID) error

	// OpenLiquidity sums the pools of every non-terminal duel, for the
	// protocol-wide liquidity cap.
	OpenLiquidity(ctx context.Context) (Money, error)
}

// WagerStore persists stake records. Place is the single mutation path for
// deposits: it increments the wager record, the option pool, and mints an
// equal claim balance in one atomic step.
type WagerStore interface {
	Place(ctx context.Context, rec WagerRecord) error
	Get(ctx context.Context, duelID uuid.UUID, account Account, option int) (WagerRecord, error)
	// ListRefundable returns up to limit depositors of the duel with a
	// non-zero remaining stake, aggregated across options and ordered by
	// account. Because applied refunds zero their records, repeated calls
	// from the start walk the remaining set without double counting.
	ListRefundable(ctx context.Context, duelID uuid.UUID, limit int) ([]RefundEntry, error)
}

// ClaimStore reads and moves claim token balances. Minting happens inside
// WagerStore.Place and burning inside PayoutStore.ApplyRefundChunk, so the
// supply invariant (supply == option pool) is owned by those two paths.
type ClaimStore interface {
	Balance(ctx context.Context, claim ClaimID, account Account) (Money, error)
	Escrowed(ctx context.Context, claim ClaimID, account Account) (Money, error)
	Supply(ctx context.Context, claim ClaimID) (Money, error)
	Transfer(ctx context.Context, claim ClaimID, from, to Account, amount Money) error
	// Escrow moves amount from the account's free balance into its
	// marketplace escrow bucket; Release moves it back.
	Escrow(ctx context.Context, claim ClaimID, account Account, amount Money) error
	Release(ctx context.Context, claim ClaimID, account Account, amount Money) error
	// ListHolders returns holders with a positive free-plus-escrowed
	// balance, ordered by account, for offset-stable distribution paging.
	ListHolders(ctx context.Context, claim ClaimID, offset, limit int) ([]ClaimHolding, error)
}

// ExecutedFill is one listing fill inside an atomically applied trade.
type ExecutedFill struct {
	Index     int64
	Seller    Account
	Quantity  Money
	Gross     Money
	SellerNet Money
}

// TradeExecution is the fully validated effect of a marketplace buy.
type TradeExecution struct {
	ID          uuid.UUID
	Claim       ClaimID
	Buyer       Account
	Fills       []ExecutedFill
	ProtocolFee Money
}

// ListingStore persists marketplace listings. ExecuteTrade applies a
// validated multi-listing fill atomically: listing decrements and
// deletions, escrow-to-buyer claim moves, seller earnings credits, and the
// protocol fee, all or nothing.
type ListingStore interface {
	Insert(ctx context.Context, l Listing) (int64, error)
	Get(ctx context.Context, claim ClaimID, index int64) (Listing, error)
	ListByClaim(ctx context.Context, claim ClaimID, opts ListOpts) ([]Listing, error)
	Delete(ctx context.Context, claim ClaimID, index int64) error
	ExecuteTrade(ctx context.Context, trade TradeExecution) error
}

// EarningsStore persists withdrawable earnings and the protocol/creator fee
// accounts. Withdraw methods are compare-and-swap: they fail with
// ErrInsufficientBalance rather than ever going negative.
type EarningsStore interface {
	Balance(ctx context.Context, account Account) (Money, error)
	Credit(ctx context.Context, account Account, amount Money) error
	Withdraw(ctx context.Context, account Account, amount Money) error

	ProtocolFees(ctx context.Context) (Money, error)
	CreditProtocolFees(ctx context.Context, amount Money) error
	WithdrawProtocolFees(ctx context.Context) (Money, error)

	CreatorFees(ctx context.Context, creator Account) (Money, error)
	CreditCreatorFees(ctx context.Context, creator Account, amount Money) error
	WithdrawCreatorFees(ctx context.Context, creator Account) (Money, error)
}

// PayoutStore persists chunk cursors and applies payout chunks. Each Apply
// call is one atomic step: the credits (and for refunds, the wager zeroing,
// claim burn and pool decrement) land together with the cursor advance, so
// crash-and-retry can never double-pay.
type PayoutStore interface {
	Cursor(ctx context.Context, duelID uuid.UUID, kind CursorKind) (Cursor, error)
	ApplyPayoutChunk(ctx context.Context, duelID uuid.UUID, credits []EarningsCredit, next Cursor) error
	ApplyRefundChunk(ctx context.Context, duelID uuid.UUID, refunds []RefundEntry, next Cursor) error
}

// ParamsStore persists the runtime engine parameters across restarts.
type ParamsStore interface {
	Load(ctx context.Context) (EngineParams, error)
	Save(ctx context.Context, p EngineParams) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
