// Package memory implements every domain store interface on a single
// in-process arena guarded by one mutex. Each exported method validates and
// mutates under the same lock hold, so every operation is atomic exactly the
// way the settlement substrate promises: all of its changes land or none do.
// It backs the test suite and the `memory` operating mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

type wagerKey struct {
	account domain.Account
	option  int
}

type holding struct {
	free   domain.Money
	escrow domain.Money
}

type duelState struct {
	duel        domain.Duel
	wagers      map[wagerKey]domain.WagerRecord
	holdings    map[wagerKey]*holding
	listings    map[int]map[int64]domain.Listing
	nextListing map[int]int64
	cursors     map[domain.CursorKind]domain.Cursor
}

// Store is the in-memory arena. The zero value is not usable; use New.
type Store struct {
	mu sync.Mutex

	requests map[uuid.UUID]domain.CreateRequest
	duels    map[uuid.UUID]*duelState
	order    []uuid.UUID // insertion order for List

	earnings     map[domain.Account]domain.Money
	protocolFees domain.Money
	creatorFees  map[domain.Account]domain.Money

	params *domain.EngineParams
	audit  []domain.AuditEntry
}

// New creates an empty arena.
func New() *Store {
	return &Store{
		requests:    map[uuid.UUID]domain.CreateRequest{},
		duels:       map[uuid.UUID]*duelState{},
		earnings:    map[domain.Account]domain.Money{},
		creatorFees: map[domain.Account]domain.Money{},
	}
}

func (s *Store) state(id uuid.UUID) (*duelState, error) {
	ds, ok := s.duels[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return ds, nil
}

// ---------------------------------------------------------------------------
// DuelStore
// ---------------------------------------------------------------------------

func (s *Store) InsertRequest(_ context.Context, req domain.CreateRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.requests[req.ID] = req
	return nil
}

func (s *Store) GetRequest(_ context.Context, id uuid.UUID) (domain.CreateRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.CreateRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (s *Store) SetRequestStatus(_ context.Context, id uuid.UUID, from, to domain.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ErrNotFound
	}
	if req.Status != from {
		return domain.ErrInvalidStatus
	}
	req.Status = to
	s.requests[id] = req
	return nil
}

func (s *Store) ListRequests(_ context.Context, status domain.RequestStatus, opts domain.ListOpts) ([]domain.CreateRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CreateRequest
	for _, req := range s.requests {
		if req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, opts), nil
}

func (s *Store) Insert(_ context.Context, d domain.Duel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.duels[d.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.duels[d.ID] = &duelState{
		duel:        d,
		wagers:      map[wagerKey]domain.WagerRecord{},
		holdings:    map[wagerKey]*holding{},
		listings:    map[int]map[int64]domain.Listing{},
		nextListing: map[int]int64{},
		cursors:     map[domain.CursorKind]domain.Cursor{},
	}
	s.order = append(s.order, d.ID)
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (domain.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(id)
	if err != nil {
		return domain.Duel{}, err
	}
	return cloneDuel(ds.duel), nil
}

func (s *Store) List(_ context.Context, opts domain.ListOpts) ([]domain.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Duel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneDuel(s.duels[id].duel))
	}
	return page(out, opts), nil
}

func (s *Store) ListByStatus(_ context.Context, status domain.DuelStatus, opts domain.ListOpts) ([]domain.Duel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Duel
	for _, id := range s.order {
		if d := s.duels[id].duel; d.Status == status {
			out = append(out, cloneDuel(d))
		}
	}
	return page(out, opts), nil
}

func (s *Store) MarkLive(_ context.Context, id uuid.UUID, startPrice *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(id)
	if err != nil {
		return err
	}
	if ds.duel.Status != domain.DuelStatusBootstrapped {
		return domain.ErrInvalidStatus
	}
	ds.duel.Status = domain.DuelStatusLive
	ds.duel.StartPrice = startPrice
	return nil
}

func (s *Store) MarkSettled(_ context.Context, id uuid.UUID, outcome domain.SettlementOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(id)
	if err != nil {
		return err
	}
	if ds.duel.Status != domain.DuelStatusLive {
		return domain.ErrInvalidStatus
	}
	ds.duel.Status = domain.DuelStatusSettled
	ds.duel.WinningOption = outcome.WinningOption
	ds.duel.EndPrice = outcome.EndPrice
	ds.duel.DistributablePot = outcome.DistributablePot
	ds.duel.WinningSupply = outcome.WinningSupply
	// No winner or an empty winning side leaves nothing to distribute.
	done := outcome.WinningOption == nil || outcome.WinningSupply == 0 || outcome.DistributablePot == 0
	ds.cursors[domain.CursorDistribution] = domain.Cursor{Done: done}
	return nil
}

func (s *Store) MarkCancelled(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(id)
	if err != nil {
		return err
	}
	if ds.duel.Status.Terminal() {
		return domain.ErrInvalidStatus
	}
	ds.duel.Status = domain.DuelStatusCancelled
	ds.cursors[domain.CursorRefund] = domain.Cursor{}
	return nil
}

func (s *Store) OpenLiquidity(_ context.Context) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total domain.Money
	for _, ds := range s.duels {
		if !ds.duel.Status.Terminal() {
			total += ds.duel.TotalPool()
		}
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// WagerStore
// ---------------------------------------------------------------------------

func (s *Store) Place(_ context.Context, rec domain.WagerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(rec.DuelID)
	if err != nil {
		return err
	}
	if !ds.duel.ValidOption(rec.Option) {
		return domain.ErrInvalidOption
	}

	key := wagerKey{rec.Account, rec.Option}
	w := ds.wagers[key]
	w.DuelID, w.Account, w.Option = rec.DuelID, rec.Account, rec.Option
	w.Amount += rec.Amount
	w.UpdatedAt = rec.UpdatedAt
	ds.wagers[key] = w

	ds.duel.Pools[rec.Option] += rec.Amount
	s.holding(ds, key).free += rec.Amount
	return nil
}

func (s *Store) GetWager(ctx context.Context, duelID uuid.UUID, account domain.Account, option int) (domain.WagerRecord, error) {
	return s.getWager(duelID, account, option)
}

func (s *Store) getWager(duelID uuid.UUID, account domain.Account, option int) (domain.WagerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(duelID)
	if err != nil {
		return domain.WagerRecord{}, err
	}
	w, ok := ds.wagers[wagerKey{account, option}]
	if !ok {
		return domain.WagerRecord{}, domain.ErrNotFound
	}
	return w, nil
}

func (s *Store) ListRefundable(_ context.Context, duelID uuid.UUID, limit int) ([]domain.RefundEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(duelID)
	if err != nil {
		return nil, err
	}

	byAccount := map[domain.Account][]domain.Money{}
	for key, w := range ds.wagers {
		if w.Amount == 0 {
			continue
		}
		per, ok := byAccount[key.account]
		if !ok {
			per = make([]domain.Money, len(ds.duel.Options))
		}
		per[key.option] += w.Amount
		byAccount[key.account] = per
	}

	accounts := make([]domain.Account, 0, len(byAccount))
	for acct := range byAccount {
		accounts = append(accounts, acct)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	var out []domain.RefundEntry
	for _, acct := range accounts {
		if len(out) >= limit {
			break
		}
		per := byAccount[acct]
		var total domain.Money
		for _, m := range per {
			total += m
		}
		out = append(out, domain.RefundEntry{Account: acct, PerOption: per, Total: total})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// ClaimStore
// ---------------------------------------------------------------------------

func (s *Store) holding(ds *duelState, key wagerKey) *holding {
	h, ok := ds.holdings[key]
	if !ok {
		h = &holding{}
		ds.holdings[key] = h
	}
	return h
}

func (s *Store) claimState(claim domain.ClaimID) (*duelState, error) {
	ds, err := s.state(claim.DuelID)
	if err != nil {
		return nil, err
	}
	if !ds.duel.ValidOption(claim.Option) {
		return nil, domain.ErrInvalidOption
	}
	return ds, nil
}

func (s *Store) Balance(_ context.Context, claim domain.ClaimID, account domain.Account) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return 0, err
	}
	if h, ok := ds.holdings[wagerKey{account, claim.Option}]; ok {
		return h.free, nil
	}
	return 0, nil
}

func (s *Store) Escrowed(_ context.Context, claim domain.ClaimID, account domain.Account) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return 0, err
	}
	if h, ok := ds.holdings[wagerKey{account, claim.Option}]; ok {
		return h.escrow, nil
	}
	return 0, nil
}

func (s *Store) Supply(_ context.Context, claim domain.ClaimID) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supplyLocked(claim)
}

func (s *Store) supplyLocked(claim domain.ClaimID) (domain.Money, error) {
	ds, err := s.claimState(claim)
	if err != nil {
		return 0, err
	}
	var total domain.Money
	for key, h := range ds.holdings {
		if key.option == claim.Option {
			total += h.free + h.escrow
		}
	}
	return total, nil
}

func (s *Store) Transfer(_ context.Context, claim domain.ClaimID, from, to domain.Account, amount domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return domain.ErrInvalidQuantity
	}
	src := s.holding(ds, wagerKey{from, claim.Option})
	if src.free < amount {
		return domain.ErrInsufficientBalance
	}
	src.free -= amount
	s.holding(ds, wagerKey{to, claim.Option}).free += amount
	return nil
}

func (s *Store) Escrow(_ context.Context, claim domain.ClaimID, account domain.Account, amount domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return err
	}
	h := s.holding(ds, wagerKey{account, claim.Option})
	if h.free < amount {
		return domain.ErrInsufficientBalance
	}
	h.free -= amount
	h.escrow += amount
	return nil
}

func (s *Store) Release(_ context.Context, claim domain.ClaimID, account domain.Account, amount domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return err
	}
	h := s.holding(ds, wagerKey{account, claim.Option})
	if h.escrow < amount {
		return domain.ErrInsufficientEscrow
	}
	h.escrow -= amount
	h.free += amount
	return nil
}

func (s *Store) ListHolders(_ context.Context, claim domain.ClaimID, offset, limit int) ([]domain.ClaimHolding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return nil, err
	}

	var all []domain.ClaimHolding
	for key, h := range ds.holdings {
		if key.option != claim.Option {
			continue
		}
		if bal := h.free + h.escrow; bal > 0 {
			all = append(all, domain.ClaimHolding{Claim: claim, Account: key.account, Balance: bal})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Account < all[j].Account })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// ---------------------------------------------------------------------------
// ListingStore
// ---------------------------------------------------------------------------

func (s *Store) InsertListing(ctx context.Context, l domain.Listing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(l.Claim)
	if err != nil {
		return 0, err
	}
	idx := ds.nextListing[l.Claim.Option]
	ds.nextListing[l.Claim.Option] = idx + 1
	l.Index = idx
	if ds.listings[l.Claim.Option] == nil {
		ds.listings[l.Claim.Option] = map[int64]domain.Listing{}
	}
	ds.listings[l.Claim.Option][idx] = l
	return idx, nil
}

func (s *Store) GetListing(_ context.Context, claim domain.ClaimID, index int64) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return domain.Listing{}, err
	}
	l, ok := ds.listings[claim.Option][index]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *Store) ListByClaim(_ context.Context, claim domain.ClaimID, opts domain.ListOpts) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return nil, err
	}
	var out []domain.Listing
	for _, l := range ds.listings[claim.Option] {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return page(out, opts), nil
}

func (s *Store) DeleteListing(_ context.Context, claim domain.ClaimID, index int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(claim)
	if err != nil {
		return err
	}
	if _, ok := ds.listings[claim.Option][index]; !ok {
		return domain.ErrNotFound
	}
	delete(ds.listings[claim.Option], index)
	return nil
}

func (s *Store) ExecuteTrade(_ context.Context, trade domain.TradeExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.claimState(trade.Claim)
	if err != nil {
		return err
	}

	// Re-validate every fill before touching anything so a stale trade
	// leaves the arena untouched. Quantities are summed per listing and per
	// seller so repeated indexes cannot slip past a per-fill check.
	requested := make(map[int64]domain.Money, len(trade.Fills))
	escrowNeed := make(map[wagerKey]domain.Money, len(trade.Fills))
	for _, fill := range trade.Fills {
		l, ok := ds.listings[trade.Claim.Option][fill.Index]
		if !ok {
			return domain.ErrNotFound
		}
		if fill.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		requested[fill.Index] += fill.Quantity
		if requested[fill.Index] > l.Quantity {
			return domain.ErrInvalidQuantity
		}
		key := wagerKey{l.Seller, trade.Claim.Option}
		escrowNeed[key] += fill.Quantity
		h := ds.holdings[key]
		if h == nil || h.escrow < escrowNeed[key] {
			return domain.ErrInsufficientEscrow
		}
	}

	for _, fill := range trade.Fills {
		l := ds.listings[trade.Claim.Option][fill.Index]
		seller := ds.holdings[wagerKey{l.Seller, trade.Claim.Option}]
		seller.escrow -= fill.Quantity
		s.holding(ds, wagerKey{trade.Buyer, trade.Claim.Option}).free += fill.Quantity

		l.Quantity -= fill.Quantity
		if l.Quantity == 0 {
			delete(ds.listings[trade.Claim.Option], fill.Index)
		} else {
			ds.listings[trade.Claim.Option][fill.Index] = l
		}

		s.earnings[fill.Seller] += fill.SellerNet
	}
	s.protocolFees += trade.ProtocolFee
	return nil
}

// ---------------------------------------------------------------------------
// EarningsStore
// ---------------------------------------------------------------------------

func (s *Store) EarningsBalance(_ context.Context, account domain.Account) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.earnings[account], nil
}

func (s *Store) Credit(_ context.Context, account domain.Account, amount domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earnings[account] += amount
	return nil
}

func (s *Store) Withdraw(_ context.Context, account domain.Account, amount domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount <= 0 {
		return domain.ErrInvalidQuantity
	}
	if s.earnings[account] < amount {
		return domain.ErrInsufficientBalance
	}
	s.earnings[account] -= amount
	return nil
}

func (s *Store) ProtocolFees(_ context.Context) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolFees, nil
}

func (s *Store) CreditProtocolFees(_ context.Context, amount domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolFees += amount
	return nil
}

func (s *Store) WithdrawProtocolFees(_ context.Context) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount := s.protocolFees
	s.protocolFees = 0
	return amount, nil
}

func (s *Store) CreatorFees(_ context.Context, creator domain.Account) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creatorFees[creator], nil
}

func (s *Store) CreditCreatorFees(_ context.Context, creator domain.Account, amount domain.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creatorFees[creator] += amount
	return nil
}

func (s *Store) WithdrawCreatorFees(_ context.Context, creator domain.Account) (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount := s.creatorFees[creator]
	s.creatorFees[creator] = 0
	return amount, nil
}

// ---------------------------------------------------------------------------
// PayoutStore
// ---------------------------------------------------------------------------

func (s *Store) Cursor(_ context.Context, duelID uuid.UUID, kind domain.CursorKind) (domain.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(duelID)
	if err != nil {
		return domain.Cursor{}, err
	}
	c, ok := ds.cursors[kind]
	if !ok {
		return domain.Cursor{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) ApplyPayoutChunk(_ context.Context, duelID uuid.UUID, credits []domain.EarningsCredit, next domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(duelID)
	if err != nil {
		return err
	}
	for _, c := range credits {
		s.earnings[c.Account] += c.Amount
	}
	ds.cursors[domain.CursorDistribution] = next
	return nil
}

func (s *Store) ApplyRefundChunk(_ context.Context, duelID uuid.UUID, refunds []domain.RefundEntry, next domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, err := s.state(duelID)
	if err != nil {
		return err
	}
	for _, r := range refunds {
		s.earnings[r.Account] += r.Total
		for option, amount := range r.PerOption {
			if amount == 0 {
				continue
			}
			key := wagerKey{r.Account, option}
			w := ds.wagers[key]
			w.Amount = 0
			ds.wagers[key] = w
			ds.duel.Pools[option] -= amount
			if h, ok := ds.holdings[key]; ok {
				h.free, h.escrow = 0, 0
			}
		}
	}
	ds.cursors[domain.CursorRefund] = next
	return nil
}

// ---------------------------------------------------------------------------
// ParamsStore
// ---------------------------------------------------------------------------

func (s *Store) LoadParams(_ context.Context) (domain.EngineParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return domain.EngineParams{}, domain.ErrNotFound
	}
	return *s.params, nil
}

func (s *Store) SaveParams(_ context.Context, p domain.EngineParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.params = &cp
	return nil
}

// ---------------------------------------------------------------------------
// AuditStore
// ---------------------------------------------------------------------------

func (s *Store) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, domain.AuditEntry{
		ID:        int64(len(s.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Store) ListAudit(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return page(out, opts), nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func cloneDuel(d domain.Duel) domain.Duel {
	cp := d
	cp.Options = append([]string(nil), d.Options...)
	cp.Pools = append([]domain.Money(nil), d.Pools...)
	return cp
}
