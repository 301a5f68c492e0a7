package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/service"
)

// LifecycleService defines the lifecycle operations the duel handler needs.
// It is declared locally so the handler package does not depend on the
// concrete service implementation.
type LifecycleService interface {
	RequestCreate(ctx context.Context, requester domain.Account, p domain.CreateParams, asOf time.Time) (domain.CreateRequest, error)
	ApproveCreate(ctx context.Context, requestID uuid.UUID, asOf time.Time) (domain.Duel, error)
	RevokeCreate(ctx context.Context, requestID uuid.UUID, caller domain.Account) error
	Join(ctx context.Context, duelID uuid.UUID, option int, amount domain.Money, account domain.Account, asOf time.Time) error
	Start(ctx context.Context, duelID uuid.UUID, observedPrice *float64, asOf time.Time) error
	CancelIfThresholdNotMet(ctx context.Context, duelID uuid.UUID, asOf time.Time) error
	CancelUnresolved(ctx context.Context, duelID uuid.UUID, asOf time.Time) error
	GetDuel(ctx context.Context, duelID uuid.UUID) (domain.Duel, error)
	ListDuels(ctx context.Context, opts domain.ListOpts) ([]domain.Duel, error)
}

// SettlementService defines the settlement operations the duel handler needs.
type SettlementService interface {
	Settle(ctx context.Context, duelID uuid.UUID, input domain.ResolutionInput, asOf time.Time) (service.Progress, error)
	ContinueWinningsDistribution(ctx context.Context, duelID uuid.UUID) (service.Progress, error)
}

// RefundService defines the refund operations the duel handler needs.
type RefundService interface {
	ContinueRefunds(ctx context.Context, duelID uuid.UUID) (service.Progress, error)
}

// DuelHandler serves duel lifecycle HTTP endpoints: creation requests, joins,
// starts, settlement, cancellation, and payout continuation.
type DuelHandler struct {
	lifecycle  LifecycleService
	settlement SettlementService
	refunds    RefundService
	logger     *slog.Logger
}

// NewDuelHandler creates a DuelHandler with the given services and logger.
func NewDuelHandler(lifecycle LifecycleService, settlement SettlementService, refunds RefundService, logger *slog.Logger) *DuelHandler {
	return &DuelHandler{
		lifecycle:  lifecycle,
		settlement: settlement,
		refunds:    refunds,
		logger:     logger,
	}
}

// createRequestBody is the payload for submitting a duel creation request.
type createRequestBody struct {
	Requester string              `json:"requester"`
	Params    domain.CreateParams `json:"params"`
}

// CreateRequest submits a new duel creation request for resolver approval.
// The creation fee is debited from the requester immediately.
// POST /api/duels/requests
func (h *DuelHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	requester, err := domain.ParseAccount(body.Requester)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := h.lifecycle.RequestCreate(r.Context(), requester, body.Params, time.Now().UTC())
	if err != nil {
		writeDomainError(w, r, h.logger, "create request", err)
		return
	}

	writeJSON(w, http.StatusCreated, req)
}

// ApproveRequest approves a pending creation request, materializing the duel.
// Resolver only.
// POST /api/duels/requests/{id}/approve
func (h *DuelHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	duel, err := h.lifecycle.ApproveCreate(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeDomainError(w, r, h.logger, "approve request", err)
		return
	}

	writeJSON(w, http.StatusCreated, duel)
}

// revokeRequestBody identifies the caller revoking a creation request. The
// requester may revoke their own pending request; the resolver may revoke any.
type revokeRequestBody struct {
	Caller string `json:"caller"`
}

// RevokeRequest revokes a pending creation request and refunds the creation
// fee to the requester.
// DELETE /api/duels/requests/{id}
func (h *DuelHandler) RevokeRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var body revokeRequestBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, err := domain.ParseAccount(body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.lifecycle.RevokeCreate(r.Context(), id, caller); err != nil {
		writeDomainError(w, r, h.logger, "revoke request", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// joinBody is the payload for staking behind one option of a duel.
type joinBody struct {
	Account string       `json:"account"`
	Option  int          `json:"option"`
	Amount  domain.Money `json:"amount"`
}

// Join stakes an amount behind one option of an open duel, minting claim
// tokens one-for-one with the stake.
// POST /api/duels/{id}/join
func (h *DuelHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var body joinBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := domain.ParseAccount(body.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.lifecycle.Join(r.Context(), id, body.Option, body.Amount, account, time.Now().UTC()); err != nil {
		writeDomainError(w, r, h.logger, "join", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// startBody optionally carries the observed start price for price-trigger
// duels. Categorical duels take no price.
type startBody struct {
	ObservedPrice *float64 `json:"observed_price,omitempty"`
}

// Start transitions a duel from Bootstrapped to Live once the bootstrap
// window has closed and the wager threshold is met. Resolver only.
// POST /api/duels/{id}/start
func (h *DuelHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var body startBody
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.lifecycle.Start(r.Context(), id, body.ObservedPrice, time.Now().UTC()); err != nil {
		writeDomainError(w, r, h.logger, "start", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

// settleBody carries the resolution evidence: a winning option for
// categorical duels, an observed end price for price-trigger duels.
type settleBody struct {
	WinningOption *int     `json:"winning_option,omitempty"`
	EndPrice      *float64 `json:"end_price,omitempty"`
}

// progressResponse reports chunked payout progress to the caller.
type progressResponse struct {
	Processed int  `json:"processed"`
	Done      bool `json:"done"`
}

// Settle resolves a live duel past its expiry, freezes the distributable pot,
// and runs the first distribution chunk. Resolver only.
// POST /api/duels/{id}/settle
func (h *DuelHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var body settleBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	progress, err := h.settlement.Settle(r.Context(), id, domain.ResolutionInput{
		WinningOption: body.WinningOption,
		EndPrice:      body.EndPrice,
	}, time.Now().UTC())
	if err != nil {
		writeDomainError(w, r, h.logger, "settle", err)
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Processed: progress.Processed,
		Done:      progress.Done,
	})
}

// Distribute runs the next winnings distribution chunk of a settled duel.
// A call after completion is a no-op reporting done.
// POST /api/duels/{id}/distribute
func (h *DuelHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.settlement.ContinueWinningsDistribution(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "distribute", err)
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Processed: progress.Processed,
		Done:      progress.Done,
	})
}

// Cancel cancels a duel: a bootstrapped duel whose pool missed the wager
// threshold, or a live duel left unresolved past its resolving deadline.
// Resolver only.
// POST /api/duels/{id}/cancel
func (h *DuelHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	duel, err := h.lifecycle.GetDuel(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "cancel", err)
		return
	}

	asOf := time.Now().UTC()
	switch duel.Status {
	case domain.DuelStatusBootstrapped:
		err = h.lifecycle.CancelIfThresholdNotMet(r.Context(), id, asOf)
	default:
		err = h.lifecycle.CancelUnresolved(r.Context(), id, asOf)
	}
	if err != nil {
		writeDomainError(w, r, h.logger, "cancel", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Refund runs the next refund chunk of a cancelled duel. A call after
// completion is a no-op reporting done.
// POST /api/duels/{id}/refund
func (h *DuelHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.refunds.ContinueRefunds(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "refund", err)
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Processed: progress.Processed,
		Done:      progress.Done,
	})
}

// listDuelsResponse wraps the list endpoint output with pagination metadata.
type listDuelsResponse struct {
	Duels  []domain.Duel `json:"duels"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListDuels returns duels ordered newest first.
// GET /api/duels?limit=50&offset=0
func (h *DuelHandler) ListDuels(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	duels, err := h.lifecycle.ListDuels(r.Context(), opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "list duels", err)
		return
	}

	writeJSON(w, http.StatusOK, listDuelsResponse{
		Duels:  duels,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetDuel returns a single duel by its ID.
// GET /api/duels/{id}
func (h *DuelHandler) GetDuel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	duel, err := h.lifecycle.GetDuel(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get duel", err)
		return
	}

	writeJSON(w, http.StatusOK, duel)
}
