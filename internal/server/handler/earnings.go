package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/duelhouse/duelengine/internal/domain"
)

// EarningsService defines the earnings and fee operations the earnings
// handler needs.
type EarningsService interface {
	Balance(ctx context.Context, account domain.Account) (domain.Money, error)
	Withdraw(ctx context.Context, account domain.Account, amount domain.Money) error
	CreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error)
	WithdrawCreatorFees(ctx context.Context, creator domain.Account) (domain.Money, error)
	ProtocolFees(ctx context.Context) (domain.Money, error)
	WithdrawProtocolFees(ctx context.Context) (domain.Money, error)
}

// EarningsHandler serves withdrawable-earnings and fee HTTP endpoints.
type EarningsHandler struct {
	earnings EarningsService
	logger   *slog.Logger
}

// NewEarningsHandler creates an EarningsHandler with the given service and
// logger.
func NewEarningsHandler(earnings EarningsService, logger *slog.Logger) *EarningsHandler {
	return &EarningsHandler{
		earnings: earnings,
		logger:   logger,
	}
}

// earningsResponse reports an account's withdrawable balances.
type earningsResponse struct {
	Account     domain.Account `json:"account"`
	Balance     domain.Money   `json:"balance"`
	CreatorFees domain.Money   `json:"creator_fees"`
}

// GetEarnings returns an account's withdrawable earnings balance alongside
// any accrued creator fees.
// GET /api/earnings/{account}
func (h *EarningsHandler) GetEarnings(w http.ResponseWriter, r *http.Request) {
	account, err := domain.ParseAccount(pathParam(r, "account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := h.earnings.Balance(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, h.logger, "get earnings", err)
		return
	}
	creatorFees, err := h.earnings.CreatorFees(r.Context(), account)
	if err != nil {
		writeDomainError(w, r, h.logger, "get earnings", err)
		return
	}

	writeJSON(w, http.StatusOK, earningsResponse{
		Account:     account,
		Balance:     balance,
		CreatorFees: creatorFees,
	})
}

// withdrawBody is the payload for withdrawing earnings.
type withdrawBody struct {
	Account string       `json:"account"`
	Amount  domain.Money `json:"amount"`
}

// Withdraw moves an amount from the account's withdrawable earnings to its
// external balance.
// POST /api/earnings/withdraw
func (h *EarningsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var body withdrawBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	account, err := domain.ParseAccount(body.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.earnings.Withdraw(r.Context(), account, body.Amount); err != nil {
		writeDomainError(w, r, h.logger, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "withdrawn",
		"amount": body.Amount,
	})
}

// creatorWithdrawBody identifies the creator withdrawing accrued fees.
type creatorWithdrawBody struct {
	Creator string `json:"creator"`
}

// WithdrawCreatorFees pays out a creator's entire accrued fee balance.
// POST /api/earnings/creator/withdraw
func (h *EarningsHandler) WithdrawCreatorFees(w http.ResponseWriter, r *http.Request) {
	var body creatorWithdrawBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	creator, err := domain.ParseAccount(body.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := h.earnings.WithdrawCreatorFees(r.Context(), creator)
	if err != nil {
		writeDomainError(w, r, h.logger, "withdraw creator fees", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "withdrawn",
		"amount": amount,
	})
}

// GetProtocolFees returns the accrued protocol fee balance. Owner only.
// GET /api/admin/fees
func (h *EarningsHandler) GetProtocolFees(w http.ResponseWriter, r *http.Request) {
	balance, err := h.earnings.ProtocolFees(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "get protocol fees", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

// WithdrawProtocolFees pays out the entire accrued protocol fee balance.
// Owner only.
// POST /api/admin/fees/withdraw
func (h *EarningsHandler) WithdrawProtocolFees(w http.ResponseWriter, r *http.Request) {
	amount, err := h.earnings.WithdrawProtocolFees(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "withdraw protocol fees", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "withdrawn",
		"amount": amount,
	})
}
