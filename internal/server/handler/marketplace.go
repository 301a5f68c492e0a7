package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/duelhouse/duelengine/internal/domain"
)

// MarketplaceService defines the secondary-market operations the marketplace
// handler needs.
type MarketplaceService interface {
	Sell(ctx context.Context, seller domain.Account, claim domain.ClaimID, quantity, unitPrice domain.Money, asOf time.Time) (domain.Listing, error)
	CancelSell(ctx context.Context, caller domain.Account, claim domain.ClaimID, index int64) error
	Buy(ctx context.Context, buyer domain.Account, claim domain.ClaimID, fills []domain.TradeFill) error
	Listings(ctx context.Context, claim domain.ClaimID, opts domain.ListOpts) ([]domain.Listing, error)
}

// MarketplaceHandler serves claim-token marketplace HTTP endpoints.
type MarketplaceHandler struct {
	market MarketplaceService
	logger *slog.Logger
}

// NewMarketplaceHandler creates a MarketplaceHandler with the given service
// and logger.
func NewMarketplaceHandler(market MarketplaceService, logger *slog.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{
		market: market,
		logger: logger,
	}
}

// createListingBody is the payload for listing claim tokens for sale.
type createListingBody struct {
	Seller    string       `json:"seller"`
	DuelID    uuid.UUID    `json:"duel_id"`
	Option    int          `json:"option"`
	Quantity  domain.Money `json:"quantity"`
	UnitPrice domain.Money `json:"unit_price"`
}

// CreateListing lists a quantity of claim tokens at a unit price, moving the
// quantity from the seller's free balance into escrow.
// POST /api/market/listings
func (h *MarketplaceHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var body createListingBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	seller, err := domain.ParseAccount(body.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claim := domain.ClaimID{DuelID: body.DuelID, Option: body.Option}
	listing, err := h.market.Sell(r.Context(), seller, claim, body.Quantity, body.UnitPrice, time.Now().UTC())
	if err != nil {
		writeDomainError(w, r, h.logger, "create listing", err)
		return
	}

	writeJSON(w, http.StatusCreated, listing)
}

// cancelListingBody identifies the caller cancelling a listing. Only the
// seller may cancel.
type cancelListingBody struct {
	Caller string `json:"caller"`
}

// CancelListing removes a listing and returns its escrowed claims to the
// seller's free balance.
// DELETE /api/market/listings/{duel}/{option}/{index}
func (h *MarketplaceHandler) CancelListing(w http.ResponseWriter, r *http.Request) {
	claim, index, ok := h.listingPath(w, r)
	if !ok {
		return
	}

	var body cancelListingBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, err := domain.ParseAccount(body.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.market.CancelSell(r.Context(), caller, claim, index); err != nil {
		writeDomainError(w, r, h.logger, "cancel listing", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// listListingsResponse wraps the listings endpoint output with pagination
// metadata.
type listListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListListings returns the open listings of one claim token, ordered by
// listing index.
// GET /api/market/listings/{duel}/{option}?limit=50&offset=0
func (h *MarketplaceHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.claimPath(w, r)
	if !ok {
		return
	}
	opts := parseListOpts(r)

	listings, err := h.market.Listings(r.Context(), claim, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "list listings", err)
		return
	}

	writeJSON(w, http.StatusOK, listListingsResponse{
		Listings: listings,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// buyBody is the payload for buying claims out of one or more listings of a
// single claim token. The buy is atomic: every fill succeeds or none do.
type buyBody struct {
	Buyer  string             `json:"buyer"`
	DuelID uuid.UUID          `json:"duel_id"`
	Option int                `json:"option"`
	Fills  []domain.TradeFill `json:"fills"`
}

// Buy purchases claim quantities from the named listings, transferring value
// to the sellers' earnings net of fees.
// POST /api/market/buy
func (h *MarketplaceHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var body buyBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	buyer, err := domain.ParseAccount(body.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Fills) == 0 {
		writeError(w, http.StatusBadRequest, "no fills")
		return
	}

	claim := domain.ClaimID{DuelID: body.DuelID, Option: body.Option}
	if err := h.market.Buy(r.Context(), buyer, claim, body.Fills); err != nil {
		writeDomainError(w, r, h.logger, "buy", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "filled"})
}

// claimPath parses the {duel} and {option} path parameters into a ClaimID.
func (h *MarketplaceHandler) claimPath(w http.ResponseWriter, r *http.Request) (domain.ClaimID, bool) {
	duelID, ok := uuidParam(w, r, "duel")
	if !ok {
		return domain.ClaimID{}, false
	}
	option, err := strconv.Atoi(pathParam(r, "option"))
	if err != nil || option < 0 {
		writeError(w, http.StatusBadRequest, "invalid option")
		return domain.ClaimID{}, false
	}
	return domain.ClaimID{DuelID: duelID, Option: option}, true
}

// listingPath parses {duel}, {option}, and {index} path parameters.
func (h *MarketplaceHandler) listingPath(w http.ResponseWriter, r *http.Request) (domain.ClaimID, int64, bool) {
	claim, ok := h.claimPath(w, r)
	if !ok {
		return domain.ClaimID{}, 0, false
	}
	index, err := strconv.ParseInt(pathParam(r, "index"), 10, 64)
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid index")
		return domain.ClaimID{}, 0, false
	}
	return claim, index, true
}
