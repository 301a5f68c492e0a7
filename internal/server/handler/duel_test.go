package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/service"
)

var testAccount = "0x1111111111111111111111111111111111111111"

// stubLifecycle implements LifecycleService with canned responses.
type stubLifecycle struct {
	duel    domain.Duel
	getErr  error
	joinErr error

	joined struct {
		option  int
		amount  domain.Money
		account domain.Account
	}
	cancelledThreshold  bool
	cancelledUnresolved bool
}

func (s *stubLifecycle) RequestCreate(_ context.Context, requester domain.Account, p domain.CreateParams, asOf time.Time) (domain.CreateRequest, error) {
	return domain.CreateRequest{
		ID:        uuid.New(),
		Requester: requester,
		Params:    p,
		Status:    domain.RequestStatusPending,
		CreatedAt: asOf,
	}, nil
}

func (s *stubLifecycle) ApproveCreate(context.Context, uuid.UUID, time.Time) (domain.Duel, error) {
	return s.duel, nil
}

func (s *stubLifecycle) RevokeCreate(context.Context, uuid.UUID, domain.Account) error {
	return nil
}

func (s *stubLifecycle) Join(_ context.Context, _ uuid.UUID, option int, amount domain.Money, account domain.Account, _ time.Time) error {
	if s.joinErr != nil {
		return s.joinErr
	}
	s.joined.option = option
	s.joined.amount = amount
	s.joined.account = account
	return nil
}

func (s *stubLifecycle) Start(context.Context, uuid.UUID, *float64, time.Time) error {
	return nil
}

func (s *stubLifecycle) CancelIfThresholdNotMet(context.Context, uuid.UUID, time.Time) error {
	s.cancelledThreshold = true
	return nil
}

func (s *stubLifecycle) CancelUnresolved(context.Context, uuid.UUID, time.Time) error {
	s.cancelledUnresolved = true
	return nil
}

func (s *stubLifecycle) GetDuel(context.Context, uuid.UUID) (domain.Duel, error) {
	if s.getErr != nil {
		return domain.Duel{}, s.getErr
	}
	return s.duel, nil
}

func (s *stubLifecycle) ListDuels(context.Context, domain.ListOpts) ([]domain.Duel, error) {
	return []domain.Duel{s.duel}, nil
}

// stubSettlement implements SettlementService.
type stubSettlement struct {
	progress service.Progress
	err      error
}

func (s *stubSettlement) Settle(context.Context, uuid.UUID, domain.ResolutionInput, time.Time) (service.Progress, error) {
	return s.progress, s.err
}

func (s *stubSettlement) ContinueWinningsDistribution(context.Context, uuid.UUID) (service.Progress, error) {
	return s.progress, s.err
}

// stubRefunds implements RefundService.
type stubRefunds struct {
	progress service.Progress
}

func (s *stubRefunds) ContinueRefunds(context.Context, uuid.UUID) (service.Progress, error) {
	return s.progress, nil
}

func newTestDuelHandler(lc *stubLifecycle, st *stubSettlement) *DuelHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if st == nil {
		st = &stubSettlement{}
	}
	return NewDuelHandler(lc, st, &stubRefunds{}, logger)
}

func TestGetDuelMapsNotFound(t *testing.T) {
	h := newTestDuelHandler(&stubLifecycle{getErr: domain.ErrNotFound}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/duels/"+uuid.NewString(), nil)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.GetDuel(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDuelRejectsMalformedID(t *testing.T) {
	h := newTestDuelHandler(&stubLifecycle{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/duels/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	h.GetDuel(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinPassesBodyToService(t *testing.T) {
	lc := &stubLifecycle{}
	h := newTestDuelHandler(lc, nil)

	body := `{"account":"` + testAccount + `","option":1,"amount":25000000}`
	req := httptest.NewRequest(http.MethodPost, "/api/duels/x/join", strings.NewReader(body))
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.Join(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, lc.joined.option)
	assert.Equal(t, domain.MoneyFromWhole(25), lc.joined.amount)
	assert.Equal(t, domain.Account(testAccount), lc.joined.account)
}

func TestJoinMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrMarketClosed, http.StatusConflict},
		{domain.ErrWagerTooSmall, http.StatusBadRequest},
		{domain.ErrCapExceeded, http.StatusBadRequest},
		{domain.ErrLockHeld, http.StatusConflict},
	}
	for _, tc := range cases {
		h := newTestDuelHandler(&stubLifecycle{joinErr: tc.err}, nil)

		body := `{"account":"` + testAccount + `","option":0,"amount":1000000}`
		req := httptest.NewRequest(http.MethodPost, "/api/duels/x/join", strings.NewReader(body))
		req.SetPathValue("id", uuid.NewString())
		rec := httptest.NewRecorder()
		h.Join(rec, req)

		assert.Equal(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestSettleReportsProgress(t *testing.T) {
	st := &stubSettlement{progress: service.Progress{
		Processed: 50,
		Cursor:    domain.Cursor{Next: 50, Processed: 50},
	}}
	h := newTestDuelHandler(&stubLifecycle{}, st)

	winner := 0
	body, _ := json.Marshal(settleBody{WinningOption: &winner})
	req := httptest.NewRequest(http.MethodPost, "/api/duels/x/settle", strings.NewReader(string(body)))
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.Settle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp progressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 50, resp.Processed)
	assert.False(t, resp.Done)
}

func TestCancelDispatchesByStatus(t *testing.T) {
	lc := &stubLifecycle{duel: domain.Duel{Status: domain.DuelStatusBootstrapped}}
	h := newTestDuelHandler(lc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/duels/x/cancel", nil)
	req.SetPathValue("id", uuid.NewString())
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, lc.cancelledThreshold)
	assert.False(t, lc.cancelledUnresolved)

	lc = &stubLifecycle{duel: domain.Duel{Status: domain.DuelStatusLive}}
	h = newTestDuelHandler(lc, nil)

	req = httptest.NewRequest(http.MethodPost, "/api/duels/x/cancel", nil)
	req.SetPathValue("id", uuid.NewString())
	rec = httptest.NewRecorder()
	h.Cancel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, lc.cancelledUnresolved)
}
