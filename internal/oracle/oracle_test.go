package oracle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelhouse/duelengine/internal/domain"
	"github.com/duelhouse/duelengine/internal/oracle"
)

func TestStaticPrices(t *testing.T) {
	src := oracle.NewStatic(map[string]float64{"BTC-USD": 64_000})

	price, err := src.Price(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 64_000.0, price)

	src.SetPrice("BTC-USD", 65_500)
	price, err = src.Price(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 65_500.0, price)

	_, err = src.Price(context.Background(), "ETH-USD")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientFetchesPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price", r.URL.Path)
		assert.Equal(t, "BTC-USD", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTC-USD","price":64123.45,"ts":1767225600}`))
	}))
	defer srv.Close()

	client := oracle.NewClient(srv.URL, 5*time.Second)
	price, err := client.Price(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 64123.45, price)
}

func TestClientUnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := oracle.NewClient(srv.URL, 5*time.Second)
	_, err := client.Price(context.Background(), "NOPE-USD")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientRejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTC-USD","price":0}`))
	}))
	defer srv.Close()

	client := oracle.NewClient(srv.URL, 5*time.Second)
	_, err := client.Price(context.Background(), "BTC-USD")
	assert.Error(t, err)
}
