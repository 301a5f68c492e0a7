package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/duelhouse/duelengine/internal/domain"
)

// Static is a fixed-price source for tests and the memory mode. Prices are
// set explicitly; unknown symbols fail.
type Static struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStatic creates a static source preloaded with the given prices.
func NewStatic(prices map[string]float64) *Static {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &Static{prices: cp}
}

// SetPrice overwrites the price of a symbol.
func (s *Static) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// Price returns the configured price for the symbol.
func (s *Static) Price(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("oracle: symbol %s: %w", symbol, domain.ErrNotFound)
	}
	return price, nil
}

var _ domain.PriceSource = (*Static)(nil)
