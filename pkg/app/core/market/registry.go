package market

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// Registry indexes every Market by pair in a thread-safe manner. Markets
// are created externally; the engine only ever mutates
// CurrentPrice, through UpdatePrice under the registry's own lock.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*model.Market
}

// NewRegistry creates an empty market registry.
func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]*model.Market),
	}
}

// Register adds a new market, rejecting a duplicate pair.
func (r *Registry) Register(m *model.Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	if err := Validate(m); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := m.Pair().Slug()
	if _, exists := r.markets[key]; exists {
		return fmt.Errorf("market %s already registered", m.Pair())
	}
	r.markets[key] = m
	return nil
}

// Get retrieves a market by pair.
func (r *Registry) Get(pair model.Pair) (*model.Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[pair.Slug()]
	if !exists {
		return nil, fmt.Errorf("market %s not found", pair)
	}
	return m, nil
}

// List returns every registered market.
func (r *Registry) List() []*model.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}

// UpdatePrice sets current_price, the one field the engine is allowed to
// mutate on an otherwise externally-owned Market row.
func (r *Registry) UpdatePrice(pair model.Pair, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[pair.Slug()]
	if !exists {
		return fmt.Errorf("market %s not found", pair)
	}
	m.CurrentPrice = price
	return nil
}

// Count returns the total number of registered markets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Exists checks if a market is registered.
func (r *Registry) Exists(pair model.Pair) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[pair.Slug()]
	return exists
}
