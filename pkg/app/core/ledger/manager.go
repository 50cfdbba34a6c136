package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// Loader fetches a persisted balance row that isn't yet in the in-memory
// cache. Implemented by pkg/storage against Postgres; nil, nil means the
// row doesn't exist yet and should be materialized at zero.
type Loader interface {
	LoadBalance(userID uuid.UUID, currency string) (*model.Balance, error)
}

// Manager is the in-memory balance cache the matcher and settlement code
// read and mutate between commits. It mirrors the teacher's account
// manager shape, an RWMutex-guarded map in front of a persistence
// loader, generalized from a single USDC ledger to per-currency rows.
type Manager struct {
	mu       sync.RWMutex
	balances map[key]*model.Balance
	loader   Loader
}

func NewManager(loader Loader) *Manager {
	return &Manager{
		balances: make(map[key]*model.Balance),
		loader:   loader,
	}
}

// Get returns the cached balance for (userID, currency), loading it from
// the backing store or materializing a zero row if this is the first
// reference. Never returns nil.
func (m *Manager) Get(userID uuid.UUID, currency string) (*model.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(userID, currency)
}

func (m *Manager) getLocked(userID uuid.UUID, currency string) (*model.Balance, error) {
	k := keyOf(userID, currency)
	if b, ok := m.balances[k]; ok {
		return b, nil
	}

	var b *model.Balance
	if m.loader != nil {
		loaded, err := m.loader.LoadBalance(userID, currency)
		if err != nil {
			return nil, fmt.Errorf("load balance %s/%s: %w", userID, currency, err)
		}
		b = loaded
	}
	if b == nil {
		b = newBalance(userID, currency)
	}
	m.balances[k] = b
	return b, nil
}

// GetReadOnly returns the cached balance without touching the loader;
// nil if it has never been referenced this process.
func (m *Manager) GetReadOnly(userID uuid.UUID, currency string) *model.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[keyOf(userID, currency)]
}

// Put installs a balance row directly into the cache, used when storage
// hands back the authoritative post-commit row so the cache and the
// database never drift.
func (m *Manager) Put(b *model.Balance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[keyOf(b.UserID, b.Currency)] = b
}

// Deposit credits amount (already ROUND_DOWN-quantized by the blockchain
// sync daemon) to a balance. Amount must be strictly positive.
func (m *Manager) Deposit(userID uuid.UUID, currency string, amount decimal.Decimal) (*model.Balance, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive: %s", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.getLocked(userID, currency)
	if err != nil {
		return nil, err
	}
	b.Amount = b.Amount.Add(amount)
	if err := validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Lock increases locked_amount by amount, rejecting the call with a
// model.KindNotEnoughBalance error if available balance can't cover it.
func (m *Manager) Lock(userID uuid.UUID, currency string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("lock amount cannot be negative: %s", amount)
	}
	if amount.IsZero() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.getLocked(userID, currency)
	if err != nil {
		return err
	}
	if b.Available().LessThan(amount) {
		return model.NewNotEnoughBalance(fmt.Sprintf(
			"insufficient %s balance: have %s available, need %s", currency, b.Available(), amount))
	}
	b.LockedAmount = b.LockedAmount.Add(amount)
	return validate(b)
}

// Unlock decreases locked_amount by amount.
func (m *Manager) Unlock(userID uuid.UUID, currency string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("unlock amount cannot be negative: %s", amount)
	}
	if amount.IsZero() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.getLocked(userID, currency)
	if err != nil {
		return err
	}
	if b.LockedAmount.LessThan(amount) {
		return model.NewConflict(fmt.Sprintf(
			"cannot unlock more than locked: locked=%s, unlock=%s", b.LockedAmount, amount))
	}
	b.LockedAmount = b.LockedAmount.Sub(amount)
	return validate(b)
}

// ApplyDelta applies a signed settlement transaction amount (positive
// credit, negative debit) to Amount, without touching LockedAmount. Used
// for the six per-trade transactions in §4.3.
func (m *Manager) ApplyDelta(userID uuid.UUID, currency string, delta decimal.Decimal) (*model.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.getLocked(userID, currency)
	if err != nil {
		return nil, err
	}
	b.Amount = b.Amount.Add(delta)
	if err := validate(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate re-checks the invariant for one balance without mutating it.
func (m *Manager) Validate(userID uuid.UUID, currency string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[keyOf(userID, currency)]
	if !ok {
		return nil
	}
	return validate(b)
}

// List returns a snapshot of every cached balance.
func (m *Manager) List() []*model.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Balance, 0, len(m.balances))
	for _, b := range m.balances {
		out = append(out, b)
	}
	return out
}

// Count returns the number of cached balance rows.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.balances)
}
