package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGet_MaterializesZeroRow(t *testing.T) {
	m := NewManager(nil)
	u := uuid.New()
	b, err := m.Get(u, "BTC")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !b.Amount.IsZero() || !b.LockedAmount.IsZero() {
		t.Errorf("expected zero row, got %+v", b)
	}
}

type stubLoader struct {
	balance *model.Balance
	err     error
}

func (s stubLoader) LoadBalance(uuid.UUID, string) (*model.Balance, error) {
	return s.balance, s.err
}

func TestGet_UsesLoaderOnFirstReference(t *testing.T) {
	u := uuid.New()
	loaded := &model.Balance{UserID: u, Currency: "BTC", Amount: d("5"), LockedAmount: d("1")}
	m := NewManager(stubLoader{balance: loaded})

	b, err := m.Get(u, "BTC")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !b.Amount.Equal(d("5")) {
		t.Errorf("expected loaded amount 5, got %s", b.Amount)
	}

	// Second reference must not hit the loader again; mutate the cached
	// row and confirm Get still returns the mutated value.
	b.Amount = d("6")
	again, _ := m.Get(u, "BTC")
	if !again.Amount.Equal(d("6")) {
		t.Errorf("expected cached mutation to stick, got %s", again.Amount)
	}
}

func TestLock_RejectsInsufficientBalance(t *testing.T) {
	u := uuid.New()
	m := NewManager(stubLoader{balance: &model.Balance{UserID: u, Currency: "USDT", Amount: d("100")}})

	err := m.Lock(u, "USDT", d("200"))
	if err == nil {
		t.Fatal("expected an error locking more than available")
	}
	var me *model.Error
	if !errors.As(err, &me) || me.Kind != model.KindNotEnoughBalance {
		t.Errorf("expected KindNotEnoughBalance, got %v", err)
	}
}

func TestLock_SucceedsWithinAvailable(t *testing.T) {
	u := uuid.New()
	m := NewManager(stubLoader{balance: &model.Balance{UserID: u, Currency: "USDT", Amount: d("100")}})

	if err := m.Lock(u, "USDT", d("40")); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	b := m.GetReadOnly(u, "USDT")
	if !b.LockedAmount.Equal(d("40")) {
		t.Errorf("locked_amount = %s, want 40", b.LockedAmount)
	}
	if !b.Available().Equal(d("60")) {
		t.Errorf("available = %s, want 60", b.Available())
	}
}

func TestUnlock_RejectsMoreThanLocked(t *testing.T) {
	u := uuid.New()
	m := NewManager(stubLoader{balance: &model.Balance{UserID: u, Currency: "USDT", Amount: d("100"), LockedAmount: d("10")}})

	err := m.Unlock(u, "USDT", d("20"))
	if err == nil {
		t.Fatal("expected an error unlocking more than locked")
	}
	var me *model.Error
	if !errors.As(err, &me) || me.Kind != model.KindConflict {
		t.Errorf("expected KindConflict, got %v", err)
	}
}

func TestApplyDelta_CreditAndDebit(t *testing.T) {
	u := uuid.New()
	m := NewManager(nil)

	if _, err := m.ApplyDelta(u, "BTC", d("10")); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if _, err := m.ApplyDelta(u, "BTC", d("-3")); err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	b := m.GetReadOnly(u, "BTC")
	if !b.Amount.Equal(d("7")) {
		t.Errorf("amount = %s, want 7", b.Amount)
	}
}

func TestApplyDelta_RejectsNegativeResult(t *testing.T) {
	u := uuid.New()
	m := NewManager(nil)
	if _, err := m.ApplyDelta(u, "BTC", d("-1")); err == nil {
		t.Fatal("expected an invariant error debiting a zero balance")
	}
}

func TestGetReadOnly_NilUntilReferenced(t *testing.T) {
	m := NewManager(nil)
	if got := m.GetReadOnly(uuid.New(), "BTC"); got != nil {
		t.Errorf("expected nil for an unreferenced balance, got %v", got)
	}
}

func TestDeposit_RejectsNonPositive(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Deposit(uuid.New(), "BTC", d("0")); err == nil {
		t.Fatal("expected an error depositing zero")
	}
	if _, err := m.Deposit(uuid.New(), "BTC", d("-1")); err == nil {
		t.Fatal("expected an error depositing a negative amount")
	}
}
