package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPair_SlugLowercases(t *testing.T) {
	p := Pair{Base: "BTC", Quote: "USDT"}
	if got := p.Slug(); got != "btc_usdt" {
		t.Errorf("Slug() = %q, want %q", got, "btc_usdt")
	}
	if got := p.String(); got != "BTC/USDT" {
		t.Errorf("String() = %q, want %q", got, "BTC/USDT")
	}
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Error("SideBuy.Opposite() should be SideSell")
	}
	if SideSell.Opposite() != SideBuy {
		t.Error("SideSell.Opposite() should be SideBuy")
	}
}

func TestOrder_LockingCurrencyAndLockedAmount(t *testing.T) {
	buy := &Order{Side: SideBuy, Base: "BTC", Quote: "USDT", Volume: d("2"), RemainingVolume: d("2"), Price: d("100")}
	if buy.LockingCurrency() != "USDT" {
		t.Errorf("buy LockingCurrency = %s, want USDT", buy.LockingCurrency())
	}
	if !buy.LockedAmount().Equal(d("200")) {
		t.Errorf("buy LockedAmount = %s, want 200", buy.LockedAmount())
	}

	sell := &Order{Side: SideSell, Base: "BTC", Quote: "USDT", Volume: d("2"), RemainingVolume: d("2"), Price: d("100")}
	if sell.LockingCurrency() != "BTC" {
		t.Errorf("sell LockingCurrency = %s, want BTC", sell.LockingCurrency())
	}
	if !sell.LockedAmount().Equal(d("2")) {
		t.Errorf("sell LockedAmount = %s, want 2", sell.LockedAmount())
	}
}

func TestOrder_RemainingLockedAmount(t *testing.T) {
	buy := &Order{Side: SideBuy, RemainingVolume: d("1.5"), Price: d("200")}
	if !buy.RemainingLockedAmount().Equal(d("300")) {
		t.Errorf("buy RemainingLockedAmount = %s, want 300", buy.RemainingLockedAmount())
	}
	sell := &Order{Side: SideSell, RemainingVolume: d("1.5"), Price: d("200")}
	if !sell.RemainingLockedAmount().Equal(d("1.5")) {
		t.Errorf("sell RemainingLockedAmount = %s, want 1.5", sell.RemainingLockedAmount())
	}
}

func TestOrder_IsActive(t *testing.T) {
	o := &Order{}
	if !o.IsActive() {
		t.Error("a fresh order should be active")
	}
	now := o.CreatedAt
	o.MarkFilled(now)
	if o.IsActive() {
		t.Error("a filled order should not be active")
	}

	o2 := &Order{}
	o2.MarkCanceled(now)
	if o2.IsActive() {
		t.Error("a canceled order should not be active")
	}
}

func TestBalance_Validate(t *testing.T) {
	tests := []struct {
		name    string
		b       Balance
		wantErr bool
	}{
		{"ok", Balance{Amount: d("10"), LockedAmount: d("5")}, false},
		{"negative amount", Balance{Amount: d("-1")}, true},
		{"negative locked", Balance{Amount: d("10"), LockedAmount: d("-1")}, true},
		{"locked exceeds amount", Balance{Amount: d("5"), LockedAmount: d("10")}, true},
		{"zero is fine", Balance{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.b.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBalance_Available(t *testing.T) {
	b := Balance{Amount: d("10"), LockedAmount: d("4")}
	if !b.Available().Equal(d("6")) {
		t.Errorf("Available() = %s, want 6", b.Available())
	}
}

func TestTrade_QuoteVolume(t *testing.T) {
	tr := &Trade{Price: d("100"), Volume: d("3")}
	if !tr.QuoteVolume().Equal(d("300")) {
		t.Errorf("QuoteVolume() = %s, want 300", tr.QuoteVolume())
	}
}

func TestError_KindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNotEnoughBalance, "not_enough_balance"},
		{KindConflict, "conflict"},
		{KindInternal, "internal"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := &InvariantError{Msg: "boom"}
	err := NewInternal("wrapped", cause)
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the wrapped cause")
	}
	if err.Error() != "wrapped: boom" {
		t.Errorf("Error() = %q, want %q", err.Error(), "wrapped: boom")
	}
}
