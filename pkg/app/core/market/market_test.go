package market

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mkt     *model.Market
		wantErr bool
	}{
		{"valid", &model.Market{Base: "BTC", Quote: "USDT", CurrentPrice: d("1"), MakerFee: d("0.001"), TakerFee: d("0.002"), MinOrderAmount: d("0.0001")}, false},
		{"same base and quote", &model.Market{Base: "BTC", Quote: "BTC", MinOrderAmount: d("1")}, true},
		{"negative current price", &model.Market{Base: "BTC", Quote: "USDT", CurrentPrice: d("-1"), MinOrderAmount: d("1")}, true},
		{"negative maker fee", &model.Market{Base: "BTC", Quote: "USDT", MakerFee: d("-0.1"), MinOrderAmount: d("1")}, true},
		{"zero min order amount", &model.Market{Base: "BTC", Quote: "USDT", MinOrderAmount: d("0")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mkt)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMeetsMinimum(t *testing.T) {
	mkt := &model.Market{MinOrderAmount: d("10")}
	if !MeetsMinimum(mkt, d("2"), d("5")) {
		t.Error("2 x 5 = 10 should meet a minimum of 10")
	}
	if MeetsMinimum(mkt, d("1"), d("5")) {
		t.Error("1 x 5 = 5 should not meet a minimum of 10")
	}
}

func TestFeeRate(t *testing.T) {
	mkt := &model.Market{MakerFee: d("0.001"), TakerFee: d("0.002")}
	if got := FeeRate(mkt, true); !got.Equal(d("0.002")) {
		t.Errorf("aggressor fee = %s, want taker_fee 0.002", got)
	}
	if got := FeeRate(mkt, false); !got.Equal(d("0.001")) {
		t.Errorf("maker fee = %s, want maker_fee 0.001", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	pair := model.Pair{Base: "BTC", Quote: "USDT"}
	mkt := &model.Market{Base: "BTC", Quote: "USDT", MinOrderAmount: d("1")}

	if err := r.Register(mkt); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(mkt); err == nil {
		t.Error("expected an error registering a duplicate pair")
	}
	if !r.Exists(pair) {
		t.Error("Exists should report true after Register")
	}
	got, err := r.Get(pair)
	if err != nil || got != mkt {
		t.Errorf("Get = %v, %v, want the registered market", got, err)
	}
	if err := r.UpdatePrice(pair, d("50000")); err != nil {
		t.Fatalf("UpdatePrice failed: %v", err)
	}
	if !mkt.CurrentPrice.Equal(d("50000")) {
		t.Errorf("CurrentPrice = %s, want 50000", mkt.CurrentPrice)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestRegistry_GetUnknownPair(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get(model.Pair{Base: "ETH", Quote: "USDT"}); err == nil {
		t.Error("expected an error looking up an unregistered pair")
	}
}
