package matcher

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/ledger"
	"github.com/axiomex/matchengine/pkg/app/core/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newMarket() *model.Market {
	return &model.Market{
		Base: "BTC", Quote: "USDT",
		CurrentPrice:   d("0"),
		MakerFee:       d("0.001"),
		TakerFee:       d("0.002"),
		MinOrderAmount: d("0.0001"),
	}
}

func newOrder(side model.Side, price, volume string) *model.Order {
	v := decimal.RequireFromString(volume)
	return &model.Order{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Side:            side,
		Base:            "BTC",
		Quote:           "USDT",
		Volume:          v,
		RemainingVolume: v,
		Price:           decimal.RequireFromString(price),
	}
}

func newEngine(mkt *model.Market) *Engine {
	return New(mkt, ledger.NewManager(nil))
}

func fund(e *Engine, userID uuid.UUID, currency, amount string) {
	if _, err := e.ledger.Deposit(userID, currency, d(amount)); err != nil {
		panic(err)
	}
}

// TestPlace_S1 is SPEC_FULL.md §8's partial-match scenario.
func TestPlace_S1(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	a1 := newOrder(model.SideSell, "10000", "20")
	a2 := newOrder(model.SideSell, "10000", "25")
	a3 := newOrder(model.SideSell, "11000", "30")
	for _, o := range []*model.Order{a1, a2, a3} {
		fund(e, o.UserID, "BTC", "1000")
		if _, _, _, err := e.Place(o, now); err != nil {
			t.Fatalf("seeding ask failed: %v", err)
		}
	}

	buy := newOrder(model.SideBuy, "10000", "30")
	fund(e, buy.UserID, "USDT", "1000000")
	result, makers, _, err := e.Place(buy, now)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	if len(result.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(result.Trades))
	}
	if !result.Trades[0].Volume.Equal(d("20")) || !result.Trades[1].Volume.Equal(d("10")) {
		t.Errorf("unexpected trade volumes: %+v", result.Trades)
	}
	if len(makers) != 2 {
		t.Fatalf("expected 2 touched makers, got %d", len(makers))
	}
	if a1.FilledAt == nil {
		t.Error("a1 should be marked filled")
	}
	if a2.FilledAt != nil {
		t.Error("a2 should still be partially resident, not filled")
	}
	if !a2.RemainingVolume.Equal(d("15")) {
		t.Errorf("a2 remaining = %s, want 15", a2.RemainingVolume)
	}
	if buy.FilledAt == nil {
		t.Error("incoming buy should be fully filled")
	}
	if !mkt.CurrentPrice.Equal(d("10000")) {
		t.Errorf("market current_price = %s, want 10000", mkt.CurrentPrice)
	}
}

// TestPlace_S2 cancels a partially-filled resting order and checks the
// released lock.
func TestPlace_S2(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	ask := newOrder(model.SideSell, "10000", "25")
	fund(e, ask.UserID, "BTC", "1000")
	if _, _, _, err := e.Place(ask, now); err != nil {
		t.Fatalf("place ask failed: %v", err)
	}

	buy := newOrder(model.SideBuy, "10000", "10")
	fund(e, buy.UserID, "USDT", "1000000")
	if _, _, _, err := e.Place(buy, now); err != nil {
		t.Fatalf("place buy failed: %v", err)
	}
	if !ask.RemainingVolume.Equal(d("15")) {
		t.Fatalf("ask remaining = %s, want 15 before cancel", ask.RemainingVolume)
	}

	results, err := e.Cancel([]*model.Order{ask}, now)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if len(results) != 1 || !results[0].ReleasedLockedAmount.Equal(d("15")) {
		t.Fatalf("expected 15 BTC released, got %+v", results)
	}
	if ask.CanceledAt == nil {
		t.Error("ask should be marked canceled")
	}
	if e.book.Resident(ask.ID) {
		t.Error("canceled order should no longer be resident")
	}
}

// TestPlace_S3 rejects a buy that would lock more than the user has.
func TestPlace_S3(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	buy := newOrder(model.SideBuy, "200", "1")
	fund(e, buy.UserID, "USDT", "100")

	_, _, _, err := e.Place(buy, now)
	if err == nil {
		t.Fatal("expected a not-enough-balance error")
	}
	if e.book.Resident(buy.ID) {
		t.Error("rejected order must never be resident")
	}
}

// TestPlace_S5 exercises a self-match: the same user as both sides.
func TestPlace_S5(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	user := uuid.New()
	ask := newOrder(model.SideSell, "10000", "5")
	ask.UserID = user
	fund(e, user, "BTC", "100")
	if _, _, _, err := e.Place(ask, now); err != nil {
		t.Fatalf("place ask failed: %v", err)
	}

	bid := newOrder(model.SideBuy, "10000", "5")
	bid.UserID = user
	fund(e, user, "USDT", "1000000")
	result, _, _, err := e.Place(bid, now)
	if err != nil {
		t.Fatalf("self-match Place failed: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	if len(result.Transactions) != 6 {
		t.Fatalf("expected 6 transactions per trade, got %d", len(result.Transactions))
	}
}

// TestPlace_S6 redelivers the same place command twice; the second
// delivery must be a silent no-op.
func TestPlace_S6(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	o := newOrder(model.SideBuy, "9000", "1")
	fund(e, o.UserID, "USDT", "100000")

	result1, _, _, err := e.Place(o, now)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if result1 == nil {
		t.Fatal("first delivery should produce a result")
	}

	result2, makers2, _, err := e.Place(o, now)
	if err != nil {
		t.Fatalf("second delivery returned error: %v", err)
	}
	if result2 != nil || makers2 != nil {
		t.Errorf("redelivered order should be dropped silently, got result=%v makers=%v", result2, makers2)
	}
}

func TestPlace_DropsBelowMinimumNotional(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	o := newOrder(model.SideBuy, "1", "0.00001")
	fund(e, o.UserID, "USDT", "100")

	result, makers, _, err := e.Place(o, now)
	if err != nil || result != nil || makers != nil {
		t.Errorf("below-minimum order should drop silently, got result=%v makers=%v err=%v", result, makers, err)
	}
	if e.book.Resident(o.ID) {
		t.Error("dropped order must never be resident")
	}
}

func TestCancel_AlreadyInactiveIsNoOp(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	o := newOrder(model.SideSell, "10000", "5")
	fund(e, o.UserID, "BTC", "100")
	if _, _, _, err := e.Place(o, now); err != nil {
		t.Fatalf("place failed: %v", err)
	}
	if _, err := e.Cancel([]*model.Order{o}, now); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}

	results, err := e.Cancel([]*model.Order{o}, now)
	if err != nil {
		t.Fatalf("re-cancel returned error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("re-canceling an inactive order should be a no-op, got %+v", results)
	}
}

func TestFind(t *testing.T) {
	mkt := newMarket()
	e := newEngine(mkt)
	now := time.Unix(0, 0)

	o := newOrder(model.SideSell, "10000", "5")
	fund(e, o.UserID, "BTC", "100")
	if _, _, _, err := e.Place(o, now); err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if got := e.Find(o.ID); got != o {
		t.Errorf("Find returned %v, want the resident order", got)
	}
	if got := e.Find(uuid.New()); got != nil {
		t.Errorf("Find of an unknown id should return nil, got %v", got)
	}
}
