package worker

import (
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/axiomex/matchengine/pkg/app/core/ledger"
	"github.com/axiomex/matchengine/pkg/app/core/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestWorker() *Worker {
	mkt := &model.Market{Base: "BTC", Quote: "USDT", MakerFee: d("0.001"), TakerFee: d("0.002"), MinOrderAmount: d("0.0001")}
	return &Worker{
		pair: mkt.Pair(),
		mkt:  mkt,
		log:  zap.NewNop().Sugar(),
		lg:   ledger.NewManager(nil),
	}
}

func TestTouchedBalances_DedupesAndIncludesFeeUser(t *testing.T) {
	w := newTestWorker()
	u1 := uuid.New()
	u2 := uuid.New()

	w.lg.Deposit(u1, "BTC", d("1"))
	w.lg.Deposit(u1, "USDT", d("100"))
	w.lg.Deposit(u2, "BTC", d("2"))
	w.lg.Deposit(model.FeeUserID, "BTC", d("0.01"))

	o1 := &model.Order{UserID: u1}
	o2 := &model.Order{UserID: u1} // same user again, must not duplicate
	o3 := &model.Order{UserID: u2}

	got := w.touchedBalances([]*model.Order{o1, o2, o3})

	seen := make(map[string]int)
	for _, b := range got {
		seen[b.UserID.String()+"/"+b.Currency]++
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("balance %s appeared %d times, want exactly once", k, n)
		}
	}
	if seen[u1.String()+"/BTC"] == 0 {
		t.Error("expected u1/BTC in touched balances")
	}
	if seen[model.FeeUserID.String()+"/BTC"] == 0 {
		t.Error("fee user's BTC balance should always be included")
	}
	// fee user's USDT was never referenced via Deposit/Get, so
	// GetReadOnly returns nil and touchedBalances must skip it rather
	// than include a phantom zero row.
	if seen[model.FeeUserID.String()+"/USDT"] != 0 {
		t.Error("unreferenced fee-user USDT balance should not appear")
	}
}

func TestTouchedBalances_SkipsUnreferencedRows(t *testing.T) {
	w := newTestWorker()
	o := &model.Order{UserID: uuid.New()}
	got := w.touchedBalances([]*model.Order{o})
	if len(got) != 0 {
		t.Errorf("expected no balances for an order whose currencies were never referenced, got %v", got)
	}
}

func TestAckByKind_HandlesEveryKindWithoutPanic(t *testing.T) {
	w := newTestWorker()
	msg := &nats.Msg{Sub: &nats.Subscription{}}
	// ackByKind must not panic classifying the error kind even though the
	// message has no real subscription to ack against in this unit test;
	// Ack()/Nak() on a reply-less message just returns an error we ignore,
	// matching worker.go's own `_ = msg.Ack()` discipline.
	w.ackByKind(msg, model.NewNotEnoughBalance("insufficient funds"))
	w.ackByKind(msg, model.NewConflict("raced"))
	w.ackByKind(msg, model.NewInternal("boom", nil))
}
