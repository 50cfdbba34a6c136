// Package matcher runs the per-pair match/settle/residual cycle:
// it is the single place that calls into orderbook, settlement, and the
// market registry for one incoming command.
package matcher

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/ledger"
	"github.com/axiomex/matchengine/pkg/app/core/market"
	"github.com/axiomex/matchengine/pkg/app/core/model"
	"github.com/axiomex/matchengine/pkg/app/core/orderbook"
	"github.com/axiomex/matchengine/pkg/app/core/settlement"
)

// Engine owns the resident book and ledger cache for exactly one trading
// pair. One Engine per pair worker; never shared across pairs.
type Engine struct {
	mkt    *model.Market
	book   *orderbook.OrderBook
	ledger *ledger.Manager
}

func New(mkt *model.Market, lg *ledger.Manager) *Engine {
	return &Engine{mkt: mkt, book: orderbook.New(), ledger: lg}
}

// LoadResident seeds the book with every still-active order for this pair,
// the worker startup step of §4.6 step 2.
func (e *Engine) LoadResident(orders []*model.Order) {
	for _, o := range orders {
		if o.IsActive() {
			e.book.Insert(o)
		}
	}
}

// Place runs §4.2 end to end for one incoming order: minimum-size check,
// idempotent-retry check, entry lock, match, settle, and book-as-residual
// insertion. now is the batch's timestamp, shared by every trade and
// transaction this call produces. The returned makers are every resident
// order this call touched (filled or partially filled), which the caller
// persists alongside the incoming order. The returned bool is true only
// when the match actually moved the market's current_price, which is
// narrower than "trades happened" whenever the last trade prints at the
// price already in effect.
func (e *Engine) Place(o *model.Order, now time.Time) (*settlement.Result, []*model.Order, bool, error) {
	if !market.MeetsMinimum(e.mkt, o.Volume, o.Price) {
		return nil, nil, false, nil // dropped silently, §4.2 step 1
	}
	if e.book.Resident(o.ID) {
		return nil, nil, false, nil // idempotent retry, §4.2 step 2
	}

	if err := settlement.EntryLock(e.ledger, o); err != nil {
		return nil, nil, false, err
	}

	fills := e.book.Match(o)

	idx := &settlement.IndexSeq{}
	result, err := settlement.Settle(e.ledger, e.mkt, o, fills, idx, now)
	if err != nil {
		return nil, nil, false, err
	}

	if !o.RemainingVolume.IsZero() {
		e.book.Insert(o)
	} else {
		o.MarkFilled(now)
	}
	makers := make([]*model.Order, len(fills))
	for i, f := range fills {
		if f.Maker.RemainingVolume.IsZero() {
			f.Maker.MarkFilled(now)
		}
		makers[i] = f.Maker
	}

	priceChanged := false
	if len(result.Trades) > 0 {
		lastPrice := result.Trades[len(result.Trades)-1].Price
		if !lastPrice.Equal(e.mkt.CurrentPrice) {
			e.mkt.CurrentPrice = lastPrice
			priceChanged = true
		}
	}

	return result, makers, priceChanged, nil
}

// CancelResult describes the balance release one canceled order needs.
type CancelResult struct {
	OrderID             uuid.UUID
	UserID              uuid.UUID
	LockingCurrency     string
	ReleasedLockedAmount decimal.Decimal
}

// Cancel marks each still-active id canceled, removes it from the book,
// and unlocks its remaining locked amount. Unknown or already
// inactive ids are silently skipped for at-least-once idempotency.
func (e *Engine) Cancel(orders []*model.Order, now time.Time) ([]CancelResult, error) {
	var out []CancelResult
	for _, o := range orders {
		if !o.IsActive() {
			continue
		}
		released := o.RemainingLockedAmount()
		if err := e.ledger.Unlock(o.UserID, o.LockingCurrency(), released); err != nil {
			return out, err
		}
		o.MarkCanceled(now)
		e.book.Remove(o.Side, o.ID)
		out = append(out, CancelResult{
			OrderID:              o.ID,
			UserID:               o.UserID,
			LockingCurrency:      o.LockingCurrency(),
			ReleasedLockedAmount: released,
		})
	}
	return out, nil
}

// TopN exposes the book's top-of-book snapshot for publication.
func (e *Engine) TopN(side model.Side, limit int) []orderbook.Level {
	return e.book.TopN(side, limit)
}

// Find returns a resident order by id, or nil if it isn't (or is no longer)
// resting in the book. The cancel command only carries order ids; the
// caller resolves them through here before calling Cancel.
func (e *Engine) Find(id uuid.UUID) *model.Order {
	return e.book.Find(id)
}

// Market returns the market this engine is pinned to.
func (e *Engine) Market() *model.Market { return e.mkt }
