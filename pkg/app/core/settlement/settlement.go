// Package settlement turns the fills a match produces into trades and the
// six-transaction-per-trade balance model: it is the only place that
// mutates Balance.amount for a commit, and it takes and releases the
// locked_amount of a place. Cancellation releases locked_amount through
// the matcher's Cancel instead.
package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/ledger"
	"github.com/axiomex/matchengine/pkg/app/core/market"
	"github.com/axiomex/matchengine/pkg/app/core/model"
	"github.com/axiomex/matchengine/pkg/app/core/orderbook"
	"github.com/axiomex/matchengine/pkg/money"
)

var one = decimal.NewFromInt(1)

// IndexSeq hands out the running per-match trade index. One IndexSeq per
// incoming order's match, never shared across commands.
type IndexSeq struct{ n int }

func (s *IndexSeq) Next() int {
	n := s.n
	s.n++
	return n
}

// Result is what one successful place leaves behind, ready to persist in
// the same atomic unit as the order/book mutations.
type Result struct {
	Trades       []*model.Trade
	Transactions []*model.Transaction
}

// EntryLock locks the incoming order's full liability against its locking
// currency before any matching happens. A NotEnoughBalance error here
// means the whole place command is dropped.
func EntryLock(lg *ledger.Manager, o *model.Order) error {
	return lg.Lock(o.UserID, o.LockingCurrency(), o.LockedAmount())
}

// Settle converts the fills orderbook.Match produced for incoming into
// trades and balance transactions, releasing the matched portion of each
// side's locked_amount as it goes.
func Settle(lg *ledger.Manager, mkt *model.Market, incoming *model.Order, fills []orderbook.Fill, idx *IndexSeq, now time.Time) (*Result, error) {
	res := &Result{}

	for _, f := range fills {
		buyOrder, sellOrder := sidedOrders(incoming, f.Maker)

		trade := &model.Trade{
			ID:          uuid.New(),
			CreatedAt:   now,
			BuyOrderID:  buyOrder.ID,
			SellOrderID: sellOrder.ID,
			Base:        mkt.Base,
			Quote:       mkt.Quote,
			Side:        incoming.Side,
			Volume:      f.Volume,
			Price:       f.Price,
			Index:       idx.Next(),
		}
		res.Trades = append(res.Trades, trade)

		sellFee := market.FeeRate(mkt, sellOrder == incoming)
		buyFee := market.FeeRate(mkt, buyOrder == incoming)

		quoteVolume := money.Notional(f.Volume, f.Price)
		sellNet := money.Round(quoteVolume.Mul(one.Sub(sellFee)))
		sellFeeAmt := quoteVolume.Sub(sellNet)
		buyNet := money.Round(f.Volume.Mul(one.Sub(buyFee)))
		buyFeeAmt := f.Volume.Sub(buyNet)

		txs, err := applyTrade(lg, trade, sellOrder, buyOrder, sellNet, sellFeeAmt, quoteVolume, buyNet, buyFeeAmt, now)
		if err != nil {
			return nil, err
		}
		res.Transactions = append(res.Transactions, txs...)

		if err := releaseLocks(lg, incoming, f); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// sidedOrders maps an incoming order and the maker it matched against
// onto (buyOrder, sellOrder) by each order's own side.
func sidedOrders(incoming, maker *model.Order) (buyOrder, sellOrder *model.Order) {
	if incoming.Side == model.SideBuy {
		return incoming, maker
	}
	return maker, incoming
}

// applyTrade runs the six transactions of §4.3 for one trade and returns
// the Transaction records for persistence.
func applyTrade(lg *ledger.Manager, trade *model.Trade, sellOrder, buyOrder *model.Order, sellNet, sellFeeAmt, quoteVolume, buyNet, buyFeeAmt decimal.Decimal, now time.Time) ([]*model.Transaction, error) {
	type entry struct {
		userID   uuid.UUID
		currency string
		amount   decimal.Decimal
	}
	entries := []entry{
		{sellOrder.UserID, trade.Quote, sellNet},                  // 1
		{model.FeeUserID, trade.Quote, sellFeeAmt},                 // 2
		{sellOrder.UserID, trade.Base, trade.Volume.Neg()},         // 3
		{buyOrder.UserID, trade.Quote, quoteVolume.Neg()},          // 4
		{buyOrder.UserID, trade.Base, buyNet},                      // 5
		{model.FeeUserID, trade.Base, buyFeeAmt},                   // 6
	}

	txs := make([]*model.Transaction, 0, len(entries))
	tradeID := trade.ID
	for _, e := range entries {
		if _, err := lg.ApplyDelta(e.userID, e.currency, e.amount); err != nil {
			return nil, err
		}
		txs = append(txs, &model.Transaction{
			ID:        uuid.New(),
			CreatedAt: now,
			Type:      model.TransactionTrade,
			UserID:    e.userID,
			Currency:  e.currency,
			Amount:    e.amount,
			TradeID:   &tradeID,
		})
	}
	return txs, nil
}

// releaseLocks decrements each side's locked_amount by the portion this
// fill just consumed, using that side's own locking formula evaluated at
// that order's own price. A buy's locked_amount was sized against its own
// limit price at EntryLock, not the maker's price it happens to cross at;
// releasing it at the trade price instead would strand the difference as
// permanently-locked quote whenever a marketable buy fills below its limit.
func releaseLocks(lg *ledger.Manager, incoming *model.Order, f orderbook.Fill) error {
	if err := lg.Unlock(f.Maker.UserID, f.Maker.LockingCurrency(), lockPortion(f.Maker.Side, f.Volume, f.Maker.Price)); err != nil {
		return err
	}
	return lg.Unlock(incoming.UserID, incoming.LockingCurrency(), lockPortion(incoming.Side, f.Volume, incoming.Price))
}

func lockPortion(side model.Side, volume, price decimal.Decimal) decimal.Decimal {
	if side == model.SideBuy {
		return volume.Mul(price)
	}
	return volume
}
