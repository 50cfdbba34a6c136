// Package bus publishes the engine's incremental state to the fan-out bus
//: best-effort, fire-and-forget, never allowed to block the
// matcher.
package bus

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
	"github.com/axiomex/matchengine/pkg/app/core/orderbook"
)

// Envelope is the {"type":..., "data":...} shape every published message
// shares.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// PriceLevel is one [price, volume] pair as published, keeping the bus's
// compact array-of-arrays wire format instead of re-exporting
// orderbook.Level's field names.
type PriceLevel [2]decimal.Decimal

// OrderBookData is the payload of an "order" event.
type OrderBookData struct {
	Pair string `json:"pair"`
	Book struct {
		Sell []PriceLevel `json:"sell"`
		Buy  []PriceLevel `json:"buy"`
	} `json:"book"`
}

// PublicationDepth is the default top-N depth for bus publication;
// WS snapshot servers downstream use 8 instead, but that is their concern.
const PublicationDepth = 10

// NewOrderBookData converts the book's top-N snapshots into the wire shape.
func NewOrderBookData(pair model.Pair, asks, bids []orderbook.Level) OrderBookData {
	d := OrderBookData{Pair: pair.String()}
	d.Book.Sell = toPriceLevels(asks)
	d.Book.Buy = toPriceLevels(bids)
	return d
}

func toPriceLevels(levels []orderbook.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{l.Price, l.Volume}
	}
	return out
}

// TradeData is one element of a "trade" event's data array.
type TradeData struct {
	ID        uuid.UUID       `json:"id"`
	Pair      string          `json:"pair"`
	CreatedAt time.Time       `json:"createdAt"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
}

// NewTradeData converts a trade tape into the wire shape.
func NewTradeData(trades []*model.Trade) []TradeData {
	out := make([]TradeData, len(trades))
	for i, t := range trades {
		out[i] = TradeData{
			ID: t.ID, Pair: t.Pair().String(), CreatedAt: t.CreatedAt,
			Side: t.Side.String(), Price: t.Price, Volume: t.Volume,
		}
	}
	return out
}

// BalanceData is the "balance" event payload: user_id -> currency ->
// balance.
type BalanceData map[uuid.UUID]map[string]BalanceView

// BalanceView is the published shape of one balance row.
type BalanceView struct {
	Amount       decimal.Decimal `json:"amount"`
	LockedAmount decimal.Decimal `json:"lockedAmount"`
}

// NewBalanceData groups a flat balance list by user then currency.
func NewBalanceData(balances []*model.Balance) BalanceData {
	out := make(BalanceData)
	for _, b := range balances {
		byCurrency, ok := out[b.UserID]
		if !ok {
			byCurrency = make(map[string]BalanceView)
			out[b.UserID] = byCurrency
		}
		byCurrency[b.Currency] = BalanceView{Amount: b.Amount, LockedAmount: b.LockedAmount}
	}
	return out
}

// MarketData is one element of a "market" event's data array.
type MarketData struct {
	Pair         string          `json:"pair"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}
