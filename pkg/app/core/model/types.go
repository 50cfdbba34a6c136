// Package model defines the exchange's durable entities: Currency, Market,
// User, Balance, Order, Trade, Transaction and Candle. Trade and Transaction
// are append-only children that carry foreign keys only; neither one
// references the other back in memory, breaking the Order/Trade/Transaction
// reference cycle the source data model has.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeUserID is the distinguished account that receives every fee transaction.
var FeeUserID = uuid.Nil

// Side is the direction of an order or the aggressor side of a trade.
type Side int8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// TransactionType tags what produced a Transaction row.
type TransactionType int8

const (
	TransactionTrade TransactionType = iota
	TransactionBlockchain
)

func (t TransactionType) String() string {
	if t == TransactionTrade {
		return "trade"
	}
	return "blockchain"
}

// Pair identifies a trading market by its ordered base/quote currencies.
type Pair struct {
	Base  string
	Quote string
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Slug renders the lower-cased queue-name form of the pair, e.g. "btc_usdt".
func (p Pair) Slug() string {
	return toLower(p.Base) + "_" + toLower(p.Quote)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Currency is created externally and is immutable to the engine except for
// LatestSyncedBlock, which the blockchain daemon's mint/burn path advances.
type Currency struct {
	ID                string // upper-case code, e.g. "BTC"
	Name              string
	Decimals          int32
	Confirmations     int32
	MinDeposit        decimal.Decimal
	MinWithdrawal     decimal.Decimal
	WithdrawalFee     decimal.Decimal
	LatestSyncedBlock int64
}

// Market is created externally; the engine only ever mutates CurrentPrice.
type Market struct {
	Base            string
	Quote           string
	CurrentPrice    decimal.Decimal
	MakerFee        decimal.Decimal
	TakerFee        decimal.Decimal
	MinOrderAmount  decimal.Decimal
}

func (m *Market) Pair() Pair { return Pair{Base: m.Base, Quote: m.Quote} }

// User is created externally and immutable to the engine.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Balance is lazily materialized on first reference and mutated only inside
// a settlement transaction.
type Balance struct {
	UserID       uuid.UUID
	Currency     string
	Amount       decimal.Decimal
	LockedAmount decimal.Decimal
}

// Available returns the portion of Amount not backing an open order.
func (b Balance) Available() decimal.Decimal {
	return b.Amount.Sub(b.LockedAmount)
}

// Validate enforces amount >= locked_amount >= 0.
func (b Balance) Validate() error {
	if b.Amount.IsNegative() {
		return &InvariantError{Msg: "balance amount is negative"}
	}
	if b.LockedAmount.IsNegative() {
		return &InvariantError{Msg: "balance locked_amount is negative"}
	}
	if b.LockedAmount.GreaterThan(b.Amount) {
		return &InvariantError{Msg: "balance locked_amount exceeds amount"}
	}
	return nil
}

// Order is created by the intake path and mutated (RemainingVolume,
// FilledAt, CanceledAt) only by the engine.
type Order struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	CreatedAt        time.Time
	Side             Side
	Base             string
	Quote            string
	Volume           decimal.Decimal
	RemainingVolume  decimal.Decimal
	Price            decimal.Decimal
	FilledAt         *time.Time
	CanceledAt       *time.Time

	// Sequence breaks FIFO ties among orders admitted within the same
	// created_at instant (clock granularity); it is assigned once, at
	// intake, and never changes.
	Sequence uint64
}

func (o *Order) Pair() Pair { return Pair{Base: o.Base, Quote: o.Quote} }

// IsActive reports whether the order can still match or be canceled.
func (o *Order) IsActive() bool {
	return o.FilledAt == nil && o.CanceledAt == nil
}

// LockingCurrency is the currency whose balance backs this order: quote for
// buys, base for sells.
func (o *Order) LockingCurrency() string {
	if o.Side == SideBuy {
		return o.Quote
	}
	return o.Base
}

// RemainingLockedAmount is the portion of the locking currency this order
// still holds locked: remaining_volume × price for buys, remaining_volume
// for sells.
func (o *Order) RemainingLockedAmount() decimal.Decimal {
	if o.Side == SideBuy {
		return o.RemainingVolume.Mul(o.Price)
	}
	return o.RemainingVolume
}

// LockedAmount is RemainingLockedAmount evaluated at full (pre-fill) volume;
// used once, at intake, to size the initial lock.
func (o *Order) LockedAmount() decimal.Decimal {
	if o.Side == SideBuy {
		return o.Volume.Mul(o.Price)
	}
	return o.Volume
}

// MarkFilled sets FilledAt; callers must have already verified
// RemainingVolume is zero.
func (o *Order) MarkFilled(now time.Time) {
	o.FilledAt = &now
}

// MarkCanceled sets CanceledAt; callers must have already verified
// RemainingVolume > 0 and the order is still active.
func (o *Order) MarkCanceled(now time.Time) {
	o.CanceledAt = &now
}

// Trade is an append-only record of one match between a taker (aggressor)
// order and a maker (resting) order.
type Trade struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	BuyOrderID  uuid.UUID
	SellOrderID uuid.UUID
	Base        string
	Quote       string
	Side        Side // aggressor side
	Volume      decimal.Decimal
	Price       decimal.Decimal
	Index       int
}

func (t *Trade) Pair() Pair { return Pair{Base: t.Base, Quote: t.Quote} }

// QuoteVolume is Volume × Price, the amount that changed hands in Quote.
func (t *Trade) QuoteVolume() decimal.Decimal {
	return t.Volume.Mul(t.Price)
}

// Transaction is an append-only ledger entry. Amount is signed: positive
// credits, negative debits.
type Transaction struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Type      TransactionType
	UserID    uuid.UUID
	Currency  string
	Amount    decimal.Decimal
	TradeID   *uuid.UUID // set when Type == TransactionTrade
}

// CandleUnitType distinguishes a plain fixed-bucket candle from the
// synthetic rolling 24h view assembled from 1-minute fragments.
type CandleUnitType int8

const (
	CandleUnitFixed CandleUnitType = iota
	CandleUnitRolling24h
)

// Candle is a single OHLCV bucket for one pair/unit/timestamp. The open
// candle for each (pair,unit) is mutated in place by the aggregator; once
// flushed, a Candle row is immutable.
type Candle struct {
	Base         string
	Quote        string
	UnitMinutes  int
	UnitType     CandleUnitType
	Timestamp    time.Time
	UpdatedAt    time.Time
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	Volume       decimal.Decimal
	QuoteVolume  decimal.Decimal
}

func (c *Candle) Pair() Pair { return Pair{Base: c.Base, Quote: c.Quote} }

// SupportedBucketsMinutes enumerates every candle bucket width the
// aggregator rolls, per §4.5.
var SupportedBucketsMinutes = []int{1, 3, 5, 15, 30, 60, 240, 1440, 4320, 10080}
