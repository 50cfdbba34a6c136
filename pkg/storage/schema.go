// Package storage is the GORM/Postgres persistence layer: the relational
// mirror of §3's entities, the balance loader the ledger cache falls back
// to, and the transactional commit paths §4.3/§4.4 require. It is the only
// package that imports gorm.
package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

type currencyRow struct {
	ID                string `gorm:"primaryKey;size:16"`
	Name              string
	Decimals          int32
	Confirmations     int32
	MinDeposit        decimal.Decimal `gorm:"type:decimal(36,18)"`
	MinWithdrawal     decimal.Decimal `gorm:"type:decimal(36,18)"`
	WithdrawalFee     decimal.Decimal `gorm:"type:decimal(36,18)"`
	LatestSyncedBlock int64
}

func (currencyRow) TableName() string { return "currencies" }

type marketRow struct {
	Base           string          `gorm:"primaryKey;size:16"`
	Quote          string          `gorm:"primaryKey;size:16"`
	CurrentPrice   decimal.Decimal `gorm:"type:decimal(36,18);check:current_price >= 0"`
	MakerFee       decimal.Decimal `gorm:"type:decimal(36,18);check:maker_fee >= 0"`
	TakerFee       decimal.Decimal `gorm:"type:decimal(36,18);check:taker_fee >= 0"`
	MinOrderAmount decimal.Decimal `gorm:"type:decimal(36,18);check:min_order_amount > 0"`
}

func (marketRow) TableName() string { return "markets" }

type userRow struct {
	ID           uuid.UUID `gorm:"primaryKey;type:uuid"`
	Email        string    `gorm:"uniqueIndex;size:320"`
	PasswordHash string
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type balanceRow struct {
	UserID       uuid.UUID       `gorm:"primaryKey;type:uuid"`
	Currency     string          `gorm:"primaryKey;size:16"`
	Amount       decimal.Decimal `gorm:"type:decimal(36,18);check:amount >= 0"`
	LockedAmount decimal.Decimal `gorm:"type:decimal(36,18);check:locked_amount >= 0"`
}

func (balanceRow) TableName() string { return "balances" }

type orderRow struct {
	ID              uuid.UUID `gorm:"primaryKey;type:uuid"`
	UserID          uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt       time.Time `gorm:"index:idx_orders_book_scan"`
	Side            int8
	Base            string          `gorm:"size:16;index:idx_orders_book_scan"`
	Quote           string          `gorm:"size:16;index:idx_orders_book_scan"`
	Volume          decimal.Decimal `gorm:"type:decimal(36,18);check:volume > 0"`
	RemainingVolume decimal.Decimal `gorm:"type:decimal(36,18);check:remaining_volume >= 0"`
	Price           decimal.Decimal `gorm:"type:decimal(36,18);check:price > 0"`
	FilledAt        *time.Time
	CanceledAt      *time.Time

	// Sequence is assigned by the worker at intake (not the database); it
	// breaks FIFO ties among orders admitted within the same created_at
	// instant and is never reassigned.
	Sequence uint64
}

func (orderRow) TableName() string { return "orders" }

// active is a GORM scope selecting orders still open (not filled, not
// canceled): the set the worker reloads into the book at startup, and the
// set cancellation is allowed to touch.
func active(base, quote string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("base = ? AND quote = ? AND filled_at IS NULL AND canceled_at IS NULL", base, quote)
	}
}

type tradeRow struct {
	ID          uuid.UUID `gorm:"primaryKey;type:uuid"`
	CreatedAt   time.Time `gorm:"index"`
	BuyOrderID  uuid.UUID `gorm:"type:uuid;index"`
	SellOrderID uuid.UUID `gorm:"type:uuid;index"`
	Base        string    `gorm:"size:16;index:idx_trades_pair_time"`
	Quote       string    `gorm:"size:16;index:idx_trades_pair_time"`
	Side        int8
	Volume      decimal.Decimal `gorm:"type:decimal(36,18);check:volume > 0"`
	Price       decimal.Decimal `gorm:"type:decimal(36,18);check:price > 0"`
	Index       int
}

func (tradeRow) TableName() string { return "trades" }

type transactionRow struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `gorm:"index"`
	Type      int8
	UserID    uuid.UUID       `gorm:"type:uuid;index:idx_transactions_user_currency"`
	Currency  string          `gorm:"size:16;index:idx_transactions_user_currency"`
	Amount    decimal.Decimal `gorm:"type:decimal(36,18);check:amount <> 0"`
	TradeID   *uuid.UUID      `gorm:"type:uuid;index"`
}

func (transactionRow) TableName() string { return "transactions" }

type candleRow struct {
	Base        string    `gorm:"primaryKey;size:16"`
	Quote       string    `gorm:"primaryKey;size:16"`
	UnitMinutes int       `gorm:"primaryKey"`
	UnitType    int8      `gorm:"primaryKey"`
	Timestamp   time.Time `gorm:"primaryKey"`
	UpdatedAt   time.Time
	Open        decimal.Decimal `gorm:"type:decimal(36,18);check:open > 0"`
	High        decimal.Decimal `gorm:"type:decimal(36,18);check:high > 0"`
	Low         decimal.Decimal `gorm:"type:decimal(36,18);check:low > 0"`
	Close       decimal.Decimal `gorm:"type:decimal(36,18);check:close > 0"`
	Volume      decimal.Decimal `gorm:"type:decimal(36,18);check:volume > 0"`
	QuoteVolume decimal.Decimal `gorm:"type:decimal(36,18);check:quote_volume > 0"`
}

func (candleRow) TableName() string { return "candles" }

// allRowModels lists every table AutoMigrate manages; gormDB.AutoMigrate
// derives each one's check constraints from the struct tags above.
func allRowModels() []interface{} {
	return []interface{}{
		&currencyRow{}, &marketRow{}, &userRow{}, &balanceRow{},
		&orderRow{}, &tradeRow{}, &transactionRow{}, &candleRow{},
	}
}

func toModelOrder(r orderRow) *model.Order {
	return &model.Order{
		ID: r.ID, UserID: r.UserID, CreatedAt: r.CreatedAt,
		Side: model.Side(r.Side), Base: r.Base, Quote: r.Quote,
		Volume: r.Volume, RemainingVolume: r.RemainingVolume, Price: r.Price,
		FilledAt: r.FilledAt, CanceledAt: r.CanceledAt, Sequence: r.Sequence,
	}
}

func fromModelOrder(o *model.Order) orderRow {
	return orderRow{
		ID: o.ID, UserID: o.UserID, CreatedAt: o.CreatedAt,
		Side: int8(o.Side), Base: o.Base, Quote: o.Quote,
		Volume: o.Volume, RemainingVolume: o.RemainingVolume, Price: o.Price,
		FilledAt: o.FilledAt, CanceledAt: o.CanceledAt, Sequence: o.Sequence,
	}
}

func toModelBalance(r balanceRow) *model.Balance {
	return &model.Balance{UserID: r.UserID, Currency: r.Currency, Amount: r.Amount, LockedAmount: r.LockedAmount}
}

func fromModelBalance(b *model.Balance) balanceRow {
	return balanceRow{UserID: b.UserID, Currency: b.Currency, Amount: b.Amount, LockedAmount: b.LockedAmount}
}

func toModelTrade(r tradeRow) *model.Trade {
	return &model.Trade{
		ID: r.ID, CreatedAt: r.CreatedAt, BuyOrderID: r.BuyOrderID, SellOrderID: r.SellOrderID,
		Base: r.Base, Quote: r.Quote, Side: model.Side(r.Side), Volume: r.Volume, Price: r.Price, Index: r.Index,
	}
}

func fromModelTrade(t *model.Trade) tradeRow {
	return tradeRow{
		ID: t.ID, CreatedAt: t.CreatedAt, BuyOrderID: t.BuyOrderID, SellOrderID: t.SellOrderID,
		Base: t.Base, Quote: t.Quote, Side: int8(t.Side), Volume: t.Volume, Price: t.Price, Index: t.Index,
	}
}

func fromModelTransaction(t *model.Transaction) transactionRow {
	return transactionRow{
		ID: t.ID, CreatedAt: t.CreatedAt, Type: int8(t.Type), UserID: t.UserID,
		Currency: t.Currency, Amount: t.Amount, TradeID: t.TradeID,
	}
}

func toModelCandle(r candleRow) *model.Candle {
	return &model.Candle{
		Base: r.Base, Quote: r.Quote, UnitMinutes: r.UnitMinutes, UnitType: model.CandleUnitType(r.UnitType),
		Timestamp: r.Timestamp, UpdatedAt: r.UpdatedAt,
		Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume, QuoteVolume: r.QuoteVolume,
	}
}

func fromModelCandle(c *model.Candle) candleRow {
	return candleRow{
		Base: c.Base, Quote: c.Quote, UnitMinutes: c.UnitMinutes, UnitType: int8(c.UnitType),
		Timestamp: c.Timestamp, UpdatedAt: c.UpdatedAt,
		Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume, QuoteVolume: c.QuoteVolume,
	}
}

func toModelMarket(r marketRow) *model.Market {
	return &model.Market{
		Base: r.Base, Quote: r.Quote, CurrentPrice: r.CurrentPrice,
		MakerFee: r.MakerFee, TakerFee: r.TakerFee, MinOrderAmount: r.MinOrderAmount,
	}
}

func toModelCurrency(r currencyRow) *model.Currency {
	return &model.Currency{
		ID: r.ID, Name: r.Name, Decimals: r.Decimals, Confirmations: r.Confirmations,
		MinDeposit: r.MinDeposit, MinWithdrawal: r.MinWithdrawal, WithdrawalFee: r.WithdrawalFee,
		LatestSyncedBlock: r.LatestSyncedBlock,
	}
}
