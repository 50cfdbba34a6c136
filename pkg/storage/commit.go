package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// PlaceCommit is everything one successful §4.2/§4.3 place needs persisted
// in a single atomic unit: order insert/updates, trades, transactions,
// balance updates, and the market's current_price if any trade happened.
type PlaceCommit struct {
	Incoming     *model.Order
	FilledMakers []*model.Order // makers whose RemainingVolume hit zero or changed
	Trades       []*model.Trade
	Transactions []*model.Transaction
	Balances     []*model.Balance // every balance row touched, final values
	Market       *model.Market
	PriceChanged bool
}

// CommitPlace runs §4.3's last line: "order insert/updates → trades →
// transactions → linking rows → balance updates → market.current_price
// update (if trades occurred)", all inside one transaction with the
// affected Balance and Market rows under SELECT ... FOR UPDATE.
func (d *DB) CommitPlace(ctx context.Context, c PlaceCommit) error {
	return d.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockBalances(tx, c.Balances); err != nil {
			return err
		}
		if c.PriceChanged {
			if err := lockMarket(tx, c.Market.Base, c.Market.Quote); err != nil {
				return err
			}
		}

		incoming := fromModelOrder(c.Incoming)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"remaining_volume", "filled_at", "canceled_at"}),
		}).Create(&incoming).Error; err != nil {
			return fmt.Errorf("upsert incoming order: %w", err)
		}

		for _, maker := range c.FilledMakers {
			if err := tx.Model(&orderRow{}).Where("id = ?", maker.ID).Updates(map[string]interface{}{
				"remaining_volume": maker.RemainingVolume,
				"filled_at":        maker.FilledAt,
			}).Error; err != nil {
				return fmt.Errorf("update maker order %s: %w", maker.ID, err)
			}
		}

		if len(c.Trades) > 0 {
			rows := make([]tradeRow, len(c.Trades))
			for i, t := range c.Trades {
				rows[i] = fromModelTrade(t)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert trades: %w", err)
			}
		}

		if len(c.Transactions) > 0 {
			rows := make([]transactionRow, len(c.Transactions))
			for i, t := range c.Transactions {
				rows[i] = fromModelTransaction(t)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert transactions: %w", err)
			}
		}

		for _, b := range c.Balances {
			if err := upsertBalance(tx, b); err != nil {
				return err
			}
		}

		if c.PriceChanged {
			if err := tx.Model(&marketRow{}).
				Where("base = ? AND quote = ?", c.Market.Base, c.Market.Quote).
				Update("current_price", c.Market.CurrentPrice).Error; err != nil {
				return fmt.Errorf("update market price: %w", err)
			}
		}

		return nil
	})
}

// CancelCommit is §4.4's atomic unit: order cancellation plus the balance
// unlocks it returns.
type CancelCommit struct {
	Canceled []*model.Order
	Balances []*model.Balance
}

// CommitCancel sets canceled_at for every row and decrements the freed
// locked_amount, all under row locks, per §4.4 steps 1-2.
func (d *DB) CommitCancel(ctx context.Context, c CancelCommit) error {
	if len(c.Canceled) == 0 {
		return nil
	}
	return d.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockBalances(tx, c.Balances); err != nil {
			return err
		}
		for _, o := range c.Canceled {
			res := tx.Model(&orderRow{}).
				Where("id = ? AND filled_at IS NULL AND canceled_at IS NULL", o.ID).
				Update("canceled_at", o.CanceledAt)
			if res.Error != nil {
				return fmt.Errorf("cancel order %s: %w", o.ID, res.Error)
			}
			// RowsAffected == 0 means another process already canceled or
			// filled it between dequeue and commit; §4.4 treats that as a
			// silent no-op, not an error.
		}
		for _, b := range c.Balances {
			if err := upsertBalance(tx, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// lockBalances materializes and FOR UPDATE-locks every (user, currency)
// row a command touches, the "get-or-create with for-update" primitive
// §9's design notes call for. Rows that don't exist yet are created at
// zero inside the same transaction so the subsequent lock is race-free.
func lockBalances(tx *gorm.DB, balances []*model.Balance) error {
	seen := make(map[string]bool, len(balances))
	for _, b := range balances {
		k := b.UserID.String() + "/" + b.Currency
		if seen[k] {
			continue
		}
		seen[k] = true

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&balanceRow{UserID: b.UserID, Currency: b.Currency, Amount: decimal.Zero, LockedAmount: decimal.Zero}).
			Error; err != nil {
			return fmt.Errorf("materialize balance %s: %w", k, err)
		}

		var row balanceRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND currency = ?", b.UserID, b.Currency).
			First(&row).Error; err != nil {
			return fmt.Errorf("lock balance %s: %w", k, err)
		}
	}
	return nil
}

func lockMarket(tx *gorm.DB, base, quote string) error {
	var row marketRow
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("base = ? AND quote = ?", base, quote).
		First(&row).Error
}

func upsertBalance(tx *gorm.DB, b *model.Balance) error {
	row := fromModelBalance(b)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "currency"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "locked_amount"}),
	}).Create(&row).Error
}

// LoadUserBalances returns every balance row for one user, used by the
// (out-of-core) REST layer and by tests asserting §8's invariants.
func (d *DB) LoadUserBalances(userID uuid.UUID) ([]*model.Balance, error) {
	var rows []balanceRow
	if err := d.gdb.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Balance, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelBalance(r))
	}
	return out, nil
}
