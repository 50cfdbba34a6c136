// Package ledger tracks per-(user, currency) balances: the in-memory cache
// the engine reads/writes between commits, and the lock/unlock bookkeeping
// a settlement transaction needs before it can touch the database.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// key identifies one balance row.
type key struct {
	userID   uuid.UUID
	currency string
}

func keyOf(userID uuid.UUID, currency string) key {
	return key{userID: userID, currency: currency}
}

// newBalance materializes a zero balance, the row shape used whenever a
// (user, currency) pair is referenced for the first time.
func newBalance(userID uuid.UUID, currency string) *model.Balance {
	return &model.Balance{
		UserID:       userID,
		Currency:     currency,
		Amount:       decimal.Zero,
		LockedAmount: decimal.Zero,
	}
}

// validate re-checks amount >= locked_amount >= 0 after a mutation,
// returning a model.InvariantError the caller surfaces as a rolled-back
// settlement.
func validate(b *model.Balance) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("balance %s/%s: %w", b.UserID, b.Currency, err)
	}
	return nil
}
