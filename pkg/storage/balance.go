package storage

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// LoadBalance implements ledger.Loader: a miss returns (nil, nil) so the
// manager materializes a zero row, per §3 ("Balances are lazily
// materialized on first reference").
func (d *DB) LoadBalance(userID uuid.UUID, currency string) (*model.Balance, error) {
	var row balanceRow
	err := d.gdb.Where("user_id = ? AND currency = ?", userID, currency).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelBalance(row), nil
}
