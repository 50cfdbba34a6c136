package storage

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// LoadActiveOrders loads every still-open order for one pair, the worker
// startup step of §4.6 step 2, ordered by (created_at, sequence) so the
// caller can replay them into the book in strict price-time priority.
func (d *DB) LoadActiveOrders(pair model.Pair) ([]*model.Order, error) {
	var rows []orderRow
	err := d.gdb.Scopes(active(pair.Base, pair.Quote)).
		Order("created_at ASC, sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelOrder(r))
	}
	return out, nil
}

// LoadOrder returns the persisted order row for id regardless of status, or
// nil if this id has never been committed. A queue redelivery of a place
// command whose order already filled has nothing resident in the book to
// catch the duplicate against, so intake checks storage directly before
// matching.
func (d *DB) LoadOrder(id uuid.UUID) (*model.Order, error) {
	var row orderRow
	err := d.gdb.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelOrder(row), nil
}
