package storage

import (
	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// LoadMarkets returns every registered Market row, the set `engine --config
// <path>` uses to decide how many pair workers to start.
func (d *DB) LoadMarkets() ([]*model.Market, error) {
	var rows []marketRow
	if err := d.gdb.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Market, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelMarket(r))
	}
	return out, nil
}

// LoadCurrencies returns every registered Currency row.
func (d *DB) LoadCurrencies() ([]*model.Currency, error) {
	var rows []currencyRow
	if err := d.gdb.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Currency, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelCurrency(r))
	}
	return out, nil
}
