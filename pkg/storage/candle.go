package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// FlushCandle upserts one closed or write-amplification-flushed candle
//. The primary key is (pair, unit, unit_type, timestamp), so a
// re-flush of the same open candle (the FlushEvery path) overwrites in
// place rather than duplicating.
func (d *DB) FlushCandle(c *model.Candle) error {
	row := fromModelCandle(c)
	return d.gdb.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "base"}, {Name: "quote"}, {Name: "unit_minutes"}, {Name: "unit_type"}, {Name: "timestamp"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "open", "high", "low", "close", "volume", "quote_volume"}),
	}).Create(&row).Error
}

// LoadLatestCandle returns the most recently updated fixed-bucket candle
// for one (pair, unit), or nil at cold start before anything has been
// persisted.
func (d *DB) LoadLatestCandle(pair model.Pair, unitMinutes int) (*model.Candle, error) {
	var row candleRow
	err := d.gdb.Where("base = ? AND quote = ? AND unit_minutes = ? AND unit_type = ?",
		pair.Base, pair.Quote, unitMinutes, model.CandleUnitFixed).
		Order("timestamp DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelCandle(row), nil
}

// LoadTradesSince returns every trade for a pair at or after `since`,
// ordered by (created_at, index): the order the aggregator's Repair
// groups trades into buckets by.
func (d *DB) LoadTradesSince(pair model.Pair, since time.Time) ([]*model.Trade, error) {
	var rows []tradeRow
	err := d.gdb.Where("base = ? AND quote = ? AND created_at >= ?", pair.Base, pair.Quote, since).
		Order("created_at ASC, \"index\" ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelTrade(r))
	}
	return out, nil
}

// LoadLatestTrade returns the most recent trade for a pair, or nil if the
// pair has never traded. Used alongside LoadLatestCandle to decide
// whether cold-start gap repair is needed.
func (d *DB) LoadLatestTrade(pair model.Pair) (*model.Trade, error) {
	var row tradeRow
	err := d.gdb.Where("base = ? AND quote = ?", pair.Base, pair.Quote).
		Order("created_at DESC, \"index\" DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelTrade(row), nil
}

// LoadFixedCandlesBetween returns persisted 1-minute candles covering
// [start, end), ascending by timestamp: the middle fragment of the
// rolling-24h view's three-piece composition.
func (d *DB) LoadFixedCandlesBetween(pair model.Pair, unitMinutes int, start, end time.Time) ([]*model.Candle, error) {
	var rows []candleRow
	err := d.gdb.Where("base = ? AND quote = ? AND unit_minutes = ? AND unit_type = ? AND timestamp >= ? AND timestamp < ?",
		pair.Base, pair.Quote, unitMinutes, model.CandleUnitFixed, start, end).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelCandle(r))
	}
	return out, nil
}
