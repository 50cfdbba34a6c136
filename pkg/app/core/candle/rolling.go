package candle

import (
	"time"

	"github.com/axiomex/matchengine/pkg/app/core/model"
)

// Compose builds the synthetic rolling 24h candle from 1-minute fragments:
// storage supplies at most three pieces, yesterday's boundary minute, the
// fully-contained middle window, and today's boundary minute, already
// ordered by timestamp. Compose folds them into one OHLCV bucket without
// caring how many fragments storage happened to need.
func Compose(pair model.Pair, fragments []*model.Candle, windowStart, now time.Time) *model.Candle {
	if len(fragments) == 0 {
		return nil
	}
	out := &model.Candle{
		Base: pair.Base, Quote: pair.Quote,
		UnitMinutes: 1440, UnitType: model.CandleUnitRolling24h,
		Timestamp: windowStart, UpdatedAt: now,
		Open: fragments[0].Open, High: fragments[0].High, Low: fragments[0].Low, Close: fragments[0].Close,
		Volume: fragments[0].Volume, QuoteVolume: fragments[0].QuoteVolume,
	}
	for _, f := range fragments[1:] {
		if f.High.GreaterThan(out.High) {
			out.High = f.High
		}
		if f.Low.LessThan(out.Low) {
			out.Low = f.Low
		}
		out.Volume = out.Volume.Add(f.Volume)
		out.QuoteVolume = out.QuoteVolume.Add(f.QuoteVolume)
		out.Close = f.Close
		if f.UpdatedAt.After(out.UpdatedAt) {
			out.UpdatedAt = f.UpdatedAt
		}
	}
	return out
}

// Repair synthesizes missing candles for a single bucket width from the
// trade tape by grouping trades into buckets ordered by (created_at,
// index) and merging them forward. trades must already
// be sorted by CreatedAt then Index. The final, still-open bucket is
// returned last so the caller can Seed its aggregator with it.
func Repair(pair model.Pair, unitMinutes int, trades []*model.Trade) []*model.Candle {
	if len(trades) == 0 {
		return nil
	}
	a := &Aggregator{pair: pair, buckets: map[int]*bucketState{unitMinutes: {}}}
	var out []*model.Candle
	for _, t := range trades {
		out = append(out, a.onTradeBucket(unitMinutes, t)...)
	}
	if open := a.Open(unitMinutes); open != nil {
		out = append(out, open)
	}
	return out
}
