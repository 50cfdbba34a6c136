// Package candle rolls trade prints into OHLCV buckets: one open
// candle per (pair, unit) held in memory, flushed on bucket-boundary
// crossing or write-amplification threshold, with cold-start gap repair
// from the trade tape.
package candle

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
	"github.com/axiomex/matchengine/pkg/money"
)

// FlushEvery bounds write amplification: the open candle is flushed after
// this many in-place updates even without a boundary crossing.
const FlushEvery = 100

// bucketState is the mutable runtime state for one (pair, unit).
type bucketState struct {
	open    *model.Candle
	updates int
}

// Aggregator holds the open-candle state for every supported bucket width
// of one trading pair. Mirrors the teacher's per-key state-map-plus-mutex
// shape, generalized from a multi-exchange merge to a single trade tape
// rolled across many bucket widths simultaneously.
type Aggregator struct {
	mu      sync.Mutex
	pair    model.Pair
	buckets map[int]*bucketState
}

func New(pair model.Pair) *Aggregator {
	a := &Aggregator{pair: pair, buckets: make(map[int]*bucketState)}
	for _, u := range model.SupportedBucketsMinutes {
		a.buckets[u] = &bucketState{}
	}
	return a
}

// Seed installs an already-open candle loaded from storage at startup,
// e.g. after cold-start gap repair has synthesized it from the trade tape.
func (a *Aggregator) Seed(unitMinutes int, open *model.Candle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.buckets[unitMinutes]; ok {
		b.open = open
		b.updates = 0
	}
}

func bucketStart(ts time.Time, unitMinutes int) time.Time {
	width := time.Duration(unitMinutes) * time.Minute
	return ts.UTC().Truncate(width)
}

// OnTrade updates every bucket's open candle for one trade print, flushing
// (returning) whichever buckets crossed a boundary or hit FlushEvery. The
// returned candles are snapshots safe to persist independently of the
// aggregator's internal state.
func (a *Aggregator) OnTrade(t *model.Trade) []*model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var flushed []*model.Candle
	for unit := range a.buckets {
		flushed = append(flushed, a.onTradeBucket(unit, t)...)
	}
	return flushed
}

// onTradeBucket applies one trade to a single bucket width. Callers must
// hold a.mu.
func (a *Aggregator) onTradeBucket(unit int, t *model.Trade) []*model.Candle {
	b := a.buckets[unit]
	quoteVol := money.Notional(t.Volume, t.Price)

	if b.open != nil && t.CreatedAt.Before(b.open.Timestamp.Add(time.Duration(unit)*time.Minute)) {
		b.open.Close = t.Price
		b.open.High = decimal.Max(b.open.High, t.Price)
		b.open.Low = decimal.Min(b.open.Low, t.Price)
		b.open.Volume = b.open.Volume.Add(t.Volume)
		b.open.QuoteVolume = b.open.QuoteVolume.Add(quoteVol)
		b.open.UpdatedAt = t.CreatedAt
		b.updates++

		if b.updates >= FlushEvery {
			snap := *b.open
			b.updates = 0
			return []*model.Candle{&snap}
		}
		return nil
	}

	var flushed []*model.Candle
	if b.open != nil {
		snap := *b.open
		flushed = append(flushed, &snap)
	}

	b.open = &model.Candle{
		Base: a.pair.Base, Quote: a.pair.Quote,
		UnitMinutes: unit, UnitType: model.CandleUnitFixed,
		Timestamp: bucketStart(t.CreatedAt, unit), UpdatedAt: t.CreatedAt,
		Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price,
		Volume: t.Volume, QuoteVolume: quoteVol,
	}
	b.updates = 1
	return flushed
}

// Open returns a read-only snapshot of the current open candle for one
// bucket width, or nil at cold start before the first trade.
func (a *Aggregator) Open(unitMinutes int) *model.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[unitMinutes]
	if !ok || b.open == nil {
		return nil
	}
	snap := *b.open
	return &snap
}
