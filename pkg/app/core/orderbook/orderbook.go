// Package orderbook implements the resident price-time priority book for a
// single trading pair: two heaps of price levels (bids max, asks min) each
// backed by a FIFO queue for time priority within a level, plus an inline
// price -> aggregate-remaining-volume map maintained on every mutation.
package orderbook

import (
	"container/heap"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/axiomex/matchengine/pkg/app/core/model"
	"github.com/axiomex/matchengine/pkg/money"
)

// Fill is one match produced while walking the opposite side for an
// incoming order. It carries the resting maker order (already decremented)
// so the caller can construct a trade and settle it.
type Fill struct {
	Maker  *model.Order
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Level is a published snapshot of one price's aggregate resident volume.
type Level struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

type resident struct {
	level *sideLevel
	key   string
}

type sideLevel struct {
	price   decimal.Decimal
	volume  decimal.Decimal
	orders  []*model.Order // FIFO: index 0 is oldest (next to match)
}

// priceKey renders a canonical map key for a price so that decimals equal
// in value but different in internal representation collide correctly.
func priceKey(d decimal.Decimal) string {
	return d.StringFixed(money.Scale)
}

// OrderBook holds the resident orders for exactly one (base, quote) pair.
// It never touches storage, fees, or market parameters; that's the
// matcher's concern. The book only knows price-time priority.
type OrderBook struct {
	mu sync.RWMutex

	bids *bidHeap
	asks *askHeap

	bidLevels map[string]*sideLevel
	askLevels map[string]*sideLevel

	resident map[uuid.UUID]resident

	lastPrice decimal.Decimal
	hasPrice  bool
}

func New() *OrderBook {
	bids := &bidHeap{}
	asks := &askHeap{}
	heap.Init(bids)
	heap.Init(asks)
	return &OrderBook{
		bids:      bids,
		asks:      asks,
		bidLevels: make(map[string]*sideLevel),
		askLevels: make(map[string]*sideLevel),
		resident:  make(map[uuid.UUID]resident),
	}
}

// Resident reports whether an order id is currently resting in the book.
// Used by the matcher to drop duplicate "place" deliveries idempotently.
func (ob *OrderBook) Resident(id uuid.UUID) bool {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	_, ok := ob.resident[id]
	return ok
}

func (ob *OrderBook) levelsFor(side model.Side) map[string]*sideLevel {
	if side == model.SideBuy {
		return ob.bidLevels
	}
	return ob.askLevels
}

// insert places an order into its side at the correct (price, time) slot.
// Callers must hold ob.mu.
func (ob *OrderBook) insert(o *model.Order) {
	levels := ob.levelsFor(o.Side)
	key := priceKey(o.Price)
	lvl, ok := levels[key]
	if !ok {
		lvl = &sideLevel{price: o.Price}
		levels[key] = lvl
		if o.Side == model.SideBuy {
			heap.Push(ob.bids, o.Price)
		} else {
			heap.Push(ob.asks, o.Price)
		}
	}
	lvl.orders = append(lvl.orders, o)
	lvl.volume = lvl.volume.Add(o.RemainingVolume)
	ob.resident[o.ID] = resident{level: lvl, key: key}
}

// Insert places an order into its side. Exported for the matcher's
// book-as-residual step after a partial or unmatched fill.
func (ob *OrderBook) Insert(o *model.Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.insert(o)
}

// removeHeapPrice drops a fully-drained price level from the relevant heap.
// O(n) worst case; rare, since it only runs when a level empties.
func (ob *OrderBook) removeHeapPrice(side model.Side, price decimal.Decimal) {
	if side == model.SideBuy {
		for i := 0; i < ob.bids.Len(); i++ {
			if (*ob.bids)[i].Equal(price) {
				heap.Remove(ob.bids, i)
				return
			}
		}
		return
	}
	for i := 0; i < ob.asks.Len(); i++ {
		if (*ob.asks)[i].Equal(price) {
			heap.Remove(ob.asks, i)
			return
		}
	}
}

// remove detaches an order from its level's FIFO queue and aggregate,
// deleting the level once its aggregate hits zero. Callers must hold ob.mu.
func (ob *OrderBook) remove(side model.Side, id uuid.UUID) bool {
	res, ok := ob.resident[id]
	if !ok {
		return false
	}
	lvl := res.level
	for i, o := range lvl.orders {
		if o.ID != id {
			continue
		}
		lvl.orders = append(lvl.orders[:i], lvl.orders[i+1:]...)
		lvl.volume = lvl.volume.Sub(o.RemainingVolume)
		break
	}
	delete(ob.resident, id)
	if len(lvl.orders) == 0 {
		delete(ob.levelsFor(side), res.key)
		ob.removeHeapPrice(side, lvl.price)
	}
	return true
}

// Remove cancels a resident order out of the book.
func (ob *OrderBook) Remove(side model.Side, id uuid.UUID) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.remove(side, id)
}

// Find returns the resident order for id, or nil if it isn't resting in the
// book. Used by cancel handling, which only receives order ids off the
// queue and needs the order's side and locked amount to unwind it.
func (ob *OrderBook) Find(id uuid.UUID) *model.Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	res, ok := ob.resident[id]
	if !ok {
		return nil
	}
	for _, o := range res.level.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Best peeks the head of one side without removing it.
func (ob *OrderBook) Best(side model.Side) (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if side == model.SideBuy {
		return ob.bids.Peek()
	}
	return ob.asks.Peek()
}

// TopN returns up to limit (price, aggregate_volume) levels for one side,
// best price first. Default limit is 10 for REST/bus publication, 8 for
// WS snapshots; callers pick the limit.
func (ob *OrderBook) TopN(side model.Side, limit int) []Level {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	var prices []decimal.Decimal
	var levels map[string]*sideLevel
	if side == model.SideBuy {
		prices = append(prices, (*ob.bids)...)
		levels = ob.bidLevels
	} else {
		prices = append(prices, (*ob.asks)...)
		levels = ob.askLevels
	}

	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sortDecimals(sorted, side == model.SideBuy)

	out := make([]Level, 0, limit)
	for _, p := range sorted {
		if len(out) >= limit {
			break
		}
		lvl, ok := levels[priceKey(p)]
		if !ok || len(lvl.orders) == 0 {
			continue
		}
		out = append(out, Level{Price: lvl.price, Volume: lvl.volume})
	}
	return out
}

func sortDecimals(d []decimal.Decimal, desc bool) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0; j-- {
			var swap bool
			if desc {
				swap = d[j].Cmp(d[j-1]) > 0
			} else {
				swap = d[j].Cmp(d[j-1]) < 0
			}
			if !swap {
				break
			}
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

// LastPrice returns the most recently matched price, for mark-price
// fallback when no trade has occurred yet.
func (ob *OrderBook) LastPrice() (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastPrice, ob.hasPrice
}

// Match walks the opposite side head-first for incoming, producing Fills
// and mutating RemainingVolume on both incoming and every matched maker in
// place. It does not insert the residual; callers that
// want book-as-residual semantics call Insert afterward.
func (ob *OrderBook) Match(incoming *model.Order) []Fill {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	opposite := incoming.Side.Opposite()
	var fills []Fill

	for money.IsPositive(incoming.RemainingVolume) {
		bestPrice, ok := ob.peekOpposite(opposite)
		if !ok {
			break
		}
		if incoming.Side == model.SideBuy && bestPrice.GreaterThan(incoming.Price) {
			break
		}
		if incoming.Side == model.SideSell && bestPrice.LessThan(incoming.Price) {
			break
		}

		lvl := ob.levelsFor(opposite)[priceKey(bestPrice)]
		if lvl == nil || len(lvl.orders) == 0 {
			ob.removeHeapPrice(opposite, bestPrice)
			continue
		}
		maker := lvl.orders[0]

		tradeVolume := decimal.Min(maker.RemainingVolume, incoming.RemainingVolume)
		if !money.IsPositive(tradeVolume) {
			break
		}

		incoming.RemainingVolume = incoming.RemainingVolume.Sub(tradeVolume)
		maker.RemainingVolume = maker.RemainingVolume.Sub(tradeVolume)
		lvl.volume = lvl.volume.Sub(tradeVolume)

		fills = append(fills, Fill{Maker: maker, Price: bestPrice, Volume: tradeVolume})
		ob.lastPrice = bestPrice
		ob.hasPrice = true

		if !money.IsPositive(maker.RemainingVolume) {
			ob.remove(opposite, maker.ID)
		}
	}
	return fills
}

func (ob *OrderBook) peekOpposite(side model.Side) (decimal.Decimal, bool) {
	if side == model.SideBuy {
		return ob.bids.Peek()
	}
	return ob.asks.Peek()
}
