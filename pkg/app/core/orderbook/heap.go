package orderbook

import "github.com/shopspring/decimal"

// bidHeap implements heap.Interface over resting bid prices: highest price
// on top. Mirrors a classic heap-of-price-levels book, generalized from
// int64 ticks to arbitrary-precision decimal.
type bidHeap []decimal.Decimal

func (h bidHeap) Len() int            { return len(h) }
func (h bidHeap) Less(i, j int) bool  { return h[i].Cmp(h[j]) > 0 }
func (h bidHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *bidHeap) Push(x interface{}) { *h = append(*h, x.(decimal.Decimal)) }

func (h *bidHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h bidHeap) Peek() (decimal.Decimal, bool) {
	if len(h) == 0 {
		return decimal.Zero, false
	}
	return h[0], true
}

// askHeap is the mirror min-heap: lowest price on top.
type askHeap []decimal.Decimal

func (h askHeap) Len() int            { return len(h) }
func (h askHeap) Less(i, j int) bool  { return h[i].Cmp(h[j]) < 0 }
func (h askHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *askHeap) Push(x interface{}) { *h = append(*h, x.(decimal.Decimal)) }

func (h *askHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h askHeap) Peek() (decimal.Decimal, bool) {
	if len(h) == 0 {
		return decimal.Zero, false
	}
	return h[0], true
}
