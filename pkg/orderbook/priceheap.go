package orderbook

import (
	"container/heap"

	"github.com/shopspring/decimal"
)

// PriceHeap implements heap.Interface over distinct price levels. It keeps the
// heap position of every price so an emptied level can be dropped from the
// middle of the heap.
type PriceHeap struct {
	prices []decimal.Decimal
	less   func(i, j decimal.Decimal) bool
	index  map[string]int
}

func NewPriceHeap(less func(i, j decimal.Decimal) bool) *PriceHeap {
	return &PriceHeap{
		prices: []decimal.Decimal{},
		less:   less,
		index:  make(map[string]int),
	}
}

func newBidHeap() *PriceHeap {
	return NewPriceHeap(func(i, j decimal.Decimal) bool { return i.GreaterThan(j) }) // max-heap
}

func newAskHeap() *PriceHeap {
	return NewPriceHeap(func(i, j decimal.Decimal) bool { return i.LessThan(j) }) // min-heap
}

// priceKey is the canonical map key of a price, so 100 and 100.00 share a level.
func priceKey(p decimal.Decimal) string {
	return p.String()
}

func (h PriceHeap) Len() int {
	return len(h.prices)
}

func (h PriceHeap) Less(i, j int) bool {
	return h.less(h.prices[i], h.prices[j])
}

func (h PriceHeap) Swap(i, j int) {
	h.prices[i], h.prices[j] = h.prices[j], h.prices[i]
	h.index[priceKey(h.prices[i])] = i
	h.index[priceKey(h.prices[j])] = j
}

func (h *PriceHeap) Push(x any) {
	price := x.(decimal.Decimal)
	key := priceKey(price)
	if _, ok := h.index[key]; ok {
		return
	}
	h.index[key] = len(h.prices)
	h.prices = append(h.prices, price)
}

func (h *PriceHeap) Pop() any {
	n := len(h.prices)
	price := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.index, priceKey(price))
	return price
}

func (h *PriceHeap) Peek() (decimal.Decimal, bool) {
	if len(h.prices) == 0 {
		return decimal.Zero, false
	}
	return h.prices[0], true
}

func (h *PriceHeap) Contains(price decimal.Decimal) bool {
	_, ok := h.index[priceKey(price)]
	return ok
}

// Add pushes a price if it is not present yet.
func (h *PriceHeap) Add(price decimal.Decimal) {
	if h.Contains(price) {
		return
	}
	heap.Push(h, price)
}

// Remove drops a price wherever it sits in the heap.
func (h *PriceHeap) Remove(price decimal.Decimal) bool {
	i, ok := h.index[priceKey(price)]
	if !ok {
		return false
	}
	heap.Remove(h, i)
	return true
}

// Sorted returns the prices best first. The heap itself is left untouched.
func (h *PriceHeap) Sorted() []decimal.Decimal {
	cp := &PriceHeap{
		prices: make([]decimal.Decimal, len(h.prices)),
		less:   h.less,
		index:  make(map[string]int, len(h.prices)),
	}
	copy(cp.prices, h.prices)
	for i, p := range cp.prices {
		cp.index[priceKey(p)] = i
	}

	out := make([]decimal.Decimal, 0, len(h.prices))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(cp).(decimal.Decimal))
	}
	return out
}
