// file: pkg/orderbook/orderbook.go

package orderbook

import (
	"sort"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// bookSide holds one side of the book: a FIFO queue per price and a heap of the
// prices that currently have a queue.
type bookSide struct {
	levels map[string]*deque.Deque[*Order]
	prices *PriceHeap
}

func newBookSide(prices *PriceHeap) *bookSide {
	return &bookSide{
		levels: make(map[string]*deque.Deque[*Order]),
		prices: prices,
	}
}

func (s *bookSide) push(order *Order) {
	key := priceKey(order.Price)
	q := s.levels[key]
	if q == nil {
		q = &deque.Deque[*Order]{}
		s.levels[key] = q
		s.prices.Add(order.Price)
	}
	q.PushBack(order)
}

func (s *bookSide) remove(order *Order) bool {
	key := priceKey(order.Price)
	q := s.levels[key]
	if q == nil {
		return false
	}
	i := q.Index(func(o *Order) bool { return o.ID == order.ID })
	if i < 0 {
		return false
	}
	q.Remove(i)
	if q.Len() == 0 {
		s.dropLevel(order.Price)
	}
	return true
}

func (s *bookSide) dropLevel(price decimal.Decimal) {
	delete(s.levels, priceKey(price))
	s.prices.Remove(price)
}

func (s *bookSide) best() (decimal.Decimal, *deque.Deque[*Order], bool) {
	price, ok := s.prices.Peek()
	if !ok {
		return decimal.Zero, nil, false
	}
	return price, s.levels[priceKey(price)], true
}

func (s *bookSide) empty() bool {
	return s.prices.Len() == 0
}

func (s *bookSide) depth(n int) []Level {
	prices := s.prices.Sorted()
	if n > 0 && len(prices) > n {
		prices = prices[:n]
	}
	out := make([]Level, 0, len(prices))
	for _, p := range prices {
		q := s.levels[priceKey(p)]
		lvl := Level{Price: p, Qty: decimal.Zero, Orders: q.Len()}
		for i := 0; i < q.Len(); i++ {
			lvl.Qty = lvl.Qty.Add(q.At(i).RemainingQty)
		}
		out = append(out, lvl)
	}
	return out
}

// OrderBook is the price/time priority book of one instrument. It is not
// safe for concurrent use: callers must guarantee a single writer at a time
// (see BookManager.Exec).
type OrderBook struct {
	symbol string
	seq    uint64

	bids *bookSide
	asks *bookSide

	ordersByID map[string]*Order
	clOrdIndex map[string]string // ClOrdID -> ID
	newTradeID func() string
}

func newOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol:     symbol,
		bids:       newBookSide(newBidHeap()),
		asks:       newBookSide(newAskHeap()),
		ordersByID: make(map[string]*Order),
		clOrdIndex: make(map[string]string),
		newTradeID: uuid.NewString,
	}
}

func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// Len is the number of resting orders.
func (ob *OrderBook) Len() int {
	return len(ob.ordersByID)
}

// LastSeq is the last sequence number handed out by this book.
func (ob *OrderBook) LastSeq() uint64 {
	return ob.seq
}

func (ob *OrderBook) side(s Side) *bookSide {
	if s == BUY {
		return ob.bids
	}
	return ob.asks
}

// AddOrder assigns the next sequence number and rests the order. MARKET
// orders, orders without remaining quantity and duplicate ids are refused.
func (ob *OrderBook) AddOrder(order *Order) error {
	if err := ob.canRest(order, nil); err != nil {
		return err
	}

	ob.seq++
	order.Seq = ob.seq

	ob.ordersByID[order.ID] = order
	if order.ClOrdID != "" {
		ob.clOrdIndex[order.ClOrdID] = order.ID
	}
	ob.side(order.Side).push(order)
	return nil
}

// canRest reports why order could not be added. ignore is an order about to
// leave the book, whose ids may be reused.
func (ob *OrderBook) canRest(order *Order, ignore *Order) error {
	if order.Type == MARKET {
		return ErrMarketOrderCannotRest
	}
	if !order.RemainingQty.IsPositive() {
		return ErrInvalidRemainingQty
	}
	if o, ok := ob.ordersByID[order.ID]; ok && o != ignore {
		return ErrDuplicateOrderID
	}
	if order.ClOrdID != "" {
		if id, ok := ob.clOrdIndex[order.ClOrdID]; ok && (ignore == nil || id != ignore.ID) {
			return ErrDuplicateClOrdID
		}
	}
	return nil
}

// CancelOrder removes the order from its level and both indices.
func (ob *OrderBook) CancelOrder(orderID string) (*Order, bool) {
	order, ok := ob.ordersByID[orderID]
	if !ok {
		return nil, false
	}
	ob.side(order.Side).remove(order)
	ob.unindex(order)
	return order, true
}

// ReplaceOrder cancels origOrderID and rests newOrder with a fresh sequence
// number. When the original does not exist, or newOrder could not rest,
// nothing changes.
func (ob *OrderBook) ReplaceOrder(origOrderID string, newOrder *Order) (*Order, error) {
	old, ok := ob.ordersByID[origOrderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if err := ob.canRest(newOrder, old); err != nil {
		return nil, err
	}
	ob.CancelOrder(origOrderID)
	_ = ob.AddOrder(newOrder)
	return old, nil
}

func (ob *OrderBook) GetOrderByID(orderID string) (*Order, bool) {
	order, ok := ob.ordersByID[orderID]
	return order, ok
}

func (ob *OrderBook) GetOrderByClOrdID(clOrdID string) (*Order, bool) {
	orderID, ok := ob.clOrdIndex[clOrdID]
	if !ok {
		return nil, false
	}
	return ob.GetOrderByID(orderID)
}

func (ob *OrderBook) unindex(order *Order) {
	delete(ob.ordersByID, order.ID)
	if order.ClOrdID != "" && ob.clOrdIndex[order.ClOrdID] == order.ID {
		delete(ob.clOrdIndex, order.ClOrdID)
	}
}

func crosses(aggressor *Order, bestPrice decimal.Decimal) bool {
	if aggressor.Type == MARKET {
		return true
	}
	if aggressor.Side == BUY {
		return bestPrice.LessThanOrEqual(aggressor.Price)
	}
	return bestPrice.GreaterThanOrEqual(aggressor.Price)
}

// MatchAggressor fills the incoming order against the opposite side, best
// price first and FIFO within a price. The aggressor's RemainingQty is updated
// in place; the book never rests it.
func (ob *OrderBook) MatchAggressor(order *Order) []Match {
	var results []Match
	counter := ob.side(order.Side.Opposite())

	for order.RemainingQty.IsPositive() && !counter.empty() {
		bestPrice, q, _ := counter.best()
		if !crosses(order, bestPrice) {
			break
		}

		for q.Len() > 0 && order.RemainingQty.IsPositive() {
			resting := q.Front()
			qty := decimal.Min(order.RemainingQty, resting.RemainingQty)

			order.fill(qty, bestPrice)
			resting.fill(qty, bestPrice)

			results = append(results, Match{
				TradeID:            ob.newTradeID(),
				AggressorOrderID:   order.ID,
				RestingOrderID:     resting.ID,
				Price:              bestPrice,
				Qty:                qty,
				AggressorRemaining: order.RemainingQty,
				RestingRemaining:   resting.RemainingQty,
				Resting:            resting,
			})

			if resting.IsFilled() {
				q.PopFront()
				ob.unindex(resting)
			}
		}

		if q.Len() == 0 {
			counter.dropLevel(bestPrice)
		}
	}

	return results
}

// FillableQty is how much of order could trade right now, capped at its
// remaining quantity. The book is not modified.
func (ob *OrderBook) FillableQty(order *Order) decimal.Decimal {
	total := decimal.Zero
	counter := ob.side(order.Side.Opposite())
	for _, price := range counter.prices.Sorted() {
		if !crosses(order, price) {
			break
		}
		q := counter.levels[priceKey(price)]
		for i := 0; i < q.Len(); i++ {
			total = total.Add(q.At(i).RemainingQty)
			if total.GreaterThanOrEqual(order.RemainingQty) {
				return order.RemainingQty
			}
		}
	}
	return total
}

func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	return ob.bids.prices.Peek()
}

func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	return ob.asks.prices.Peek()
}

// Depth aggregates up to n levels per side, best first. n <= 0 means all.
func (ob *OrderBook) Depth(n int) (bids, asks []Level) {
	return ob.bids.depth(n), ob.asks.depth(n)
}

// Orders returns every resting order in sequence order.
func (ob *OrderBook) Orders() []*Order {
	out := make([]*Order, 0, len(ob.ordersByID))
	for _, o := range ob.ordersByID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
