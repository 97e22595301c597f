package orderbook

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limit(id string, side Side, price, qty string) *Order {
	return &Order{
		ID: id, ClOrdID: "c-" + id, Symbol: "test", Side: side, Type: LIMIT, TimeInForce: DAY,
		Price: d(price), Qty: d(qty), RemainingQty: d(qty),
	}
}

func market(id string, side Side, qty string) *Order {
	return &Order{
		ID: id, ClOrdID: "c-" + id, Symbol: "test", Side: side, Type: MARKET, TimeInForce: IOC,
		Qty: d(qty), RemainingQty: d(qty),
	}
}

func mustAdd(t *testing.T, ob *OrderBook, o *Order) {
	t.Helper()
	if err := ob.AddOrder(o); err != nil {
		t.Fatalf("add %s: %v", o.ID, err)
	}
}

func TestRestOnEmptyBook(t *testing.T) {
	ob := newOrderBook("test")
	buy := limit("B1", BUY, "100.00", "10")

	if matches := ob.MatchAggressor(buy); len(matches) != 0 {
		t.Fatalf("expected no match, got %d", len(matches))
	}
	mustAdd(t, ob, buy)

	got, ok := ob.GetOrderByID("B1")
	if !ok {
		t.Fatalf("order not resting")
	}
	if !got.RemainingQty.Equal(d("10")) {
		t.Errorf("expected remaining 10, got %s", got.RemainingQty)
	}
	if got.Seq != 1 {
		t.Errorf("expected seq 1, got %d", got.Seq)
	}
}

func TestMatchAtMakerPrice(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("B1", BUY, "100.00", "10"))

	sell := limit("S1", SELL, "99.00", "6")
	matches := ob.MatchAggressor(sell)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	m := matches[0]
	if !m.Qty.Equal(d("6")) || !m.Price.Equal(d("100")) {
		t.Errorf("incorrect qty/price: %+v", m)
	}
	if m.AggressorOrderID != "S1" || m.RestingOrderID != "B1" {
		t.Errorf("incorrect order ids: %+v", m)
	}
	if !sell.IsFilled() {
		t.Errorf("aggressor should be filled, remaining %s", sell.RemainingQty)
	}
	if _, ok := ob.GetOrderByID("S1"); ok {
		t.Errorf("aggressor must not be inserted by the book")
	}

	rest, ok := ob.GetOrderByID("B1")
	if !ok || !rest.RemainingQty.Equal(d("4")) {
		t.Fatalf("expected B1 resting with 4, got %+v", rest)
	}
	if best, _ := ob.BestBid(); !best.Equal(d("100")) {
		t.Errorf("expected best bid 100, got %s", best)
	}
}

func TestTimePriority(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("B1", BUY, "100.00", "5"))
	mustAdd(t, ob, limit("B2", BUY, "100.00", "5"))

	matches := ob.MatchAggressor(limit("S1", SELL, "100.00", "5"))
	if len(matches) != 1 || matches[0].RestingOrderID != "B1" {
		t.Fatalf("expected a single match against B1, got %+v", matches)
	}
	if _, ok := ob.GetOrderByID("B1"); ok {
		t.Errorf("B1 should be removed")
	}
	if _, ok := ob.GetOrderByClOrdID("c-B1"); ok {
		t.Errorf("B1 should be removed from the client order index")
	}
	b2, ok := ob.GetOrderByID("B2")
	if !ok || !b2.RemainingQty.Equal(d("5")) || b2.Seq != 2 {
		t.Errorf("B2 should be untouched, got %+v", b2)
	}
}

func TestNoMatchDueToPrice(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("S1", SELL, "100", "10"))

	buy := limit("B1", BUY, "98", "10")
	if matches := ob.MatchAggressor(buy); len(matches) != 0 {
		t.Fatalf("expected no match, got %d", len(matches))
	}
	if !buy.RemainingQty.Equal(d("10")) {
		t.Errorf("aggressor remaining changed: %s", buy.RemainingQty)
	}
}

func TestMultiLevelMatch(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("S1", SELL, "101", "5"))
	mustAdd(t, ob, limit("S2", SELL, "100", "5"))
	mustAdd(t, ob, limit("S3", SELL, "102", "5"))
	mustAdd(t, ob, limit("S4", SELL, "100", "5"))

	buy := limit("B1", BUY, "101", "18")
	matches := ob.MatchAggressor(buy)

	want := []struct {
		id    string
		price string
	}{{"S2", "100"}, {"S4", "100"}, {"S1", "101"}}
	if len(matches) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(matches))
	}
	for i, w := range want {
		if matches[i].RestingOrderID != w.id || !matches[i].Price.Equal(d(w.price)) {
			t.Errorf("match %d: expected %s@%s, got %+v", i, w.id, w.price, matches[i])
		}
	}
	if !buy.RemainingQty.Equal(d("3")) {
		t.Errorf("expected remaining 3, got %s", buy.RemainingQty)
	}
	if best, _ := ob.BestAsk(); !best.Equal(d("102")) {
		t.Errorf("expected best ask 102, got %s", best)
	}
	if ob.Len() != 1 {
		t.Errorf("expected 1 resting order, got %d", ob.Len())
	}
}

func TestQuantityConservation(t *testing.T) {
	ob := newOrderBook("test")
	for i, qty := range []string{"3", "7", "2", "9"} {
		mustAdd(t, ob, limit(string(rune('a'+i)), SELL, "100", qty))
	}

	buy := limit("B1", BUY, "100", "15")
	before := map[string]decimal.Decimal{}
	for _, o := range ob.Orders() {
		before[o.ID] = o.RemainingQty
	}

	aggRemaining := buy.RemainingQty
	total := decimal.Zero
	for _, m := range ob.MatchAggressor(buy) {
		limitQty := decimal.Min(aggRemaining, before[m.RestingOrderID])
		if m.Qty.GreaterThan(limitQty) || !m.Qty.IsPositive() {
			t.Errorf("match qty %s outside (0, %s]", m.Qty, limitQty)
		}
		aggRemaining = aggRemaining.Sub(m.Qty)
		if !m.AggressorRemaining.Equal(aggRemaining) {
			t.Errorf("aggressor remaining %s, want %s", m.AggressorRemaining, aggRemaining)
		}
		if m.RestingRemaining.IsNegative() {
			t.Errorf("negative resting remaining %s", m.RestingRemaining)
		}
		total = total.Add(m.Qty)
	}
	if !total.Equal(d("15")) {
		t.Errorf("expected 15 matched, got %s", total)
	}
	if !buy.AvgPrice().Equal(d("100")) {
		t.Errorf("expected avg price 100, got %s", buy.AvgPrice())
	}
}

func TestMarketOrderSweepsAndNeverRests(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("B1", BUY, "99", "4"))
	mustAdd(t, ob, limit("B2", BUY, "98", "4"))

	sell := market("S1", SELL, "10")
	matches := ob.MatchAggressor(sell)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if !sell.RemainingQty.Equal(d("2")) {
		t.Errorf("expected residual 2, got %s", sell.RemainingQty)
	}
	if !sell.AvgPrice().Equal(d("98.5")) {
		t.Errorf("expected avg 98.5, got %s", sell.AvgPrice())
	}
	if err := ob.AddOrder(sell); !errors.Is(err, ErrMarketOrderCannotRest) {
		t.Fatalf("expected ErrMarketOrderCannotRest, got %v", err)
	}
	if ob.Len() != 0 {
		t.Errorf("book should be empty, has %d", ob.Len())
	}
}

func TestAddOrderRefusesDuplicates(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", BUY, "100", "10"))

	if err := ob.AddOrder(limit("1", BUY, "101", "1")); !errors.Is(err, ErrDuplicateOrderID) {
		t.Errorf("expected ErrDuplicateOrderID, got %v", err)
	}
	dup := limit("2", BUY, "101", "1")
	dup.ClOrdID = "c-1"
	if err := ob.AddOrder(dup); !errors.Is(err, ErrDuplicateClOrdID) {
		t.Errorf("expected ErrDuplicateClOrdID, got %v", err)
	}
	zero := limit("3", BUY, "101", "0")
	if err := ob.AddOrder(zero); !errors.Is(err, ErrInvalidRemainingQty) {
		t.Errorf("expected ErrInvalidRemainingQty, got %v", err)
	}
	if ob.Len() != 1 || ob.LastSeq() != 1 {
		t.Errorf("refused orders must not mutate the book: len=%d seq=%d", ob.Len(), ob.LastSeq())
	}
}

func TestCancelOrder(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", BUY, "100", "10"))

	order, ok := ob.CancelOrder("1")
	if !ok || order.ID != "1" {
		t.Fatalf("expected cancel success")
	}
	if _, ok := ob.GetOrderByID("1"); ok {
		t.Fatalf("order should be removed from ordersByID")
	}
	if _, ok := ob.GetOrderByClOrdID("c-1"); ok {
		t.Fatalf("order should be removed from clOrdIndex")
	}
	if _, ok := ob.BestBid(); ok {
		t.Fatalf("emptied level should be removed")
	}
	if _, ok := ob.CancelOrder("1"); ok {
		t.Fatalf("second cancel should fail")
	}
}

func TestCancelMiddleOfLevel(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", SELL, "100", "1"))
	mustAdd(t, ob, limit("2", SELL, "100", "2"))
	mustAdd(t, ob, limit("3", SELL, "100", "3"))

	if _, ok := ob.CancelOrder("2"); !ok {
		t.Fatalf("expected cancel success")
	}
	_, asks := ob.Depth(0)
	if len(asks) != 1 || asks[0].Orders != 2 || !asks[0].Qty.Equal(d("4")) {
		t.Fatalf("unexpected level after cancel: %+v", asks)
	}

	matches := ob.MatchAggressor(limit("B", BUY, "100", "4"))
	if len(matches) != 2 || matches[0].RestingOrderID != "1" || matches[1].RestingOrderID != "3" {
		t.Fatalf("unexpected fill order: %+v", matches)
	}
}

func TestReplaceLosesPriority(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", BUY, "100", "10"))
	mustAdd(t, ob, limit("2", BUY, "100", "10"))
	lastSeq := ob.LastSeq()

	repl := limit("1b", BUY, "100", "10")
	repl.ClOrdID = "c-1"
	old, err := ob.ReplaceOrder("1", repl)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if old.ID != "1" {
		t.Errorf("expected the original back, got %s", old.ID)
	}
	if _, ok := ob.GetOrderByID("1"); ok {
		t.Errorf("original still indexed")
	}
	if repl.Seq <= lastSeq {
		t.Errorf("replacement seq %d not greater than %d", repl.Seq, lastSeq)
	}
	if got, ok := ob.GetOrderByClOrdID("c-1"); !ok || got.ID != "1b" {
		t.Errorf("client order id should resolve to the replacement, got %+v", got)
	}

	matches := ob.MatchAggressor(limit("S", SELL, "100", "10"))
	if len(matches) != 1 || matches[0].RestingOrderID != "2" {
		t.Fatalf("order 2 should now have priority, got %+v", matches)
	}
}

func TestReplaceUnknownOrder(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", BUY, "100", "10"))

	_, err := ob.ReplaceOrder("missing", limit("2", BUY, "101", "5"))
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, ok := ob.GetOrderByID("2"); ok {
		t.Errorf("new order must not be added")
	}
	if ob.Len() != 1 {
		t.Errorf("book mutated: %d orders", ob.Len())
	}
}

func TestReplaceWithMarketKeepsOriginal(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", BUY, "100", "10"))

	if _, err := ob.ReplaceOrder("1", market("2", BUY, "5")); !errors.Is(err, ErrMarketOrderCannotRest) {
		t.Fatalf("expected ErrMarketOrderCannotRest, got %v", err)
	}
	if _, ok := ob.GetOrderByID("1"); !ok {
		t.Errorf("original should still rest")
	}
}

func TestPricePriorityAfterChurn(t *testing.T) {
	ob := newOrderBook("test")
	prices := []string{"100.5", "99", "101.25", "98", "100.5", "97.75", "101"}
	for i, p := range prices {
		mustAdd(t, ob, limit(string(rune('A'+i)), BUY, p, "1"))
	}
	ob.CancelOrder("C") // 101.25
	ob.CancelOrder("E") // one of the 100.5

	best, _ := ob.BestBid()
	for _, o := range ob.Orders() {
		if o.Price.GreaterThan(best) {
			t.Fatalf("best bid %s below resting %s", best, o.Price)
		}
	}
	if !best.Equal(d("101")) {
		t.Errorf("expected best bid 101, got %s", best)
	}

	bids, _ := ob.Depth(3)
	if len(bids) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(bids))
	}
	for i := 1; i < len(bids); i++ {
		if !bids[i-1].Price.GreaterThan(bids[i].Price) {
			t.Errorf("levels out of order: %+v", bids)
		}
	}
}

func TestIndexConsistency(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", BUY, "100", "5"))
	mustAdd(t, ob, limit("2", BUY, "99", "5"))
	mustAdd(t, ob, limit("3", SELL, "101", "5"))
	ob.MatchAggressor(limit("4", SELL, "99", "7"))
	ob.CancelOrder("3")

	seen := map[string]bool{}
	for _, o := range ob.Orders() {
		seen[o.ID] = true
		byCl, ok := ob.GetOrderByClOrdID(o.ClOrdID)
		if !ok || byCl.ID != o.ID {
			t.Errorf("clOrdId %s does not resolve to %s", o.ClOrdID, o.ID)
		}
	}
	for _, id := range []string{"1", "2", "3", "4"} {
		_, byID := ob.GetOrderByID(id)
		_, byCl := ob.GetOrderByClOrdID("c-" + id)
		if byID != byCl || byID != seen[id] {
			t.Errorf("order %s: byID=%v byClOrdID=%v onLevel=%v", id, byID, byCl, seen[id])
		}
	}
}

func TestFillableQty(t *testing.T) {
	ob := newOrderBook("test")
	mustAdd(t, ob, limit("1", SELL, "100", "3"))
	mustAdd(t, ob, limit("2", SELL, "101", "3"))
	mustAdd(t, ob, limit("3", SELL, "103", "3"))

	if got := ob.FillableQty(limit("b", BUY, "101", "10")); !got.Equal(d("6")) {
		t.Errorf("expected 6, got %s", got)
	}
	if got := ob.FillableQty(limit("b", BUY, "101", "4")); !got.Equal(d("4")) {
		t.Errorf("expected 4, got %s", got)
	}
	if got := ob.FillableQty(market("m", BUY, "100")); !got.Equal(d("9")) {
		t.Errorf("expected 9, got %s", got)
	}
	if ob.Len() != 3 {
		t.Errorf("FillableQty must not modify the book")
	}
}

func TestHighVolumeOrders(t *testing.T) {
	ob := newOrderBook("test")
	for i := 0; i < 1000; i++ {
		o := limit("S"+decimal.NewFromInt(int64(i)).String(), SELL, "100", "1")
		mustAdd(t, ob, o)
	}
	buy := limit("B", BUY, "100", "1000")
	if matches := ob.MatchAggressor(buy); len(matches) != 1000 {
		t.Fatalf("expected 1000 matches, got %d", len(matches))
	}
	if ob.Len() != 0 {
		t.Errorf("expected empty book, got %d", ob.Len())
	}
	if _, ok := ob.BestAsk(); ok {
		t.Errorf("ask side should be empty")
	}
}
