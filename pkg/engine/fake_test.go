package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joripage/matching-engine/pkg/engine/riskrule"
	"github.com/joripage/matching-engine/pkg/event"
	"github.com/joripage/matching-engine/pkg/instrument"
	"github.com/joripage/matching-engine/pkg/metrics"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExecutions struct {
	mu      sync.Mutex
	reports []event.ExecutionReport
}

func (f *fakeExecutions) SendExecution(r event.ExecutionReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
}

func (f *fakeExecutions) all() []event.ExecutionReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.ExecutionReport(nil), f.reports...)
}

func (f *fakeExecutions) execs() []event.Execution {
	var out []event.Execution
	for _, r := range f.all() {
		out = append(out, r.Execution)
	}
	return out
}

func (f *fakeExecutions) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = nil
}

type fakeRecords struct {
	mu     sync.Mutex
	orders []event.OrderRecord
	trades []event.TradeRecord
	books  []event.BookStateRecord
}

func (f *fakeRecords) PublishOrder(r event.OrderRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, r)
}

func (f *fakeRecords) PublishTrade(r event.TradeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, r)
}

func (f *fakeRecords) PublishBookState(r event.BookStateRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books = append(f.books, r)
}

type harness struct {
	p       *Processor
	books   *orderbook.BookManager
	store   *instrument.Store
	execs   *fakeExecutions
	records *fakeRecords
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, rules ...riskrule.RiskRule) *harness {
	t.Helper()
	store, err := instrument.NewStore(time.UTC, []instrument.Instrument{
		{Symbol: "ACB", Active: true, TradingHours: instrument.AllDay, PriceTickSize: dec("0.01")},
		{Symbol: "VNM", Active: true, TradingHours: instrument.AllDay},
		{Symbol: "HALT", Active: false, TradingHours: instrument.AllDay},
	})
	require.NoError(t, err)

	var n int
	var mu sync.Mutex
	nextID := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}

	h := &harness{
		books:   orderbook.NewBookManager(),
		store:   store,
		execs:   &fakeExecutions{},
		records: &fakeRecords{},
		metrics: metrics.New(),
	}
	h.p = NewProcessor(h.books, store, h.execs, h.records, zap.NewNop(),
		WithRiskRules(rules...),
		WithMetrics(h.metrics),
		WithIDGenerator(nextID),
	)
	return h
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limitReq(id string, side orderbook.Side, price, qty string) event.OrderRequest {
	return event.OrderRequest{
		OrderID: id, ClOrdID: "cl-" + id, InstrumentID: "ACB", Side: side,
		OrderType: orderbook.LIMIT, TimeInForce: orderbook.DAY, Price: dec(price), Quantity: dec(qty),
	}
}

func (h *harness) resting(id string) (*orderbook.Order, bool) {
	return h.books.GetOrCreate("ACB").GetOrderByID(id)
}
