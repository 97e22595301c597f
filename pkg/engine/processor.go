package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/matching-engine/pkg/engine/riskrule"
	"github.com/joripage/matching-engine/pkg/event"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/metrics"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Processor turns commands into book mutations, execution reports and
// persistence records. Every book access goes through BookManager.Exec, so
// commands of one instrument are applied one at a time.
type Processor struct {
	books       *orderbook.BookManager
	instruments InstrumentState
	executions  ExecutionSender
	records     RecordPublisher
	rules       []riskrule.RiskRule
	metrics     *metrics.Metrics
	logger      *zap.Logger

	bookStateDepth int
	now            func() time.Time
	newID          func() string
}

type Option func(p *Processor)

func WithRiskRules(rules ...riskrule.RiskRule) Option {
	return func(p *Processor) { p.rules = append(p.rules, rules...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithBookStateDepth sets how many levels per side book-state records keep
// as top of book.
func WithBookStateDepth(n int) Option {
	return func(p *Processor) { p.bookStateDepth = n }
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(p *Processor) { p.newID = newID }
}

func NewProcessor(
	books *orderbook.BookManager,
	instruments InstrumentState,
	executions ExecutionSender,
	records RecordPublisher,
	logger *zap.Logger,
	opts ...Option,
) *Processor {
	p := &Processor{
		books:          books,
		instruments:    instruments,
		executions:     executions,
		records:        records,
		logger:         logger,
		bookStateDepth: 3,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.New()
	}
	return p
}

// Handle dispatches one decoded command.
func (p *Processor) Handle(ctx context.Context, cmd event.Command) error {
	start := time.Now()
	h := cmd.Meta()

	switch c := cmd.(type) {
	case *event.NewOrder:
		p.ProcessNew(ctx, c.Order, h.ClientID)
	case *event.CancelOrder:
		p.ProcessCancel(ctx, c.Cancel, h.ClientID)
	case *event.ReplaceOrder:
		p.ProcessReplace(ctx, c.Replace, h.ClientID)
	case *event.MassCancel:
		n := p.ProcessMassCancel(ctx, c.MassCancel, h.ClientID)
		logging.FromContext(ctx, p.logger).Info("mass cancel done",
			zap.String("scope", c.MassCancel.Scope), zap.Int("canceled", n))
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedCommand, cmd)
	}

	typ := string(cmd.Type())
	p.metrics.CommandsTotal.WithLabelValues(typ).Inc()
	p.metrics.CommandSeconds.WithLabelValues(typ).Observe(time.Since(start).Seconds())
	return nil
}

// ProcessNew validates req and, when valid, matches it and rests or cancels
// the residual according to its time in force.
func (p *Processor) ProcessNew(ctx context.Context, req event.OrderRequest, clientID string) {
	order := p.newOrder(req, clientID)
	if reason := p.validate(order); reason != "" {
		p.reject(ctx, order, reason)
		return
	}

	p.books.Exec(order.Symbol, func(ob *orderbook.OrderBook) {
		if reason := duplicate(ob, order, nil); reason != "" {
			p.reject(ctx, order, reason)
			return
		}

		p.records.PublishOrder(event.NewOrderRecord(order, event.OrderStatusNew, p.now()))
		if p.execute(ob, order, "") {
			p.publishBookState(ob)
		}
	})
}

// ProcessCancel removes the order named by origOrderId, or else origClOrdId.
func (p *Processor) ProcessCancel(ctx context.Context, req event.CancelRequest, clientID string) {
	if !p.books.Exists(req.InstrumentID) {
		p.cancelReject(ctx, req, clientID)
		return
	}

	p.books.Exec(req.InstrumentID, func(ob *orderbook.OrderBook) {
		orig, ok := lookup(ob, req.OrigOrderID, req.OrigClOrdID)
		if !ok {
			p.cancelReject(ctx, req, clientID)
			return
		}

		ob.CancelOrder(orig.ID)
		exec := p.execution(orig, event.ExecTypeCanceled, textUserCanceled)
		p.send(clientID, exec)
		p.records.PublishOrder(event.NewOrderRecord(orig, event.OrderStatusCanceled, p.now()))
		p.publishBookState(ob)
	})
}

// ProcessReplace cancels the original order and runs its replacement through
// matching. The replacement keeps the original's time in force and gets a
// fresh sequence number, so it loses time priority.
func (p *Processor) ProcessReplace(ctx context.Context, req event.ReplaceRequest, clientID string) {
	if !p.books.Exists(req.InstrumentID) {
		p.replaceReject(ctx, req, clientID, reasonOrigNotFound)
		return
	}

	p.books.Exec(req.InstrumentID, func(ob *orderbook.OrderBook) {
		orig, ok := lookup(ob, req.OrigOrderID, req.OrigClOrdID)
		if !ok {
			p.replaceReject(ctx, req, clientID, reasonOrigNotFound)
			return
		}

		order := p.replacement(orig, req, clientID)
		reason := p.validate(order)
		if reason == "" {
			reason = duplicate(ob, order, orig)
		}
		if reason != "" {
			p.replaceReject(ctx, req, clientID, reason)
			return
		}

		ob.CancelOrder(orig.ID)
		p.send(clientID, p.execution(orig, event.ExecTypeReplaced, textReplaced))
		p.records.PublishOrder(event.NewOrderRecord(orig, event.OrderStatusReplaced, p.now()))

		p.records.PublishOrder(event.NewOrderRecord(order, event.OrderStatusNew, p.now()))
		p.execute(ob, order, textReplacement)
		p.publishBookState(ob)
	})
}

// ProcessMassCancel cancels every resting order in scope, optionally only on
// one side, and returns how many were canceled. Each owner gets a CANCELED
// report.
func (p *Processor) ProcessMassCancel(ctx context.Context, req event.MassCancelRequest, clientID string) int {
	canceled := 0
	if req.All() {
		p.books.Range(func(ob *orderbook.OrderBook) bool {
			canceled += p.cancelAll(ob, req.Side)
			return true
		})
	} else if p.books.Exists(req.Scope) {
		p.books.Exec(req.Scope, func(ob *orderbook.OrderBook) {
			canceled = p.cancelAll(ob, req.Side)
		})
	}

	logging.FromContext(ctx, p.logger).Debug("mass cancel",
		zap.String("client_id", clientID), zap.String("scope", req.Scope), zap.Int("canceled", canceled))
	return canceled
}

func (p *Processor) cancelAll(ob *orderbook.OrderBook, side orderbook.Side) int {
	n := 0
	for _, o := range ob.Orders() {
		if side != "" && o.Side != side {
			continue
		}
		ob.CancelOrder(o.ID)
		p.send(o.ClientID, p.execution(o, event.ExecTypeCanceled, textMassCanceled))
		p.records.PublishOrder(event.NewOrderRecord(o, event.OrderStatusCanceled, p.now()))
		n++
	}
	if n > 0 {
		p.publishBookState(ob)
	}
	return n
}

// execute matches order and deals with its residual. It reports whether the
// book changed.
func (p *Processor) execute(ob *orderbook.OrderBook, order *orderbook.Order, restText string) bool {
	if order.TimeInForce == orderbook.FOK && ob.FillableQty(order).LessThan(order.RemainingQty) {
		p.cancelResidual(order, textFillOrKill)
		return false
	}

	matches := ob.MatchAggressor(order)
	p.processMatches(order, matches)
	changed := len(matches) > 0

	if !order.RemainingQty.IsPositive() {
		return changed
	}
	switch {
	case order.Type == orderbook.MARKET:
		p.cancelResidual(order, textMarketResidual)
	case order.TimeInForce == orderbook.IOC || order.TimeInForce == orderbook.FOK:
		p.cancelResidual(order, textImmediateOrCancel)
	default:
		if err := ob.AddOrder(order); err != nil {
			p.logger.Error("rest order failed", zap.String("order_id", order.ID), zap.Error(err))
			p.cancelResidual(order, err.Error())
			return changed
		}
		p.send(order.ClientID, p.execution(order, event.ExecTypeNew, restText))
		p.records.PublishOrder(event.NewOrderRecord(order, event.OrderStatusNew, p.now()))
		changed = true
	}
	return changed
}

// processMatches reports every fill to both sides. Aggressor reports carry
// the running quantity-weighted average price of this command.
func (p *Processor) processMatches(order *orderbook.Order, matches []orderbook.Match) {
	cumQty, notional := decimal.Zero, decimal.Zero

	for _, m := range matches {
		ts := p.now()
		price, qty := m.Price, m.Qty
		cumQty = cumQty.Add(qty)
		notional = notional.Add(price.Mul(qty))
		avg := notional.Div(cumQty)

		p.records.PublishTrade(event.NewTradeRecord(order, m, ts))
		p.instruments.RecordTrade(order.Symbol, price)
		p.metrics.TradesTotal.Inc()

		aggType := fillType(m.AggressorRemaining)
		agg := p.execution(order, aggType, "")
		agg.FilledQty = cumQty
		agg.RemainingQty = m.AggressorRemaining
		agg.AvgPrice = avg
		agg.LastPrice, agg.LastQty = &price, &qty
		agg.TradeID = m.TradeID
		agg.ContraClientID = m.Resting.ClientID
		p.send(order.ClientID, agg)

		aggRec := event.NewOrderRecord(order, event.StatusFor(aggType), ts)
		aggRec.FilledQty, aggRec.RemainingQty, aggRec.AvgPrice = agg.FilledQty, agg.RemainingQty, avg
		p.records.PublishOrder(aggRec)

		resting := m.Resting
		restType := fillType(m.RestingRemaining)
		rest := p.execution(resting, restType, "")
		rest.LastPrice, rest.LastQty = &price, &qty
		rest.TradeID = m.TradeID
		rest.ContraClientID = order.ClientID
		p.send(resting.ClientID, rest)
		p.records.PublishOrder(event.NewOrderRecord(resting, event.StatusFor(restType), ts))
	}
}

func fillType(remaining decimal.Decimal) event.ExecType {
	if remaining.IsPositive() {
		return event.ExecTypePartialFill
	}
	return event.ExecTypeFill
}

// cancelResidual reports the unfilled remainder of an order that will not rest.
func (p *Processor) cancelResidual(order *orderbook.Order, text string) {
	p.send(order.ClientID, p.execution(order, event.ExecTypeCanceled, text))
	p.records.PublishOrder(event.NewOrderRecord(order, event.OrderStatusCanceled, p.now()))
}

func (p *Processor) newOrder(req event.OrderRequest, clientID string) *orderbook.Order {
	id := req.OrderID
	if id == "" {
		id = p.newID()
	}
	tif := req.TimeInForce
	if tif == "" {
		tif = orderbook.DAY
	}
	price := req.Price
	if req.OrderType == orderbook.MARKET {
		price = decimal.Zero
	}
	return &orderbook.Order{
		ID:           id,
		ClOrdID:      req.ClOrdID,
		Symbol:       req.InstrumentID,
		Side:         req.Side,
		Type:         req.OrderType,
		TimeInForce:  tif,
		Price:        price,
		Qty:          req.Quantity,
		RemainingQty: req.Quantity,
		ClientID:     clientID,
		SourceAddr:   req.SourceAddr,
		EntryTime:    p.now(),
	}
}

func (p *Processor) replacement(orig *orderbook.Order, req event.ReplaceRequest, clientID string) *orderbook.Order {
	id := req.NewOrderID
	if id == "" {
		id = p.newID()
	}
	clOrdID := req.ClOrdID
	if clOrdID == "" {
		clOrdID = orig.ClOrdID
	}
	side := req.Side
	if side == "" {
		side = orig.Side
	}
	typ := req.OrderType
	if typ == "" {
		typ = orig.Type
	}
	price := req.Price
	if typ == orderbook.MARKET {
		price = decimal.Zero
	}
	return &orderbook.Order{
		ID:           id,
		ClOrdID:      clOrdID,
		Symbol:       orig.Symbol,
		Side:         side,
		Type:         typ,
		TimeInForce:  orig.TimeInForce,
		Price:        price,
		Qty:          req.Quantity,
		RemainingQty: req.Quantity,
		ClientID:     clientID,
		SourceAddr:   req.SourceAddr,
		EntryTime:    p.now(),
	}
}

// validate returns the reject reason for order, or "" when it may trade.
func (p *Processor) validate(order *orderbook.Order) string {
	inst, ok := p.instruments.Get(order.Symbol)
	if !ok || !p.instruments.IsTradable(order.Symbol) {
		return reasonInvalidInstrument
	}

	switch order.Type {
	case orderbook.LIMIT:
		if !order.Price.IsPositive() {
			return reasonInvalidType
		}
	case orderbook.MARKET:
	default:
		return reasonInvalidType
	}
	if !order.Side.Valid() {
		return reasonInvalidSide + string(order.Side)
	}
	if !order.Qty.IsPositive() {
		return reasonInvalidQuantity
	}
	if !order.TimeInForce.Valid() {
		return reasonInvalidTIF + string(order.TimeInForce)
	}

	for _, rule := range p.rules {
		if err := rule.Check(order, inst); err != nil {
			return err.Error()
		}
	}
	return ""
}

// duplicate refuses ids already resting in ob. ignore is an order that is
// about to leave the book.
func duplicate(ob *orderbook.OrderBook, order, ignore *orderbook.Order) string {
	if o, ok := ob.GetOrderByID(order.ID); ok && o != ignore {
		return reasonDuplicateOrderID
	}
	if order.ClOrdID != "" {
		if o, ok := ob.GetOrderByClOrdID(order.ClOrdID); ok && o != ignore {
			return reasonDuplicateClOrdID
		}
	}
	return ""
}

func lookup(ob *orderbook.OrderBook, orderID, clOrdID string) (*orderbook.Order, bool) {
	if orderID != "" {
		if o, ok := ob.GetOrderByID(orderID); ok {
			return o, true
		}
	}
	if clOrdID != "" {
		return ob.GetOrderByClOrdID(clOrdID)
	}
	return nil, false
}

func (p *Processor) publishBookState(ob *orderbook.OrderBook) {
	p.records.PublishBookState(event.NewBookStateRecord(ob, p.bookStateDepth, p.now()))
}
