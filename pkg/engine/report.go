package engine

import (
	"context"

	"github.com/joripage/matching-engine/pkg/event"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// execution describes order in its current state. On a CANCELED report the
// remaining quantity is the quantity that was canceled.
func (p *Processor) execution(o *orderbook.Order, execType event.ExecType, text string) event.Execution {
	return event.Execution{
		ExecID:       p.newID(),
		OrderID:      o.ID,
		ClOrdID:      o.ClOrdID,
		InstrumentID: o.Symbol,
		Side:         o.Side,
		ExecType:     execType,
		FilledQty:    o.FilledQty(),
		RemainingQty: o.RemainingQty,
		Price:        o.Price,
		AvgPrice:     o.AvgPrice(),
		Text:         text,
	}
}

func (p *Processor) send(clientID string, exec event.Execution) {
	p.executions.SendExecution(event.NewExecutionReport(p.newID(), clientID, p.now(), exec))
	p.metrics.ExecutionsTotal.WithLabelValues(string(exec.ExecType)).Inc()
}

func (p *Processor) reject(ctx context.Context, order *orderbook.Order, reason string) {
	logging.FromContext(ctx, p.logger).Info("order rejected",
		zap.String("order_id", order.ID), zap.String("instrument_id", order.Symbol), zap.String("reason", reason))

	exec := p.execution(order, event.ExecTypeRejected, reason)
	exec.AvgPrice = decimal.Zero
	p.send(order.ClientID, exec)
}

func (p *Processor) cancelReject(ctx context.Context, req event.CancelRequest, clientID string) {
	logging.FromContext(ctx, p.logger).Info("cancel rejected",
		zap.String("orig_order_id", req.OrigOrderID), zap.String("orig_cl_ord_id", req.OrigClOrdID))

	clOrdID := req.ClOrdID
	if clOrdID == "" {
		clOrdID = req.OrigClOrdID
	}
	p.send(clientID, event.Execution{
		ExecID:       p.newID(),
		OrderID:      req.OrigOrderID,
		ClOrdID:      clOrdID,
		OrigClOrdID:  req.OrigClOrdID,
		InstrumentID: req.InstrumentID,
		Side:         req.Side,
		ExecType:     event.ExecTypeCanceledRejected,
		Text:         reasonOrderNotFound,
	})
}

func (p *Processor) replaceReject(ctx context.Context, req event.ReplaceRequest, clientID, reason string) {
	logging.FromContext(ctx, p.logger).Info("replace rejected",
		zap.String("orig_order_id", req.OrigOrderID), zap.String("orig_cl_ord_id", req.OrigClOrdID),
		zap.String("reason", reason))

	clOrdID := req.ClOrdID
	if clOrdID == "" {
		clOrdID = req.OrigClOrdID
	}
	p.send(clientID, event.Execution{
		ExecID:       p.newID(),
		OrderID:      req.OrigOrderID,
		ClOrdID:      clOrdID,
		OrigClOrdID:  req.OrigClOrdID,
		InstrumentID: req.InstrumentID,
		Side:         req.Side,
		ExecType:     event.ExecTypeReplaceRejected,
		Price:        req.Price,
		Text:         reason,
	})
}
