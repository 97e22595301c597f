package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joripage/matching-engine/pkg/event"
)

// Transport delivers one encoded message keyed for partitioning.
type Transport interface {
	Send(ctx context.Context, topic, key string, value []byte) error
}

// sendJSON submits v to pool on the worker owning key, so messages sharing a
// key reach the transport in submit order.
func sendJSON(pool *Pool, t Transport, topic, key string, v any) {
	pool.Submit(key, encodeAndSend(t, topic, key, v))
}

func encodeAndSend(t Transport, topic, key string, v any) Task {
	return func(ctx context.Context) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", topic, err)
		}
		if err := t.Send(ctx, topic, key, b); err != nil {
			return fmt.Errorf("send %s key=%s: %w", topic, key, err)
		}
		return nil
	}
}

// ExecutionPublisher sends execution reports to the executions topic keyed
// by client id.
type ExecutionPublisher struct {
	pool      *Pool
	transport Transport
	topic     string
}

func NewExecutionPublisher(pool *Pool, transport Transport, topic string) *ExecutionPublisher {
	return &ExecutionPublisher{pool: pool, transport: transport, topic: topic}
}

func (p *ExecutionPublisher) SendExecution(report event.ExecutionReport) {
	sendJSON(p.pool, p.transport, p.topic, report.ClientID, report)
}

type RecordTopics struct {
	Orders    string
	Trades    string
	OrderBook string
}

// RecordPublisher sends persistence records: orders keyed by order id,
// trades by trade id, book states by instrument id.
type RecordPublisher struct {
	pool      *Pool
	transport Transport
	topics    RecordTopics
}

func NewRecordPublisher(pool *Pool, transport Transport, topics RecordTopics) *RecordPublisher {
	return &RecordPublisher{pool: pool, transport: transport, topics: topics}
}

func (p *RecordPublisher) PublishOrder(rec event.OrderRecord) {
	sendJSON(p.pool, p.transport, p.topics.Orders, rec.OrderID, rec)
}

func (p *RecordPublisher) PublishTrade(rec event.TradeRecord) {
	sendJSON(p.pool, p.transport, p.topics.Trades, rec.TradeID, rec)
}

func (p *RecordPublisher) PublishBookState(rec event.BookStateRecord) {
	sendJSON(p.pool, p.transport, p.topics.OrderBook, rec.InstrumentID, rec)
}
