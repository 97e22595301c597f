// Package persistence stores the order, trade and book-state records the
// engine emits. Records arrive over Kafka or NATS and are acknowledged only
// after they are saved.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joripage/matching-engine/pkg/event"
	"github.com/joripage/matching-engine/pkg/metrics"
	"go.uber.org/zap"
)

const (
	KindOrder     = "order"
	KindTrade     = "trade"
	KindBookState = "orderbook"
)

// Topics names the topic (or NATS subject) of every record kind.
type Topics struct {
	Orders    string
	Trades    string
	OrderBook string
}

func (t Topics) List() []string {
	return []string{t.Orders, t.Trades, t.OrderBook}
}

func (t Topics) kind(topic string) string {
	switch topic {
	case t.Orders:
		return KindOrder
	case t.Trades:
		return KindTrade
	case t.OrderBook:
		return KindBookState
	}
	return ""
}

type Writer struct {
	repo    Repo
	topics  Topics
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewWriter(repo Repo, topics Topics, m *metrics.Metrics, logger *zap.Logger) *Writer {
	return &Writer{
		repo:    repo,
		topics:  topics,
		metrics: m,
		logger:  logger,
	}
}

// Handle decodes and saves one record. Records that cannot be decoded, or
// that come from an unknown topic, are logged and skipped. Only a failed save
// returns an error, so the caller can redeliver.
func (w *Writer) Handle(ctx context.Context, topic string, data []byte) error {
	kind := w.topics.kind(topic)
	var err error
	switch kind {
	case KindOrder:
		var rec event.OrderRecord
		if !w.decode(topic, data, &rec) {
			return nil
		}
		err = w.repo.SaveOrder(ctx, orderFromRecord(rec))
	case KindTrade:
		var rec event.TradeRecord
		if !w.decode(topic, data, &rec) {
			return nil
		}
		err = w.repo.SaveTrade(ctx, tradeFromRecord(rec))
	case KindBookState:
		var rec event.BookStateRecord
		if !w.decode(topic, data, &rec) {
			return nil
		}
		st, convErr := bookStateFromRecord(rec)
		if convErr != nil {
			w.logger.Error("convert book state", zap.String("instrumentId", rec.InstrumentID), zap.Error(convErr))
			return nil
		}
		err = w.repo.SaveBookState(ctx, st)
	default:
		w.logger.Warn("record from unknown topic", zap.String("topic", topic))
		return nil
	}

	if err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	if w.metrics != nil {
		w.metrics.RecordsWritten.WithLabelValues(kind).Inc()
	}
	return nil
}

func (w *Writer) decode(topic string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		w.logger.Error("malformed record",
			zap.String("topic", topic),
			zap.ByteString("payload", data),
			zap.Error(err),
		)
		return false
	}
	return true
}
