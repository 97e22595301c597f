package engine

import (
	"context"
	"encoding/json"

	"github.com/joripage/matching-engine/pkg/event"
	kafkawrapper "github.com/joripage/matching-engine/pkg/kafka_wrapper"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/metrics"
	"go.uber.org/zap"
)

// Deduplicator remembers processed command message ids.
type Deduplicator interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Mark(ctx context.Context, messageID string) error
}

// CommandConsumer feeds inbound command messages to a Processor. It never
// returns an error for a bad message, so the partition always advances.
type CommandConsumer struct {
	processor *Processor
	dedup     Deduplicator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewCommandConsumer(processor *Processor, dedup Deduplicator, m *metrics.Metrics, logger *zap.Logger) *CommandConsumer {
	return &CommandConsumer{processor: processor, dedup: dedup, metrics: m, logger: logger}
}

func (c *CommandConsumer) HandleMessage(ctx context.Context, msg kafkawrapper.Message) error {
	cmd, err := event.DecodeCommand(msg.Value)
	if err != nil {
		c.metrics.CommandsMalformed.Inc()
		c.logger.Warn("skip malformed command",
			zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	id := cmd.Meta().MessageID
	ctx = logging.WithMessageID(ctx, id)
	log := logging.FromContext(ctx, c.logger)

	if id != "" && c.dedup != nil {
		seen, err := c.dedup.Seen(ctx, id)
		if err != nil {
			log.Warn("dedup lookup failed, processing anyway", zap.Error(err))
		}
		if seen {
			c.metrics.CommandsDuplicate.Inc()
			log.Info("skip duplicate command", zap.String("type", string(cmd.Type())))
			return nil
		}
	}

	if err := c.processor.Handle(ctx, cmd); err != nil {
		log.Error("handle command failed", zap.Error(err))
		return nil
	}

	if id != "" && c.dedup != nil {
		if err := c.dedup.Mark(ctx, id); err != nil {
			log.Warn("dedup mark failed", zap.Error(err))
		}
	}
	return nil
}

// MarketDataConsumer applies last trade prices from the market data feed.
type MarketDataConsumer struct {
	instruments InstrumentState
	logger      *zap.Logger
}

func NewMarketDataConsumer(instruments InstrumentState, logger *zap.Logger) *MarketDataConsumer {
	return &MarketDataConsumer{instruments: instruments, logger: logger}
}

func (c *MarketDataConsumer) HandleMessage(ctx context.Context, msg kafkawrapper.Message) error {
	var upd event.MarketDataUpdate
	if err := json.Unmarshal(msg.Value, &upd); err != nil {
		c.logger.Warn("skip malformed market data", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	if upd.InstrumentID == "" || !upd.LastTradePrice.IsPositive() {
		return nil
	}
	c.instruments.RecordTrade(upd.InstrumentID, upd.LastTradePrice)
	return nil
}
