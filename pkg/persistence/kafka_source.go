package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

type KafkaSourceConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// Version is the broker protocol version, e.g. "3.6.0". Empty keeps the
	// sarama default.
	Version string
	// MaxRetries bounds the save attempts of one message before the session
	// is restarted from the last marked offset.
	MaxRetries uint64
}

// claimHandler saves every message of a claim and marks it only after the
// save succeeded.
type claimHandler struct {
	writer        *Writer
	maxRetries    uint64
	retryInterval time.Duration
	logger        *zap.Logger
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.save(ctx, msg); err != nil {
				h.logger.Error("save record failed, restarting session",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
				return err
			}
			sess.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *claimHandler) save(ctx context.Context, msg *sarama.ConsumerMessage) error {
	boff := backoff.NewExponentialBackOff()
	if h.retryInterval > 0 {
		boff.InitialInterval = h.retryInterval
	}
	return backoff.Retry(func() error {
		return h.writer.Handle(ctx, msg.Topic, msg.Value)
	}, backoff.WithContext(backoff.WithMaxRetries(boff, h.maxRetries), ctx))
}

// RunKafka consumes the record topics with a sarama consumer group until ctx
// is done.
func RunKafka(ctx context.Context, cfg KafkaSourceConfig, writer *Writer, logger *zap.Logger) error {
	sc := sarama.NewConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return err
		}
		sc.Version = v
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return err
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			logger.Error("consumer group error", zap.Error(err))
		}
	}()

	handler := &claimHandler{
		writer:     writer,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
	for {
		if err := group.Consume(ctx, cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Error("consume", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
