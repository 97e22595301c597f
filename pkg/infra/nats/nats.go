// Package nats_wrapper carries persistence records over NATS JetStream: a
// publisher usable as a record transport and a durable pull consumer.
package nats_wrapper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// KeyHeader carries the record key, the JetStream counterpart of a Kafka
// message key.
const KeyHeader = "Engine-Key"

type NatsConfig struct {
	URL        string        `yaml:"url"`
	Name       string        `yaml:"name"`
	Stream     string        `yaml:"stream"`
	Subjects   []string      `yaml:"subjects"`
	MaxPending int           `yaml:"max_pending"`
	Durable    string        `yaml:"durable"`
	FetchBatch int           `yaml:"fetch_batch"`
	FetchWait  time.Duration `yaml:"fetch_wait"`
}

func (c NatsConfig) withDefaults() NatsConfig {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Stream == "" {
		c.Stream = "ENGINE"
	}
	if len(c.Subjects) == 0 {
		c.Subjects = []string{"engine.db.>"}
	}
	if c.MaxPending <= 0 {
		c.MaxPending = 65536
	}
	if c.FetchBatch <= 0 {
		c.FetchBatch = 100
	}
	if c.FetchWait <= 0 {
		c.FetchWait = time.Second
	}
	return c
}

// Connect dials NATS with retries and makes sure the stream exists.
func Connect(ctx context.Context, cfg NatsConfig) (*nats.Conn, nats.JetStreamContext, error) {
	cfg = cfg.withDefaults()

	var nc *nats.Conn
	boff := backoff.NewExponentialBackOff()
	err := backoff.Retry(func() error {
		var err error
		nc, err = nats.Connect(cfg.URL, nats.Name(cfg.Name), nats.MaxReconnects(-1))
		if err != nil {
			zap.S().Warnf("connect nats error: %v", err)
		}
		return err
	}, backoff.WithContext(boff, ctx))
	if err != nil {
		return nil, nil, err
	}

	js, err := nc.JetStream(nats.PublishAsyncMaxPending(cfg.MaxPending))
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	if err := EnsureStream(js, cfg.Stream, cfg.Subjects); err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, js, nil
}

// EnsureStream creates the stream when it does not exist yet.
func EnsureStream(js nats.JetStreamManager, name string, subjects []string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}

// Publisher publishes to JetStream subjects and waits for the ack.
type Publisher struct {
	js nats.JetStreamContext
}

func NewPublisher(js nats.JetStreamContext) *Publisher {
	return &Publisher{js: js}
}

// Send publishes value on subject with key in KeyHeader.
func (p *Publisher) Send(ctx context.Context, subject, key string, value []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = value
	if key != "" {
		msg.Header.Set(KeyHeader, key)
	}
	_, err := p.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

// DurableName derives a consumer name for subject; durable names may not
// contain dots.
func DurableName(prefix, subject string) string {
	return prefix + "-" + strings.ReplaceAll(subject, ".", "-")
}

type Message struct {
	Subject string
	Key     string
	Data    []byte
}

func wrapMessage(m *nats.Msg) Message {
	msg := Message{Subject: m.Subject, Data: m.Data}
	if m.Header != nil {
		msg.Key = m.Header.Get(KeyHeader)
	}
	return msg
}

// Handler processes one message. A nil error acks it, any other error naks
// it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Consume runs a durable pull consumer on subject until ctx is done.
func Consume(ctx context.Context, js nats.JetStreamContext, cfg NatsConfig, subject string, handler Handler, logger *zap.Logger) error {
	cfg = cfg.withDefaults()
	sub, err := js.PullSubscribe(subject, cfg.Durable, nats.BindStream(cfg.Stream), nats.AckExplicit())
	if err != nil {
		return fmt.Errorf("pull subscribe %s: %w", subject, err)
	}
	defer func() {
		if err := sub.Drain(); err != nil {
			logger.Warn("drain subscription", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchWait)
		msgs, err := sub.Fetch(cfg.FetchBatch, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Error("fetch error", zap.String("subject", subject), zap.Error(err))
			time.Sleep(cfg.FetchWait)
			continue
		}

		for _, m := range msgs {
			if err := handler(ctx, wrapMessage(m)); err != nil {
				logger.Error("handle message",
					zap.String("subject", m.Subject),
					zap.Error(err),
				)
				_ = m.Nak()
				continue
			}
			if err := m.Ack(); err != nil {
				logger.Warn("ack message", zap.String("subject", m.Subject), zap.Error(err))
			}
		}
	}
}
