// Package kafkawrapper publishes messages to Kafka and runs a consumer group
// whose workers own whole partitions, so messages of one partition are
// handled one at a time and in order.
package kafkawrapper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	Headers   map[string]string
	Raw       kafka.Message
}

type ProducerConfig struct {
	Brokers      []string
	Balancer     kafka.Balancer
	BatchSize    int
	BatchBytes   int64
	BatchTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
	// Async makes WriteMessages return immediately; delivery errors are
	// only logged.
	Async bool
}

type Producer struct {
	w *kafka.Writer
}

var ErrProducerNotInitialized = errors.New("producer not initialized")

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.Balancer == nil {
		cfg.Balancer = &kafka.Hash{}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = 1 << 20
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 5 * time.Millisecond
	}
	wr := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               cfg.Balancer,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           cfg.RequiredAcks,
		Async:                  cfg.Async,
	}
	if cfg.Async {
		wr.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				zap.S().Errorw("kafka async write failed", "count", len(messages), "err", err)
			}
		}
	}
	return &Producer{w: wr}
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return ErrProducerNotInitialized
	}
	var kh []kafka.Header
	for k, v := range headers {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: kh,
		Time:    time.Now(),
	})
}

// Send publishes an already encoded value keyed by key.
func (p *Producer) Send(ctx context.Context, topic, key string, value []byte) error {
	return p.Publish(ctx, topic, []byte(key), value, nil)
}

func (p *Producer) Close(ctx context.Context) error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topic       string
	WorkerCount int
	MaxRetries  int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	// QueueSize is the per-worker buffer between the fetch loop and the worker.
	QueueSize int
}

// Handler processes one message. A nil error commits it. ErrSkipCommit moves
// on without committing. Any other error is retried MaxRetries times, then
// the message goes to the DLQ (if any) and is committed.
type Handler func(ctx context.Context, msg Message) error

// committer is the part of *kafka.Reader the workers need.
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type ConsumerGroup struct {
	r          *kafka.Reader
	commits    committer
	cfg        ConsumerConfig
	prodForDLQ *Producer
	logger     *zap.Logger
}

var (
	ErrSkipCommit             = errors.New("skip commit")
	ErrConsumerNotInitialized = errors.New("consumer not initialized")
)

func NewConsumerGroup(cfg ConsumerConfig, logger *zap.Logger) (*ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer: brokers, topic and group are required")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     100 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})

	var prod *Producer
	if cfg.DLQTopic != "" {
		prod = NewProducer(ProducerConfig{Brokers: cfg.Brokers, RequiredAcks: kafka.RequireAll})
	}

	return &ConsumerGroup{r: rd, commits: rd, cfg: cfg, prodForDLQ: prod, logger: logger}, nil
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil {
		return nil
	}
	if cg.prodForDLQ != nil {
		_ = cg.prodForDLQ.Close(context.Background())
	}
	if cg.r != nil {
		return cg.r.Close()
	}
	return nil
}

// Run fetches until ctx is done. Messages of partition p always go to worker
// p % WorkerCount.
func (cg *ConsumerGroup) Run(ctx context.Context, handler Handler) error {
	if cg == nil || cg.r == nil {
		return ErrConsumerNotInitialized
	}

	queues := make([]chan kafka.Message, cg.cfg.WorkerCount)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, cg.cfg.QueueSize)
		wg.Add(1)
		go func(q <-chan kafka.Message) {
			defer wg.Done()
			cg.work(ctx, handler, q)
		}(queues[i])
	}

	err := cg.fetchLoop(ctx, queues)
	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	return err
}

func (cg *ConsumerGroup) fetchLoop(ctx context.Context, queues []chan kafka.Message) error {
	for {
		m, err := cg.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cg.logger.Error("kafka fetch failed", zap.String("topic", cg.cfg.Topic), zap.Error(err))
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		select {
		case queues[workerFor(m.Partition, len(queues))] <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func workerFor(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

// work handles q until it is closed. Once ctx is done the remaining queued
// messages are left uncommitted for the next owner of the partition.
func (cg *ConsumerGroup) work(ctx context.Context, handler Handler, q <-chan kafka.Message) {
	for m := range q {
		if ctx.Err() != nil {
			continue
		}
		cg.process(ctx, handler, m)
	}
}

// process runs handler until it succeeds or retries run out. A handler that
// has started is not interrupted by ctx, so its side effects and the commit
// land together; ctx only cuts the retry backoff short.
func (cg *ConsumerGroup) process(ctx context.Context, handler Handler, m kafka.Message) {
	wrapped := wrapMessage(m)
	hctx := context.WithoutCancel(ctx)
	var attempt int
	for {
		err := handler(hctx, wrapped)
		if err == nil {
			cg.commit(ctx, m)
			return
		}
		if errors.Is(err, ErrSkipCommit) {
			return
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		if attempt > cg.cfg.MaxRetries {
			cg.logger.Error("message failed, giving up",
				zap.String("topic", m.Topic), zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset), zap.Error(err))
			if cg.prodForDLQ != nil {
				if err := cg.prodForDLQ.Publish(hctx, cg.cfg.DLQTopic, m.Key, m.Value, headersToMap(m.Headers)); err != nil {
					cg.logger.Error("dlq publish failed", zap.Error(err))
				}
			}
			cg.commit(ctx, m)
			return
		}

		select {
		case <-time.After(backoffDuration(cg.cfg.BackoffMin, cg.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return
		}
	}
}

const commitTimeout = 5 * time.Second

// commit is detached from ctx: a message that was handled must be committed
// even when shutdown started meanwhile, or it is redelivered and applied twice.
func (cg *ConsumerGroup) commit(ctx context.Context, m kafka.Message) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := cg.commits.CommitMessages(cctx, m); err != nil {
		cg.logger.Warn("kafka commit failed", zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

func wrapMessage(m kafka.Message) Message {
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   headersToMap(m.Headers),
		Raw:       m,
	}
}

func headersToMap(hs []kafka.Header) map[string]string {
	out := map[string]string{}
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}

func backoffDuration(min, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	pow := math.Pow(2, float64(attempt-1))
	d := time.Duration(float64(min) * pow)
	if d > max {
		d = max
	}
	if d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}
