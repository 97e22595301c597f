package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joripage/matching-engine/config"
	"github.com/joripage/matching-engine/pkg/dedup"
	"github.com/joripage/matching-engine/pkg/engine"
	"github.com/joripage/matching-engine/pkg/engine/riskrule"
	nats_wrapper "github.com/joripage/matching-engine/pkg/infra/nats"
	redis_wrapper "github.com/joripage/matching-engine/pkg/infra/redis"
	"github.com/joripage/matching-engine/pkg/instrument"
	kafkawrapper "github.com/joripage/matching-engine/pkg/kafka_wrapper"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/metrics"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/joripage/matching-engine/pkg/publisher"
	kafka "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("engine stopped", zap.Error(err))
	}
	logger.Info("exited cleanly")
}

func run(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) error {
	m := metrics.New()
	go m.Serve(ctx, cfg.MetricsAddr)

	loc, err := time.LoadLocation(cfg.Engine.Location)
	if err != nil {
		return err
	}
	defs, err := instrument.LoadFile(cfg.Engine.InstrumentsFile)
	if err != nil {
		return err
	}
	instruments, err := instrument.NewStore(loc, defs)
	if err != nil {
		return err
	}
	go instruments.Watch(ctx, cfg.Engine.InstrumentsFile, cfg.Engine.RefreshInterval, logger.Named("instruments"))
	logger.Info("instruments loaded", zap.Int("count", len(defs)))

	producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: kafka.RequireOne,
	})
	defer producer.Close(context.Background()) // nolint

	var recordTransport publisher.Transport = producer
	if cfg.Persistence.Transport == config.TransportNats {
		nc, js, err := nats_wrapper.Connect(ctx, cfg.Nats)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()
		recordTransport = nats_wrapper.NewPublisher(js)
	}

	poolCfg := publisher.PoolConfig{
		QueueSize:   cfg.Engine.PublisherQueueSize,
		Workers:     cfg.Engine.PublisherWorkers,
		TaskTimeout: cfg.Engine.PublishTimeout,
	}
	execPool := publisher.NewPool("executions", poolCfg, m, logger)
	recordPool := publisher.NewPool("records", poolCfg, m, logger)
	defer recordPool.Stop()
	defer execPool.Stop()

	executions := publisher.NewExecutionPublisher(execPool, producer, cfg.Kafka.ExecutionTopic)
	records := publisher.NewRecordPublisher(recordPool, recordTransport, publisher.RecordTopics{
		Orders:    cfg.Persistence.OrdersTopic,
		Trades:    cfg.Persistence.TradesTopic,
		OrderBook: cfg.Persistence.OrderBookTopic,
	})

	processor := engine.NewProcessor(
		orderbook.NewBookManager(),
		instruments,
		executions,
		records,
		logger.Named("processor"),
		engine.WithMetrics(m),
		engine.WithBookStateDepth(cfg.Engine.BookStateDepth),
		engine.WithRiskRules(
			riskrule.TickSizeRule{},
			riskrule.PriceBandRule{Percent: decimal.NewFromFloat(cfg.Engine.PriceBandPercent)},
		),
	)

	seen, err := openDedup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open dedup store: %w", err)
	}
	defer seen.Close() // nolint

	commands, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		Topic:       cfg.Kafka.CommandTopic,
		WorkerCount: cfg.Kafka.Workers,
		MaxRetries:  cfg.Kafka.MaxRetries,
		BackoffMin:  cfg.Kafka.BackoffMin,
		BackoffMax:  cfg.Kafka.BackoffMax,
		DLQTopic:    cfg.Kafka.DLQTopic,
		QueueSize:   cfg.Kafka.QueueSize,
	}, logger.Named("commands"))
	if err != nil {
		return err
	}
	defer commands.Close() // nolint

	marketData, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID + "-market-data",
		Topic:       cfg.Kafka.MarketDataTopic,
		WorkerCount: 1,
	}, logger.Named("market-data"))
	if err != nil {
		return err
	}
	defer marketData.Close() // nolint

	cmdConsumer := engine.NewCommandConsumer(processor, seen, m, logger.Named("commands"))
	mdConsumer := engine.NewMarketDataConsumer(instruments, logger.Named("market-data"))

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := commands.Run(ctx, cmdConsumer.HandleMessage); err != nil {
			errCh <- fmt.Errorf("command consumer: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := marketData.Run(ctx, mdConsumer.HandleMessage); err != nil {
			errCh <- fmt.Errorf("market data consumer: %w", err)
		}
	}()

	logger.Info("matching engine started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("commandTopic", cfg.Kafka.CommandTopic),
		zap.String("persistence", cfg.Persistence.Transport),
		zap.String("dedup", cfg.Dedup.Backend),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

func openDedup(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (dedup.Store, error) {
	switch cfg.Dedup.Backend {
	case dedup.BackendRedis:
		client, err := redis_wrapper.InitRedisWithBackoff(ctx, cfg.Redis, time.Minute)
		if err != nil {
			return nil, err
		}
		return dedup.NewRedisStore(client, cfg.Dedup), nil
	case dedup.BackendPebble:
		store, err := dedup.OpenPebbleStore(cfg.Dedup)
		if err != nil {
			return nil, err
		}
		go store.RunPruner(ctx, time.Hour, func(err error) {
			logger.Warn("prune dedup store", zap.Error(err))
		})
		return store, nil
	case dedup.BackendMemory:
		return dedup.NewMemoryStore(cfg.Dedup), nil
	}
	return nil, fmt.Errorf("%w: %s", dedup.ErrUnknownBackend, cfg.Dedup.Backend)
}
