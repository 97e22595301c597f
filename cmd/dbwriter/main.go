package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/matching-engine/config"
	nats_wrapper "github.com/joripage/matching-engine/pkg/infra/nats"
	postgres_wrapper "github.com/joripage/matching-engine/pkg/infra/postgres"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/metrics"
	"github.com/joripage/matching-engine/pkg/persistence"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
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

	logger, err := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.ServiceName+"-dbwriter")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("dbwriter stopped", zap.Error(err))
	}
	logger.Info("exited cleanly")
}

func run(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) error {
	if cfg.OmsDB == nil {
		return fmt.Errorf("%w: oms_db is required", config.ErrInvalidConfig)
	}

	m := metrics.New()
	go m.Serve(ctx, cfg.MetricsAddr)

	db, err := postgres_wrapper.InitPostgresWithBackoff(ctx, cfg.OmsDB)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}

	topics := persistence.Topics{
		Orders:    cfg.Persistence.OrdersTopic,
		Trades:    cfg.Persistence.TradesTopic,
		OrderBook: cfg.Persistence.OrderBookTopic,
	}
	writer := persistence.NewWriter(persistence.NewSQLRepo(db), topics, m, logger.Named("writer"))

	logger.Info("dbwriter started", zap.String("transport", cfg.Persistence.Transport))

	if cfg.Persistence.Transport == config.TransportNats {
		nc, js, err := nats_wrapper.Connect(ctx, cfg.Nats)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Close()

		g, gctx := errgroup.WithContext(ctx)
		for _, subject := range topics.List() {
			subject := subject
			g.Go(func() error {
				natsCfg := cfg.Nats
				natsCfg.Durable = nats_wrapper.DurableName(natsCfg.Durable, subject)
				return nats_wrapper.Consume(gctx, js, natsCfg, subject, func(ctx context.Context, msg nats_wrapper.Message) error {
					return writer.Handle(ctx, msg.Subject, msg.Data)
				}, logger.Named("nats"))
			})
		}
		return g.Wait()
	}

	return persistence.RunKafka(ctx, persistence.KafkaSourceConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Persistence.GroupID,
		Topics:     topics.List(),
		MaxRetries: uint64(max(cfg.Kafka.MaxRetries, 1)),
	}, writer, logger.Named("kafka"))
}
