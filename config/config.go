package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joripage/matching-engine/pkg/dedup"
	nats_wrapper "github.com/joripage/matching-engine/pkg/infra/nats"
	postgres_wrapper "github.com/joripage/matching-engine/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/matching-engine/pkg/infra/redis"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	TransportKafka = "kafka"
	TransportNats  = "nats"
)

var ErrInvalidConfig = errors.New("invalid config")

type AppConfig struct {
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`

	Kafka       KafkaConfig       `yaml:"kafka"`
	Engine      EngineConfig      `yaml:"engine"`
	Dedup       dedup.Config      `yaml:"dedup"`
	Persistence PersistenceConfig `yaml:"persistence"`

	Nats  nats_wrapper.NatsConfig          `yaml:"nats"`
	Redis *redis_wrapper.RedisConfig       `yaml:"redis"`
	OmsDB *postgres_wrapper.PostgresConfig `yaml:"oms_db"`
}

type KafkaConfig struct {
	Brokers    []string      `yaml:"brokers"`
	GroupID    string        `yaml:"group_id"`
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	MaxRetries int           `yaml:"max_retries"`
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
	DLQTopic   string        `yaml:"dlq_topic"`

	CommandTopic    string `yaml:"command_topic"`
	ExecutionTopic  string `yaml:"execution_topic"`
	MarketDataTopic string `yaml:"market_data_topic"`
}

type EngineConfig struct {
	InstrumentsFile  string        `yaml:"instruments_file"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
	Location         string        `yaml:"location"`
	BookStateDepth   int           `yaml:"book_state_depth"`
	PriceBandPercent float64       `yaml:"price_band_percent"`

	PublisherQueueSize int           `yaml:"publisher_queue_size"`
	PublisherWorkers   int           `yaml:"publisher_workers"`
	PublishTimeout     time.Duration `yaml:"publish_timeout"`
}

type PersistenceConfig struct {
	// Transport is kafka or nats.
	Transport      string `yaml:"transport"`
	OrdersTopic    string `yaml:"orders_topic"`
	TradesTopic    string `yaml:"trades_topic"`
	OrderBookTopic string `yaml:"orderbook_topic"`
	GroupID        string `yaml:"group_id"`
}

func (c *AppConfig) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "matching-engine"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	k := &c.Kafka
	if k.GroupID == "" {
		k.GroupID = "matching-engine"
	}
	if k.Workers <= 0 {
		k.Workers = 8
	}
	if k.CommandTopic == "" {
		k.CommandTopic = "inbound-orders"
	}
	if k.ExecutionTopic == "" {
		k.ExecutionTopic = "outbound-executions"
	}
	if k.MarketDataTopic == "" {
		k.MarketDataTopic = "market-data"
	}

	e := &c.Engine
	if e.Location == "" {
		e.Location = "UTC"
	}
	if e.BookStateDepth <= 0 {
		e.BookStateDepth = 3
	}
	if e.RefreshInterval <= 0 {
		e.RefreshInterval = time.Minute
	}
	if e.PublisherQueueSize <= 0 {
		e.PublisherQueueSize = 500
	}
	if e.PublisherWorkers <= 0 {
		e.PublisherWorkers = 2
	}
	if e.PublishTimeout <= 0 {
		e.PublishTimeout = 5 * time.Second
	}

	if c.Dedup.Backend == "" {
		c.Dedup.Backend = dedup.BackendMemory
	}

	p := &c.Persistence
	if p.Transport == "" {
		p.Transport = TransportKafka
	}
	if p.OrdersTopic == "" {
		p.OrdersTopic = "engine.db.orders"
	}
	if p.TradesTopic == "" {
		p.TradesTopic = "engine.db.trades"
	}
	if p.OrderBookTopic == "" {
		p.OrderBookTopic = "engine.db.orderbook"
	}
	if p.GroupID == "" {
		p.GroupID = "engine-dbwriter"
	}
	if c.Nats.Durable == "" {
		c.Nats.Durable = p.GroupID
	}
}

// Validate checks the settings every binary relies on.
func (c *AppConfig) Validate() error {
	switch c.Persistence.Transport {
	case TransportKafka, TransportNats:
	default:
		return fmt.Errorf("%w: persistence transport %q", ErrInvalidConfig, c.Persistence.Transport)
	}
	switch c.Dedup.Backend {
	case dedup.BackendMemory:
	case dedup.BackendRedis:
		if c.Redis == nil || c.Redis.ConnectionURL == "" {
			return fmt.Errorf("%w: redis dedup backend needs redis.connection_url", ErrInvalidConfig)
		}
	case dedup.BackendPebble:
		if c.Dedup.PebbleDir == "" {
			return fmt.Errorf("%w: pebble dedup backend needs dedup.pebble_dir", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, dedup.ErrUnknownBackend, c.Dedup.Backend)
	}
	if c.Engine.PriceBandPercent < 0 {
		return fmt.Errorf("%w: negative price band", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Engine.Location); err != nil {
		return fmt.Errorf("%w: location %q: %v", ErrInvalidConfig, c.Engine.Location, err)
	}
	return nil
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		sugar.Error("Invalid config")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}
