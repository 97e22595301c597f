package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joripage/matching-engine/pkg/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TEST_KAFKA_BROKER", "kafka-1:9092")

	cfg, err := Load("testdata/engine.yaml")
	require.NoError(t, err)

	assert.Equal(t, "engine-test", cfg.ServiceName)
	assert.Equal(t, []string{"kafka-1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Kafka.Workers)
	assert.Equal(t, 50*time.Millisecond, cfg.Kafka.BackoffMin)
	assert.Equal(t, "inbound-orders", cfg.Kafka.CommandTopic)
	assert.Equal(t, "outbound-executions", cfg.Kafka.ExecutionTopic)

	assert.Equal(t, 30*time.Second, cfg.Engine.RefreshInterval)
	assert.Equal(t, 10.0, cfg.Engine.PriceBandPercent)
	assert.Equal(t, 3, cfg.Engine.BookStateDepth)
	assert.Equal(t, 500, cfg.Engine.PublisherQueueSize)

	assert.Equal(t, dedup.BackendPebble, cfg.Dedup.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Dedup.TTL)

	assert.Equal(t, TransportNats, cfg.Persistence.Transport)
	assert.Equal(t, "engine.db.trades", cfg.Persistence.TradesTopic)
	assert.Equal(t, "engine-dbwriter", cfg.Nats.Durable)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_name: from-env\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ServiceName)
	assert.Equal(t, TransportKafka, cfg.Persistence.Transport)
	assert.Equal(t, dedup.BackendMemory, cfg.Dedup.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *AppConfig){
		"transport":        func(c *AppConfig) { c.Persistence.Transport = "carrier-pigeon" },
		"backend":          func(c *AppConfig) { c.Dedup.Backend = "etcd" },
		"redis url":        func(c *AppConfig) { c.Dedup.Backend = dedup.BackendRedis },
		"pebble dir":       func(c *AppConfig) { c.Dedup.Backend = dedup.BackendPebble },
		"negative band":    func(c *AppConfig) { c.Engine.PriceBandPercent = -1 },
		"unknown location": func(c *AppConfig) { c.Engine.Location = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &AppConfig{}
			cfg.setDefaults()
			require.NoError(t, cfg.Validate())
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
