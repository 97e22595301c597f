// Package dedup remembers the message ids of processed commands so a
// redelivered command is not matched twice.
package dedup

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownBackend = errors.New("unknown dedup backend")

// Store is a window of recently processed message ids. Entries older than
// the store's TTL may be forgotten.
type Store interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Mark(ctx context.Context, messageID string) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendPebble = "pebble"
)

type Config struct {
	Backend   string        `yaml:"backend"`
	Size      int           `yaml:"size"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
	PebbleDir string        `yaml:"pebble_dir"`
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 1_000_000
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "engine:dedup:"
	}
	return c
}
