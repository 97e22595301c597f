package dedup

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps the last Size ids for TTL in process memory. It does not
// survive a restart.
type MemoryStore struct {
	cache *expirable.LRU[string, struct{}]
}

func NewMemoryStore(cfg Config) *MemoryStore {
	cfg = cfg.withDefaults()
	return &MemoryStore{cache: expirable.NewLRU[string, struct{}](cfg.Size, nil, cfg.TTL)}
}

func (s *MemoryStore) Seen(_ context.Context, messageID string) (bool, error) {
	return s.cache.Contains(messageID), nil
}

func (s *MemoryStore) Mark(_ context.Context, messageID string) error {
	s.cache.Add(messageID, struct{}{})
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
