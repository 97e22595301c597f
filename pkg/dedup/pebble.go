package dedup

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

const pebblePrefix = "dedup/"

// PebbleStore keeps processed ids on local disk. Each value is the expiry
// time in unix nanoseconds; Prune deletes expired keys.
type PebbleStore struct {
	db  *pebble.DB
	ttl time.Duration
	now func() time.Time
}

func OpenPebbleStore(cfg Config) (*PebbleStore, error) {
	cfg = cfg.withDefaults()
	db, err := pebble.Open(cfg.PebbleDir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db, ttl: cfg.TTL, now: time.Now}, nil
}

func pebbleKey(messageID string) []byte {
	return []byte(pebblePrefix + messageID)
}

func (s *PebbleStore) Seen(_ context.Context, messageID string) (bool, error) {
	val, closer, err := s.db.Get(pebbleKey(messageID))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if len(val) != 8 {
		return true, nil
	}
	expiry := int64(binary.BigEndian.Uint64(val))
	return s.now().UnixNano() < expiry, nil
}

func (s *PebbleStore) Mark(_ context.Context, messageID string) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(s.now().Add(s.ttl).UnixNano()))
	return s.db.Set(pebbleKey(messageID), buf, pebble.Sync)
}

// Prune deletes expired ids and returns how many were removed.
func (s *PebbleStore) Prune() (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(pebblePrefix),
		UpperBound: []byte(pebblePrefix + "\xff"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	now := s.now().UnixNano()
	batch := s.db.NewBatch()
	defer batch.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 8 && int64(binary.BigEndian.Uint64(val)) > now {
			continue
		}
		if err := batch.Delete(append([]byte(nil), iter.Key()...), nil); err != nil {
			return 0, err
		}
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n, batch.Commit(pebble.Sync)
}

// RunPruner calls Prune every interval until ctx is done.
func (s *PebbleStore) RunPruner(ctx context.Context, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
