package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(Config{Size: 2, TTL: time.Hour})
	defer s.Close()

	seen, err := s.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Mark(ctx, "a"))
	seen, _ = s.Seen(ctx, "a")
	assert.True(t, seen)

	// size 2: marking two more evicts "a"
	require.NoError(t, s.Mark(ctx, "b"))
	require.NoError(t, s.Mark(ctx, "c"))
	seen, _ = s.Seen(ctx, "a")
	assert.False(t, seen)
}

func TestPebbleStore(t *testing.T) {
	s, err := OpenPebbleStore(Config{PebbleDir: t.TempDir(), TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Mark(ctx, "m-1"))
	seen, err := s.Seen(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.Seen(ctx, "m-2")
	require.NoError(t, err)
	assert.False(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = s.Seen(ctx, "m-1")
	assert.False(t, seen, "expired id is forgotten")

	require.NoError(t, s.Mark(ctx, "m-3"))
	n, err := s.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	seen, _ = s.Seen(ctx, "m-3")
	assert.True(t, seen)
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, 24*time.Hour, c.TTL)
	assert.Equal(t, "engine:dedup:", c.KeyPrefix)
	assert.Positive(t, c.Size)
}
