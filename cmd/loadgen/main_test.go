package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/joripage/matching-engine/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorProducesDecodableCommands(t *testing.T) {
	g := &generator{
		rnd:     rand.New(rand.NewSource(1)),
		symbols: []string{"ACB", "VNM"},
		clients: []string{"c1"},
		now:     func() time.Time { return time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) },
	}

	seen := map[event.MessageType]int{}
	for i := 0; i < 500; i++ {
		cmd := g.next()
		data, err := event.EncodeCommand(cmd)
		require.NoError(t, err)

		decoded, err := event.DecodeCommand(data)
		require.NoError(t, err)
		assert.Equal(t, cmd.Type(), decoded.Type())
		assert.Contains(t, []string{"ACB", "VNM"}, event.PartitionKey(decoded))
		seen[cmd.Type()]++
	}

	assert.Positive(t, seen[event.MessageTypeNewOrder])
	assert.Positive(t, seen[event.MessageTypeCancelOrder])
	assert.Positive(t, seen[event.MessageTypeReplaceOrder])
}
