package nats_wrapper

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestWithDefaults(t *testing.T) {
	cfg := NatsConfig{}.withDefaults()
	assert.Equal(t, nats.DefaultURL, cfg.URL)
	assert.Equal(t, "ENGINE", cfg.Stream)
	assert.Equal(t, []string{"engine.db.>"}, cfg.Subjects)
	assert.Equal(t, 100, cfg.FetchBatch)
	assert.Equal(t, time.Second, cfg.FetchWait)

	cfg = NatsConfig{Stream: "X", FetchBatch: 5}.withDefaults()
	assert.Equal(t, "X", cfg.Stream)
	assert.Equal(t, 5, cfg.FetchBatch)
}

func TestWrapMessage(t *testing.T) {
	m := nats.NewMsg("engine.db.orders")
	m.Data = []byte(`{}`)
	m.Header.Set(KeyHeader, "O-1")

	msg := wrapMessage(m)
	assert.Equal(t, "engine.db.orders", msg.Subject)
	assert.Equal(t, "O-1", msg.Key)
	assert.Equal(t, []byte(`{}`), msg.Data)

	bare := &nats.Msg{Subject: "s"}
	assert.Empty(t, wrapMessage(bare).Key)
}

func TestDurableName(t *testing.T) {
	assert.Equal(t, "engine-dbwriter-engine-db-orders", DurableName("engine-dbwriter", "engine.db.orders"))
}
