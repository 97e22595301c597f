package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/IBM/sarama"
)

var errDBDown = errors.New("db down")

type fakeRepo struct {
	mu     sync.Mutex
	fail   bool
	orders map[string]*Order
	trades map[string]*Trade
	states []*BookState
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders: make(map[string]*Order),
		trades: make(map[string]*Trade),
	}
}

func (r *fakeRepo) SaveOrder(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errDBDown
	}
	if cur, ok := r.orders[o.OrderID]; ok && cur.UpdatedAt.After(o.UpdatedAt) {
		return nil
	}
	r.orders[o.OrderID] = o
	return nil
}

func (r *fakeRepo) SaveTrade(_ context.Context, t *Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errDBDown
	}
	if _, ok := r.trades[t.TradeID]; !ok {
		r.trades[t.TradeID] = t
	}
	return nil
}

func (r *fakeRepo) SaveBookState(_ context.Context, s *BookState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errDBDown
	}
	r.states = append(r.states, s)
	return nil
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context {
	return s.ctx
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.msgs
}

func newFakeClaim(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{msgs: ch}
}
