package publisher

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/matching-engine/pkg/metrics"
	"go.uber.org/zap"
)

// Task is one unit of background I/O.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed set of goroutines, each behind its own bounded
// queue. Tasks with the same key always run on the same worker, in the order
// they were submitted. Submit never blocks: when the worker's queue is full
// the task is dropped and counted.
type Pool struct {
	name    string
	queues  []chan Task
	timeout time.Duration

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	dropped atomic.Uint64
	failed  atomic.Uint64

	metrics *metrics.Metrics
	logger  *zap.Logger
}

type PoolConfig struct {
	// QueueSize is the total capacity, split evenly between the workers.
	QueueSize   int
	Workers     int
	TaskTimeout time.Duration
}

func NewPool(name string, cfg PoolConfig, m *metrics.Metrics, logger *zap.Logger) *Pool {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Second
	}
	if m == nil {
		m = metrics.New()
	}

	perWorker := (cfg.QueueSize + cfg.Workers - 1) / cfg.Workers

	p := &Pool{
		name:    name,
		queues:  make([]chan Task, cfg.Workers),
		timeout: cfg.TaskTimeout,
		metrics: m,
		logger:  logger.With(zap.String("pool", name)),
	}
	for i := range p.queues {
		p.queues[i] = make(chan Task, perWorker)
		p.wg.Add(1)
		go p.work(p.queues[i])
	}
	return p
}

// workerFor maps key to a fixed worker index.
func workerFor(key string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(workers))
}

func (p *Pool) work(tasks <-chan Task) {
	defer p.wg.Done()
	for task := range tasks {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := task(ctx)
		cancel()
		if err != nil {
			p.failed.Add(1)
			p.metrics.PublishFailures.WithLabelValues(p.name).Inc()
			p.logger.Error("publish failed", zap.Error(err))
		}
	}
}

// Submit queues task on the worker owning key and reports whether it was
// accepted.
func (p *Pool) Submit(key string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		p.drop()
		return false
	}

	select {
	case p.queues[workerFor(key, len(p.queues))] <- task:
		return true
	default:
		p.drop()
		return false
	}
}

func (p *Pool) drop() {
	n := p.dropped.Add(1)
	p.metrics.EventsDropped.WithLabelValues(p.name).Inc()
	// one line per power of two keeps a full queue from flooding the log
	if n&(n-1) == 0 {
		p.logger.Warn("publish queue full, event dropped", zap.Uint64("dropped_total", n))
	}
}

func (p *Pool) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Pool) Failed() uint64 {
	return p.failed.Load()
}

// Stop refuses new tasks and waits for queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
