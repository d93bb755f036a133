package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"example.com/stravasync/internal/logging"
	"example.com/stravasync/internal/observability"
)

// QueuePolicy decides what Submit does when the queue is full.
type QueuePolicy string

const (
	// PolicyBlock makes Submit wait for room, bounded by the caller's context.
	PolicyBlock QueuePolicy = "block"
	// PolicyDropOldest evicts the oldest queued task to make room. Evicted webhook
	// tasks are recovered by the Sweeper because their event rows remain.
	PolicyDropOldest QueuePolicy = "drop_oldest"
)

// ParseQueuePolicy validates a configured policy name.
func ParseQueuePolicy(s string) (QueuePolicy, error) {
	switch QueuePolicy(s) {
	case PolicyBlock, PolicyDropOldest:
		return QueuePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown queue policy %q", s)
	}
}

// TaskRunner executes a task.
type TaskRunner interface {
	Run(ctx context.Context, task Task) error
}

// PoolOption configures optional behaviour for the Pool.
type PoolOption func(*Pool)

// WithPoolLogger overrides the logger.
func WithPoolLogger(logger *zap.Logger) PoolOption {
	return func(p *Pool) { p.logger = logging.OrNop(logger) }
}

// Pool runs tasks on a fixed set of workers fed by a bounded queue.
type Pool struct {
	runner  TaskRunner
	workers int
	policy  QueuePolicy
	queue   chan Task
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[int64]int // webhook event id -> queued or running tasks
}

// NewPool constructs a Pool. Call Start before submitting.
func NewPool(runner TaskRunner, workers, queueSize int, policy QueuePolicy, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	p := &Pool{
		runner:  runner,
		workers: workers,
		policy:  policy,
		queue:   make(chan Task, queueSize),
		pending: make(map[int64]int),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Tasks run with ctx; cancelling it aborts in-flight work.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for task := range p.queue {
		observability.SetQueueDepth(len(p.queue))
		if err := p.runner.Run(ctx, task); err != nil {
			p.logger.Warn("task failed",
				zap.String("task_id", task.ID.String()), zap.String("kind", string(task.Kind)),
				zap.Int64("athlete_id", task.AthleteID), zap.Error(err))
		}
		p.untrack(task)
	}
}

// Submit enqueues a task according to the pool's queue policy.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.track(task)
	if p.policy == PolicyBlock {
		select {
		case p.queue <- task:
			observability.SetQueueDepth(len(p.queue))
			return nil
		case <-ctx.Done():
			p.untrack(task)
			return ctx.Err()
		}
	}

	for {
		select {
		case p.queue <- task:
			observability.SetQueueDepth(len(p.queue))
			return nil
		default:
		}
		select {
		case evicted := <-p.queue:
			p.untrack(evicted)
			observability.RecordDropped(string(evicted.Kind))
			p.logger.Warn("queue full, dropped oldest task",
				zap.String("task_id", evicted.ID.String()), zap.String("kind", string(evicted.Kind)),
				zap.Int64("athlete_id", evicted.AthleteID))
		default:
		}
	}
}

// TrySubmit enqueues a task only if the queue has room. It never blocks and never
// evicts, whatever the policy.
func (p *Pool) TrySubmit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.track(task)
	select {
	case p.queue <- task:
		observability.SetQueueDepth(len(p.queue))
		return nil
	default:
		p.untrack(task)
		return ErrQueueFull
	}
}

// Pending reports whether a task for the webhook event is queued or running.
func (p *Pool) Pending(eventID int64) bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return p.pending[eventID] > 0
}

func (p *Pool) track(task Task) {
	if task.Event == nil {
		return
	}
	p.pendingMu.Lock()
	p.pending[task.Event.ID]++
	p.pendingMu.Unlock()
}

func (p *Pool) untrack(task Task) {
	if task.Event == nil {
		return
	}
	p.pendingMu.Lock()
	p.pending[task.Event.ID]--
	if p.pending[task.Event.ID] <= 0 {
		delete(p.pending, task.Event.ID)
	}
	p.pendingMu.Unlock()
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
