package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrQueueFull  = errors.New("worker queue is full")
	ErrPoolClosed = errors.New("worker pool is closed")
)

type Handler[T any] func(ctx context.Context, job T)

// Pool runs a fixed number of workers over a buffered queue. Submit never
// blocks: a full queue is reported to the caller instead.
type Pool[T any] struct {
	jobs       chan T
	handler    Handler[T]
	numWorkers int

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewPool[T any](numWorkers, queueSize int, handler Handler[T]) *Pool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool[T]{
		jobs:       make(chan T, queueSize),
		handler:    handler,
		numWorkers: numWorkers,
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go func(workerId int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					p.run(ctx, workerId, job)
				}
			}
		}(i)
	}
}

func (p *Pool[T]) run(ctx context.Context, workerId int, job T) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Int("worker_id", workerId).Interface("panic", r).Msg("worker recovered from panic")
		}
	}()
	p.handler(ctx, job)
}

func (p *Pool[T]) Submit(job T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs. Workers finish what is already queued and
// exit; Close does not wait for them.
func (p *Pool[T]) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
}

func (p *Pool[T]) Wait() {
	p.wg.Wait()
}

func (p *Pool[T]) Pending() int {
	return len(p.jobs)
}
