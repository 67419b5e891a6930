package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type job struct {
	name string
	run  Task
}

// WorkerPool runs tasks after the request that produced them has returned.
type WorkerPool struct {
	jobs      chan job
	timeout   time.Duration
	wg        sync.WaitGroup
	mu        sync.RWMutex // guards sends against close
	isClosing atomic.Bool
}

func NewWorkerPool(size, queueSize int, timeout time.Duration) *WorkerPool {
	wp := &WorkerPool{
		jobs:    make(chan job, queueSize),
		timeout: timeout,
	}

	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for j := range wp.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), wp.timeout)
		if err := j.run(ctx); err != nil {
			log.Error().Err(err).Str("task", j.name).Msg("worker task failed")
		}
		cancel()
	}
}

// Submit queues a task, waiting for a free slot when the queue is full.
// Tasks submitted while the pool is shutting down are dropped.
func (wp *WorkerPool) Submit(name string, t Task) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.isClosing.Load() {
		log.Warn().Str("task", name).Msg("task submitted during shutdown, dropping")
		return
	}

	j := job{name: name, run: t}
	select {
	case wp.jobs <- j:
		return
	default:
	}
	log.Debug().Str("task", name).Msg("task queue full, waiting for a worker")
	wp.jobs <- j
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.isClosing.Swap(true) {
		wp.mu.Unlock()
		return
	}
	close(wp.jobs)
	wp.mu.Unlock()
	wp.wg.Wait()
}
