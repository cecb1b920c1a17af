package worker

import (
	"errors"
	"sync"
)

var (
	ErrPoolStarted    = errors.New("worker pool already started")
	ErrPoolNotStarted = errors.New("worker pool is not started")
)

// WorkerPool owns a fixed set of workers. The WaitGroup is
// automatically controlled by the WorkerPool, and is done once
// every worker has returned from Start.
type WorkerPool struct {
	sync.Mutex
	workers []Worker
	Wg      sync.WaitGroup
	started bool
	closed  bool
}

// NewWorkerPool creates a new WorkerPool struct
// and initialises the 'workers' slice.
func NewWorkerPool() *WorkerPool {
	return &WorkerPool{workers: make([]Worker, 0)}
}

// Start cycles through all the workers
// currently inside the WorkerPool and creates
// a goroutine for each. The 'Start' method of
// each worker is executed concurrently.
//
// Start does NOT block, however consumers
// can wait on the WaitGroup in the pool if they
// wish.
func (pool *WorkerPool) Start() error {
	pool.Lock()
	defer pool.Unlock()

	if pool.started {
		return ErrPoolStarted
	}

	pool.started = true
	for _, worker := range pool.workers {
		pool.Wg.Add(1)
		go func(wg *sync.WaitGroup, w Worker) {
			defer wg.Done()
			w.Start()
		}(&pool.Wg, worker)
	}

	return nil
}

// PushWorker inserts the workers provided in to the worker pool. Workers
// cannot be added once the pool has started.
func (pool *WorkerPool) PushWorker(workers ...Worker) error {
	pool.Lock()
	defer pool.Unlock()

	if pool.started {
		return ErrPoolStarted
	}

	pool.workers = append(pool.workers, workers...)
	return nil
}

// Size returns the number of workers in the pool.
func (pool *WorkerPool) Size() int {
	pool.Lock()
	defer pool.Unlock()

	return len(pool.workers)
}

// WakeupWorkers sends on the WakeupChannel of each worker in the pool.
// Waking a closed pool is a no-op.
func (pool *WorkerPool) WakeupWorkers() error {
	pool.Lock()
	defer pool.Unlock()

	if !pool.started {
		return ErrPoolNotStarted
	}
	if pool.closed {
		return nil
	}

	// Every worker is signalled, not just those currently sleeping, as a
	// worker may be between a failed claim and its call to Sleep. The channel
	// holds one pending wakeup so the signal is never lost.
	for _, w := range pool.workers {
		select {
		case w.WakeupChan() <- 1:
		default:
		}
	}

	return nil
}

// Close will cycle through all the workers inside this
// worker pool and close their wakeup channels, before waiting
// for every worker to exit.
func (pool *WorkerPool) Close() {
	pool.Lock()
	if !pool.started || pool.closed {
		pool.Unlock()
		return
	}

	pool.closed = true
	for _, w := range pool.workers {
		w.Close()
	}
	pool.Unlock()

	pool.Wg.Wait()
}
