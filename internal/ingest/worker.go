package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/pkg/logger"
	"github.com/hbomb79/mediatab/pkg/worker"
)

var log = logger.Get("Ingest")

var ErrRunCancelled = errors.New("run cancelled before item was inspected")

type (
	// Result is the outcome for a single batch item. Exactly one of
	// Row and Skip is set.
	Result struct {
		ItemPath string
		Row      media.Row
		Skip     *SkipRecord
	}

	// Runner distributes the items of a batch across a fixed size pool of
	// workers, each of which runs the Inspector for the items it claims.
	Runner struct {
		inspector   media.Inspector
		concurrency int
	}
)

// NewRunner creates a Runner which uses the inspector provided. A concurrency
// below one defaults to the number of usable CPUs.
func NewRunner(inspector media.Inspector, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &Runner{inspector: inspector, concurrency: concurrency}
}

func (runner *Runner) Concurrency() int { return runner.concurrency }

// Run starts processing the batch provided, returning a channel on which a
// Result is delivered for every item in the batch. The channel has a capacity
// equal to the concurrency of the runner, so workers block once that many
// results are waiting to be consumed; callers must drain the channel until it
// is closed.
//
// The channel is closed once the batch is done (sealed, and every item is terminal)
// or the context is cancelled. On cancellation, in-flight inspections are abandoned
// via their context and any items not yet dispatched are delivered as CANCELLED skips.
func (runner *Runner) Run(ctx context.Context, batch *Batch) <-chan Result {
	results := make(chan Result, runner.concurrency)
	pool := worker.NewWorkerPool()
	for i := 0; i < runner.concurrency; i++ {
		label := fmt.Sprintf("inspect-worker-%d", i)
		pool.PushWorker(worker.NewWorker(label, runner.inspectTask(ctx, batch, results)))
	}

	if err := pool.Start(); err != nil {
		log.Emit(logger.ERROR, "Failed to start worker pool for batch %s: %v\n", batch.ID(), err)
	}

	batch.setWakeup(func() {
		if err := pool.WakeupWorkers(); err != nil {
			log.Emit(logger.WARNING, "Failed to wake workers for batch %s: %v\n", batch.ID(), err)
		}
	})

	log.Emit(logger.NEW, "Batch %s started with %d workers\n", batch.ID(), runner.concurrency)
	go func() {
		defer close(results)

		select {
		case <-batch.Done():
		case <-ctx.Done():
		}

		batch.setWakeup(nil)
		pool.Close()

		if ctx.Err() != nil {
			cause := fmt.Errorf("%w: %w", ErrRunCancelled, context.Cause(ctx))
			for _, item := range batch.cancelRemaining(cause) {
				results <- Result{ItemPath: item.Path, Skip: &SkipRecord{Path: item.Path, Trouble: item.Trouble}}
			}

			log.Emit(logger.STOP, "Batch %s cancelled (%d/%d items completed)\n", batch.ID(), batch.Completed(), batch.Total())
			return
		}

		log.Emit(logger.SUCCESS, "Batch %s complete (%d items)\n", batch.ID(), batch.Total())
	}()

	return results
}

// inspectTask is the worker function for the Runner, which is called
// by the runners WorkerPool.
// This function will claim the first IDLE item it finds and attempt to inspect it.
// If the inspection fails then the item is SKIPPED with an INSPECT_FAILURE trouble,
// or a CANCELLED trouble if the failure was caused by cancellation of the run.
func (runner *Runner) inspectTask(ctx context.Context, batch *Batch, results chan<- Result) worker.WorkerTask {
	return func(w worker.Worker) (bool, error) {
		if ctx.Err() != nil {
			return false, nil
		}

		item := batch.claimIdleItem()
		if item == nil {
			return false, nil
		}

		// Items released from import hold after their source vanished carry
		// their trouble already.
		if trouble := item.Trouble; trouble != nil {
			batch.skip(item, trouble)
			log.Emit(logger.WARNING, "Skipping %s (%s): %v\n", item.Path, trouble.Type(), trouble)
			results <- Result{ItemPath: item.Path, Skip: &SkipRecord{Path: item.Path, Trouble: trouble}}
			return true, nil
		}

		log.Emit(logger.DEBUG, "%s inspecting %s\n", w.Label(), item.Path)
		row, err := runner.inspector.Inspect(ctx, item.Path)
		if err == nil && row == nil {
			err = &media.InspectError{Path: item.Path, Err: errors.New("inspector returned no error, but nil row received")}
		}

		if err != nil {
			tType := INSPECT_FAILURE
			if ctx.Err() != nil {
				tType = CANCELLED
			}

			trouble := NewTrouble(tType, err)
			batch.skip(item, trouble)
			log.Emit(logger.WARNING, "Skipping %s (%s): %v\n", item.Path, tType, err)

			results <- Result{ItemPath: item.Path, Skip: &SkipRecord{Path: item.Path, Trouble: trouble}}
			return true, nil
		}

		batch.complete(item)
		results <- Result{ItemPath: item.Path, Row: row}
		return true, nil
	}
}
