package job

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hbomb79/mediatab/internal/event"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/probe"
	"github.com/hbomb79/mediatab/internal/sink"
	"github.com/hbomb79/mediatab/pkg/logger"
)

var log = logger.Get("Job")

// Executor runs jobs to completion. A single executor may run many
// jobs concurrently, each with it's own worker pool and sink.
type Executor struct {
	prober      probe.Prober
	concurrency int
	timeout     time.Duration
	mirror      *sink.Mirror
	eventBus    event.EventDispatcher
}

// NewExecutor creates an executor. The mirror and event bus are optional.
func NewExecutor(prober probe.Prober, concurrency int, timeout time.Duration, mirror *sink.Mirror, eventBus event.EventDispatcher) *Executor {
	return &Executor{
		prober:      prober,
		concurrency: concurrency,
		timeout:     timeout,
		mirror:      mirror,
		eventBus:    eventBus,
	}
}

// Execute runs the job provided, blocking until the jobs batch is done (or the
// context is cancelled) and the sink has been finalized. The returned error is
// non-nil only if the output could not be written; skipped files are not errors.
//
// For open batches the caller is responsible for sealing the batch, otherwise
// Execute will not return until the context is cancelled.
func (executor *Executor) Execute(ctx context.Context, job *Job) (sink.Summary, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	inspector := media.NewMetadataScraper(executor.prober, job.profile, executor.timeout)
	runner := ingest.NewRunner(inspector, executor.concurrency)

	results := sink.New(job.output, job.ID(), job.profile, executor.mirror)
	results.AddSkipped(job.collectorSkips...)

	reporter := ingest.NewLogReporter()
	if executor.eventBus != nil {
		reporter = ingest.MultiReporter(reporter, ingest.NewEventReporter(executor.eventBus))
	}

	job.setState(RUNNING)
	executor.dispatch(event.BATCH_NEW, job)
	log.Emit(logger.NEW, "Running %s with %d workers\n", job, runner.Concurrency())

	var errs *multierror.Error
	sinkErr := ingest.Drain(job.batch, runner.Run(runCtx, job.batch), results, reporter, cancel)
	if sinkErr != nil {
		errs = multierror.Append(errs, sinkErr)
	}

	summary, err := results.Finalize()
	if err != nil {
		errs = multierror.Append(errs, err)
	}

	state := COMPLETE
	switch {
	case errs.ErrorOrNil() != nil:
		state = FAILED
	case ctx.Err() != nil:
		state = CANCELLED
	}

	job.finish(state, summary, results.Skipped(), errs.ErrorOrNil())
	executor.dispatch(event.BATCH_COMPLETE, job)

	if state == FAILED {
		log.Emit(logger.ERROR, "%s failed: %v\n", job, errs.ErrorOrNil())
	} else {
		log.Emit(logger.SUCCESS, "%s finished: %s\n", job, summary)
	}

	return summary, errs.ErrorOrNil()
}

func (executor *Executor) dispatch(ev event.Event, job *Job) {
	if executor.eventBus != nil {
		executor.eventBus.Dispatch(ev, job.ID())
	}
}
