package ingest

import (
	"context"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/event"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/pkg/logger"
)

type (
	// Progress is reported after each result is consumed. Completed
	// never decreases within a run.
	Progress struct {
		BatchID   uuid.UUID
		Completed int
		Total     int
		Path      string
		Succeeded bool
	}

	ProgressReporter interface {
		ReportProgress(Progress)
	}

	// ResultHandler receives the results of a run. Only OnSuccess may
	// fail, and such a failure is fatal to the run.
	ResultHandler interface {
		OnSuccess(media.Row) error
		OnSkip(SkipRecord)
	}

	logReporter   struct{ logger logger.Logger }
	eventReporter struct{ eventBus event.EventDispatcher }

	multiReporter []ProgressReporter
)

// NewLogReporter returns a reporter which emits a log line for each result.
func NewLogReporter() ProgressReporter { return &logReporter{logger: logger.Get("Progress")} }

// NewEventReporter returns a reporter which dispatches a BATCH_PROGRESS event
// for each result.
func NewEventReporter(eventBus event.EventDispatcher) ProgressReporter {
	return &eventReporter{eventBus: eventBus}
}

// MultiReporter fans progress out to each of the reporters provided.
func MultiReporter(reporters ...ProgressReporter) ProgressReporter {
	return multiReporter(reporters)
}

func (r *logReporter) ReportProgress(p Progress) {
	if p.Succeeded {
		r.logger.Emit(logger.SUCCESS, "(%d/%d) %s\n", p.Completed, p.Total, p.Path)
	} else {
		r.logger.Emit(logger.WARNING, "(%d/%d) %s [skipped]\n", p.Completed, p.Total, p.Path)
	}
}

func (r *eventReporter) ReportProgress(p Progress) {
	r.eventBus.Dispatch(event.BATCH_PROGRESS, p.BatchID)
}

func (r multiReporter) ReportProgress(p Progress) {
	for _, reporter := range r {
		reporter.ReportProgress(p)
	}
}

// Drain is the single consumer for a run. It hands every result to the handler,
// reports progress after each, and returns once the results channel is closed.
//
// If the handler fails to persist a row, the run is cancelled with the error as the
// cause and the row is recorded as a SINK_FAILURE skip. Draining continues until the
// channel is closed so that no worker is left blocked; the first handler error
// is returned.
func Drain(batch *Batch, results <-chan Result, handler ResultHandler, reporter ProgressReporter, cancel context.CancelCauseFunc) error {
	var sinkErr error
	completed := 0
	for result := range results {
		completed++
		succeeded := false

		switch {
		case result.Skip != nil:
			handler.OnSkip(*result.Skip)
		case sinkErr != nil:
			handler.OnSkip(SkipRecord{Path: result.ItemPath, Trouble: NewTrouble(SINK_FAILURE, sinkErr)})
		default:
			if err := handler.OnSuccess(result.Row); err != nil {
				log.Emit(logger.ERROR, "Failed to persist row for %s, aborting run: %v\n", result.ItemPath, err)
				sinkErr = err
				if cancel != nil {
					cancel(err)
				}

				handler.OnSkip(SkipRecord{Path: result.ItemPath, Trouble: NewTrouble(SINK_FAILURE, err)})
			} else {
				succeeded = true
			}
		}

		if reporter != nil {
			reporter.ReportProgress(Progress{
				BatchID:   batch.ID(),
				Completed: completed,
				Total:     batch.Total(),
				Path:      result.ItemPath,
				Succeeded: succeeded,
			})
		}
	}

	return sinkErr
}
