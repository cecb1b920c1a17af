// Package job ties a batch to the sink its results are written to, and
// tracks the lifecycle of that pairing so it can be inspected while running
// (e.g. by the HTTP API) and summarised once finished.
package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/sink"
)

type (
	JobState int

	// Job is a single run of the pipeline over a batch.
	Job struct {
		*sync.Mutex
		batch          *ingest.Batch
		profile        media.Profile
		output         sink.Config
		collectorSkips []ingest.SkipRecord
		state          JobState
		summary        *sink.Summary
		skipped        []ingest.SkipRecord
		err            error
		finishedAt     *time.Time
	}
)

const (
	PENDING JobState = iota
	RUNNING
	COMPLETE
	CANCELLED
	FAILED
)

// New creates a job for the batch provided. Skip records produced while collecting
// the batch paths are carried in to the jobs sink so they're reported alongside
// the skips produced by the run.
func New(batch *ingest.Batch, profile media.Profile, output sink.Config, collectorSkips []ingest.SkipRecord) *Job {
	return &Job{
		Mutex:          &sync.Mutex{},
		batch:          batch,
		profile:        profile,
		output:         output,
		collectorSkips: collectorSkips,
		state:          PENDING,
	}
}

func (job *Job) ID() uuid.UUID { return job.batch.ID() }

func (job *Job) Batch() *ingest.Batch { return job.batch }

func (job *Job) Profile() media.Profile { return job.profile }

func (job *Job) Output() sink.Config { return job.output }

func (job *Job) State() JobState {
	job.Lock()
	defer job.Unlock()

	return job.state
}

// Summary returns the summary of the run, or nil if the job is not yet finished.
func (job *Job) Summary() *sink.Summary {
	job.Lock()
	defer job.Unlock()

	return job.summary
}

// Err returns the error which caused the job to fail, if any.
func (job *Job) Err() error {
	job.Lock()
	defer job.Unlock()

	return job.err
}

func (job *Job) FinishedAt() *time.Time {
	job.Lock()
	defer job.Unlock()

	return job.finishedAt
}

// Skipped returns the skip records for the job. While running only the
// collector skips are known; the full list is available once finished.
func (job *Job) Skipped() []ingest.SkipRecord {
	job.Lock()
	defer job.Unlock()

	if job.skipped != nil {
		return job.skipped
	}

	return job.collectorSkips
}

func (job *Job) setState(state JobState) {
	job.Lock()
	defer job.Unlock()

	job.state = state
}

func (job *Job) finish(state JobState, summary sink.Summary, skipped []ingest.SkipRecord, err error) {
	job.Lock()
	defer job.Unlock()

	now := time.Now()
	job.state = state
	job.summary = &summary
	job.skipped = skipped
	job.err = err
	job.finishedAt = &now
}

func (job *Job) String() string {
	return fmt.Sprintf("Job{id=%s profile=%s state=%s output=%s}", job.ID(), job.profile, job.State(), job.output.Path)
}

func (s JobState) String() string {
	switch s {
	case PENDING:
		return "PENDING"
	case RUNNING:
		return "RUNNING"
	case COMPLETE:
		return "COMPLETE"
	case CANCELLED:
		return "CANCELLED"
	case FAILED:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", s)
	}
}
