package job

import (
	"sort"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/pkg/sync"
)

// Store is an in-memory registry of jobs, keyed by batch ID.
type Store struct {
	jobs sync.TypedSyncMap[uuid.UUID, *Job]
}

func NewStore() *Store { return &Store{} }

func (store *Store) Add(job *Job) { store.jobs.Store(job.ID(), job) }

// Get returns the job with the ID provided, or nil if none exists.
func (store *Store) Get(id uuid.UUID) *Job {
	if job, ok := store.jobs.Load(id); ok {
		return job
	}

	return nil
}

// All returns every job, oldest first.
func (store *Store) All() []*Job {
	jobs := store.jobs.Values()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].batch.CreatedAt().Before(jobs[j].batch.CreatedAt())
	})

	return jobs
}
