// Package sink persists the results of a run. Rows are appended to a CSV (and
// optionally mirrored to PostgreSQL) as they arrive; skipped paths are held
// in memory and written to a skip report once the run is finalized.
//
// A Sink is not safe for concurrent use. It's owned by the single consumer
// of a run's results.
package sink

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/hbomb79/mediatab/internal/database"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/pkg/logger"
)

var log = logger.Get("Sink")

type (
	// Mirror writes each row to the database in addition to the CSV.
	Mirror struct {
		db    database.Queryable
		store *RowStore
	}

	Sink struct {
		config    Config
		batchID   uuid.UUID
		profile   media.Profile
		mirror    *Mirror
		csv       *csvFile
		succeeded int
		skipped   []ingest.SkipRecord
		finalized bool
	}

	// Summary describes the outcome of a run once it has been finalized.
	Summary struct {
		BatchID    uuid.UUID
		Considered int
		Succeeded  int
		Skipped    int
		Output     string
	}
)

func NewMirror(db database.Queryable, store *RowStore) *Mirror {
	return &Mirror{db: db, store: store}
}

// New creates a sink for the batch provided. The CSV is opened when
// the first row arrives. The mirror is optional.
func New(config Config, batchID uuid.UUID, profile media.Profile, mirror *Mirror) *Sink {
	return &Sink{
		config:  config,
		batchID: batchID,
		profile: profile,
		mirror:  mirror,
		skipped: make([]ingest.SkipRecord, 0),
	}
}

// OnSuccess appends the row to the CSV (and the mirror, if any). The row
// is flushed to disk before returning. Any error returned is a *SinkIOError.
func (sink *Sink) OnSuccess(row media.Row) error {
	if sink.csv == nil {
		var header []string
		if !sink.config.OmitHeader {
			header = row.Header()
		}

		csv, err := openCSV(sink.config.Path, sink.config.Encoding, header, sink.config.Sync)
		if err != nil {
			return err
		}

		sink.csv = csv
	}

	if err := sink.csv.write(row.Record()); err != nil {
		return err
	}

	if sink.mirror != nil {
		if err := sink.mirror.store.Insert(sink.mirror.db, sink.batchID, sink.profile, row); err != nil {
			return &SinkIOError{Op: "mirror", Path: row.Source(), Err: err}
		}
	}

	sink.succeeded++
	return nil
}

// OnSkip records the path as skipped.
func (sink *Sink) OnSkip(record ingest.SkipRecord) {
	sink.skipped = append(sink.skipped, record)
}

// AddSkipped records each of the records provided as skipped.
func (sink *Sink) AddSkipped(records ...ingest.SkipRecord) {
	sink.skipped = append(sink.skipped, records...)
}

// Skipped returns a copy of the skip records accumulated so far.
func (sink *Sink) Skipped() []ingest.SkipRecord {
	out := make([]ingest.SkipRecord, len(sink.skipped))
	copy(out, sink.skipped)
	return out
}

// Finalize writes the skip report (only if any paths were skipped) and closes the
// CSV. The Summary is returned even if an error occurs. Finalize may only be
// called once.
func (sink *Sink) Finalize() (Summary, error) {
	summary := Summary{
		BatchID:    sink.batchID,
		Considered: sink.succeeded + len(sink.skipped),
		Succeeded:  sink.succeeded,
		Skipped:    len(sink.skipped),
		Output:     sink.config.Path,
	}

	if sink.finalized {
		return summary, fmt.Errorf("sink for batch %s already finalized", sink.batchID)
	}
	sink.finalized = true

	var errs *multierror.Error
	if len(sink.skipped) > 0 {
		reportPath := sink.config.SkipReport()
		if err := writeSkipReport(reportPath, sink.skipped); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			log.Emit(logger.INFO, "Wrote %d skipped path(s) to %s\n", len(sink.skipped), reportPath)
		}
	}

	if sink.csv != nil {
		if err := sink.csv.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return summary, errs.ErrorOrNil()
}

func (summary Summary) String() string {
	if summary.Skipped == 0 {
		return fmt.Sprintf("%d items processed. Results saved to %q.", summary.Considered, summary.Output)
	}

	return fmt.Sprintf("%d items processed. %d items skipped. Results saved to %q.", summary.Considered, summary.Skipped, summary.Output)
}
